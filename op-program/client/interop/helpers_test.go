package interop

import (
	"context"
	"errors"
	"io"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/driver"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/engine"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/predeploys"
	"github.com/mantlenetworkio/mantle-faultproof/op-supervisor/supervisor/backend/depset"
	supervisortypes "github.com/mantlenetworkio/mantle-faultproof/op-supervisor/supervisor/types"
)

var (
	chainA = eth.ChainIDFromUInt64(900)
	chainB = eth.ChainIDFromUInt64(901)

	emitter = common.Address{0xee}
)

const blockTime = 2

// initiatingLog is a plain log emitted by a contract on the source chain.
func initiatingLog(payload string) *types.Log {
	return &types.Log{
		Address: emitter,
		Topics:  []common.Hash{crypto.Keccak256Hash([]byte("Event()"))},
		Data:    []byte(payload),
	}
}

// messageFor returns the message that executes log logIdx of the given source block.
func messageFor(chainID eth.ChainID, number uint64, logIdx uint32, l *types.Log) supervisortypes.Message {
	return supervisortypes.Message{
		Identifier: supervisortypes.Identifier{
			Origin:      l.Address,
			BlockNumber: number,
			LogIndex:    logIdx,
			Timestamp:   number * blockTime,
			ChainID:     chainID,
		},
		PayloadHash: crypto.Keccak256Hash(supervisortypes.LogToMessagePayload(l)),
	}
}

func executingLog(msg supervisortypes.Message) *types.Log {
	topics, data := msg.EncodeEvent()
	return &types.Log{Address: predeploys.CrossL2InboxAddr, Topics: topics, Data: data}
}

func receiptsOf(logs ...*types.Log) types.Receipts {
	return types.Receipts{{Status: types.ReceiptStatusSuccessful, Logs: logs}}
}

func testBlock(chainID eth.ChainID, number uint64, extra byte) *types.Block {
	return types.NewBlockWithHeader(&types.Header{
		Number: new(big.Int).SetUint64(number),
		Time:   number * blockTime,
		Extra:  []byte{byte(chainID.ToBig().Uint64()), extra},
	})
}

// fakeChain is a single-chain driver over scripted candidate blocks, next to the canonical chain
// they are committed to.
type fakeChain struct {
	t       *testing.T
	id      eth.ChainID
	target  uint64
	blocks  []*types.Block
	receipt map[common.Hash]types.Receipts
	// pending maps a block number to the receipts of its candidate
	pending map[uint64]types.Receipts

	replaced  []uint64
	started   bool
	resultErr error
}

var (
	_ ChainDriver    = (*fakeChain)(nil)
	_ CanonicalChain = (*fakeChain)(nil)
	_ ReceiptsSource = (*fakeChain)(nil)
)

func newFakeChain(t *testing.T, id eth.ChainID, target uint64) *fakeChain {
	genesis := testBlock(id, 0, 0)
	return &fakeChain{
		t:       t,
		id:      id,
		target:  target,
		blocks:  []*types.Block{genesis},
		receipt: map[common.Hash]types.Receipts{genesis.Hash(): nil},
		pending: make(map[uint64]types.Receipts),
	}
}

func (f *fakeChain) candidate(number uint64, receipts types.Receipts, extra byte) *driver.Candidate {
	block := testBlock(f.id, number, extra)
	return &driver.Candidate{
		Commitment: &engine.Commitment{
			Block:     block,
			Receipts:  receipts,
			BlockHash: block.Hash(),
			Output:    &eth.OutputV0{BlockHash: block.Hash()},
		},
		Ref: eth.L2BlockRef{Hash: block.Hash(), Number: number, Time: block.Time()},
	}
}

func (f *fakeChain) HeadBlock() *types.Block {
	return f.blocks[len(f.blocks)-1]
}

func (f *fakeChain) BlockByNumber(number uint64) (*types.Block, error) {
	if number >= uint64(len(f.blocks)) {
		return nil, errors.New("not found")
	}
	return f.blocks[number], nil
}

func (f *fakeChain) ReceiptsByBlockHash(blockHash common.Hash, chainID eth.ChainID) (*types.Block, types.Receipts, error) {
	require.Equal(f.t, f.id, chainID)
	for _, b := range f.blocks {
		if b.Hash() == blockHash {
			return b, f.receipt[blockHash], nil
		}
	}
	return nil, nil, errors.New("not found")
}

func (f *fakeChain) NextCandidate(context.Context) (*driver.Candidate, error) {
	f.started = true
	next := f.HeadBlock().NumberU64() + 1
	if next > f.target {
		return nil, io.EOF
	}
	return f.candidate(next, f.pending[next], 0), nil
}

func (f *fakeChain) Commit(c *driver.Candidate) error {
	require.Equal(f.t, f.HeadBlock().NumberU64()+1, c.Block.NumberU64())
	f.blocks = append(f.blocks, c.Block)
	f.receipt[c.Block.Hash()] = c.Receipts
	return nil
}

func (f *fakeChain) ReplaceWithDepositsOnly(_ context.Context, c *driver.Candidate) (*driver.Candidate, error) {
	f.replaced = append(f.replaced, c.Ref.Number)
	return f.candidate(c.Ref.Number, nil, 0xde), nil
}

func (f *fakeChain) Head() eth.L2BlockRef {
	if !f.started {
		return eth.L2BlockRef{}
	}
	h := f.HeadBlock()
	return eth.L2BlockRef{Hash: h.Hash(), Number: h.NumberU64(), Time: h.Time()}
}

func (f *fakeChain) Result() (driver.Result, error) {
	if f.resultErr != nil {
		return driver.Result{}, f.resultErr
	}
	h := f.HeadBlock()
	return driver.Result{OutputRoot: eth.Bytes32(h.Hash())}, nil
}

type countingMetrics struct {
	holds        int
	replacements int
}

func (m *countingMetrics) RecordInteropHold() {
	m.holds++
}

func (m *countingMetrics) RecordInteropReplacement() {
	m.replacements++
}

type alwaysActive struct{}

func (alwaysActive) IsInterop(eth.ChainID, uint64) bool { return true }

func (alwaysActive) IsInteropActivationBlock(eth.ChainID, uint64) bool { return false }

func allowAll() LinkRulesFn {
	return func(eth.ChainID, uint64, eth.ChainID, uint64) bool { return true }
}

func testDeps(t *testing.T) depset.DependencySet {
	deps, err := depset.DependencySetOf(chainA, chainB)
	require.NoError(t, err)
	return deps
}
