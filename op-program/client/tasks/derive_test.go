package tasks

import (
	"context"
	"errors"
	"math/big"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/mantle-faultproof/op-node/metrics"
	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup"
	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup/derive"
	preimage "github.com/mantlenetworkio/mantle-faultproof/op-preimage"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/driver"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/engine"
	enginetest "github.com/mantlenetworkio/mantle-faultproof/op-program/client/engine/test"
	l2test "github.com/mantlenetworkio/mantle-faultproof/op-program/client/l2/test"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/testlog"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/testutils"
)

// stubL1 serves the headers it holds and nothing else.
type stubL1 struct {
	headers map[common.Hash]eth.BlockInfo
}

func (s *stubL1) HeaderByBlockHash(blockHash common.Hash) (eth.BlockInfo, error) {
	info, ok := s.headers[blockHash]
	if !ok {
		return nil, preimage.ErrNotFound
	}
	return info, nil
}

func (s *stubL1) TransactionsByBlockHash(blockHash common.Hash) (eth.BlockInfo, types.Transactions, error) {
	info, err := s.HeaderByBlockHash(blockHash)
	return info, nil, err
}

func (s *stubL1) ReceiptsByBlockHash(blockHash common.Hash) (eth.BlockInfo, types.Receipts, error) {
	info, err := s.HeaderByBlockHash(blockHash)
	return info, nil, err
}

func (s *stubL1) GetBlob(ref eth.L1BlockRef, blobHash eth.IndexedBlobHash) (*eth.Blob, error) {
	return nil, preimage.ErrNotFound
}

type derivationSetup struct {
	in     ChainInputs
	l1     *stubL1
	l2     *l2test.StubBlockOracle
	head   *types.Block
	output *eth.OutputV0
}

// newDerivationSetup agrees on the L2 genesis block, with the L1 genesis block as L1 head.
func newDerivationSetup(t *testing.T) *derivationSetup {
	rng := rand.New(rand.NewSource(1))
	root, nodes, err := enginetest.State(0, types.EmptyRootHash, nil)
	require.NoError(t, err)
	l2Oracle, state := l2test.NewStubOracle(t)
	for _, n := range nodes {
		state.Data[crypto.Keccak256Hash(n)] = n
	}
	header := testutils.RandomHeader(rng)
	header.Number = big.NewInt(0)
	header.Root = root
	header.Time = 1_000
	head := types.NewBlockWithHeader(header)
	l2Oracle.Blocks[head.Hash()] = head

	l1Genesis := &testutils.MockBlockInfo{InfoHash: common.Hash{0x11}, InfoNum: 100, InfoTime: 900}
	cfg := &rollup.Config{
		Genesis: rollup.Genesis{
			L1:     eth.BlockID{Hash: l1Genesis.InfoHash, Number: l1Genesis.InfoNum},
			L2:     eth.ToBlockID(head),
			L2Time: head.Time(),
		},
		BlockTime:             2,
		SeqWindowSize:         10,
		ChannelTimeoutBedrock: 5,
		L2ChainID:             big.NewInt(5000),
	}
	adapter := engine.NewAdapter(testlog.Logger(t, log.LevelDebug), cfg, new(enginetest.Transition), state, nil, metrics.NoopMetrics)
	output, err := adapter.OutputAt(head.Header())
	require.NoError(t, err)
	outputRoot := common.Hash(eth.OutputRoot(output))
	l2Oracle.Outputs[outputRoot] = output
	return &derivationSetup{
		in: ChainInputs{
			RollupConfig:     cfg,
			L1Head:           l1Genesis.InfoHash,
			AgreedOutputRoot: outputRoot,
			Target:           driver.BlockTarget(0),
		},
		l1:     &stubL1{headers: map[common.Hash]eth.BlockInfo{l1Genesis.InfoHash: l1Genesis}},
		l2:     l2Oracle,
		head:   head,
		output: output,
	}
}

func (s *derivationSetup) run(t *testing.T, stf *enginetest.Transition, opts DerivationOptions) (DerivationResult, error) {
	return RunDerivation(context.Background(), testlog.Logger(t, log.LevelDebug), s.in, s.l1, s.l2, stf, opts)
}

func TestRunDerivationAgreedHeadAtTarget(t *testing.T) {
	s := newDerivationSetup(t)
	stf := new(enginetest.Transition)
	result, err := s.run(t, stf, DerivationOptions{Limits: derive.DefaultLimits()})
	require.NoError(t, err)
	require.Equal(t, s.head.Hash(), result.BlockHash)
	require.Equal(t, eth.OutputRoot(s.output), result.OutputRoot)
	require.Equal(t, common.Hash(result.OutputRoot), s.in.AgreedOutputRoot)
	require.Zero(t, stf.Calls)
}

func TestRunDerivationTruncatedL1(t *testing.T) {
	s := newDerivationSetup(t)
	s.in.Target = driver.BlockTarget(2)
	stf := new(enginetest.Transition)
	_, err := s.run(t, stf, DerivationOptions{Limits: derive.DefaultLimits()})
	require.ErrorIs(t, err, driver.ErrTargetNotReached)
	require.Zero(t, stf.Calls)
}

func TestRunDerivationMissingL1Head(t *testing.T) {
	s := newDerivationSetup(t)
	s.in.L1Head = common.Hash{0xde, 0xad}
	_, err := s.run(t, new(enginetest.Transition), DerivationOptions{Limits: derive.DefaultLimits()})
	require.ErrorIs(t, err, preimage.ErrNotFound)
}

func TestRunDerivationMissingAgreedOutput(t *testing.T) {
	s := newDerivationSetup(t)
	s.in.AgreedOutputRoot = common.Hash{0xaa}
	_, err := s.run(t, new(enginetest.Transition), DerivationOptions{Limits: derive.DefaultLimits()})
	require.ErrorIs(t, err, preimage.ErrNotFound)
}

func TestRunDerivationInvalidLimits(t *testing.T) {
	s := newDerivationSetup(t)
	_, err := s.run(t, new(enginetest.Transition), DerivationOptions{})
	require.ErrorIs(t, err, derive.ErrNoPendingChannels)
	require.False(t, errors.Is(err, driver.ErrTargetNotReached))
}

func TestNewChainChecksExpectedStateRoot(t *testing.T) {
	s := newDerivationSetup(t)
	opts := DerivationOptions{
		Limits: derive.DefaultLimits(),
		ExpectedStateRoot: func(number uint64) (common.Hash, bool) {
			return common.Hash{0xde, 0xad}, number == 1
		},
	}
	chain, err := NewChain(testlog.Logger(t, log.LevelDebug), s.in, s.l1, s.l2, new(enginetest.Transition), opts)
	require.NoError(t, err)

	ts := s.head.Time() + s.in.RollupConfig.BlockTime
	l1Info := testutils.RandomBlockInfo(rand.New(rand.NewSource(2)))
	dep, err := derive.L1InfoDeposit(s.in.RollupConfig, eth.SystemConfig{}, 0, l1Info, ts)
	require.NoError(t, err)
	opaque, err := types.NewTx(dep).MarshalBinary()
	require.NoError(t, err)
	gasLimit := eth.Uint64Quantity(30_000_000)
	attrs := &eth.PayloadAttributes{
		Timestamp:    eth.Uint64Quantity(ts),
		Transactions: []eth.Data{opaque},
		NoTxPool:     true,
		GasLimit:     &gasLimit,
	}
	_, err = chain.Adapter.Apply(context.Background(), s.head.Header(), attrs)
	require.ErrorIs(t, err, engine.ErrStateRootMismatch)
}
