package engine_test

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
	"github.com/ethereum/go-ethereum/trie"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/mantle-faultproof/op-node/metrics"
	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup"
	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup/derive"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/engine"
	enginetest "github.com/mantlenetworkio/mantle-faultproof/op-program/client/engine/test"
	l2test "github.com/mantlenetworkio/mantle-faultproof/op-program/client/l2/test"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/predeploys"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/testlog"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/testutils"
)

type recordingHinter struct {
	executions  []common.Hash
	withdrawals []common.Hash
}

func (h *recordingHinter) HintBlockExecution(parent common.Hash, _ eth.PayloadAttributes, _ eth.ChainID) {
	h.executions = append(h.executions, parent)
}

func (h *recordingHinter) HintWithdrawalsRoot(blockHash common.Hash, _ eth.ChainID) {
	h.withdrawals = append(h.withdrawals, blockHash)
}

type adapterSetup struct {
	cfg    *rollup.Config
	parent *types.Header
	state  *l2test.StubStateOracle
	hinter *recordingHinter
	stf    *enginetest.Transition
}

func newAdapterSetup(t *testing.T) *adapterSetup {
	canyon := uint64(0)
	cfg := &rollup.Config{
		BlockTime:  2,
		L2ChainID:  big.NewInt(5000),
		CanyonTime: &canyon,
	}
	state := l2test.NewStubStateOracle(t)
	root, nodes, err := enginetest.State(0, types.EmptyRootHash, nil)
	require.NoError(t, err)
	for _, n := range nodes {
		state.Data[crypto.Keccak256Hash(n)] = n
	}
	rng := rand.New(rand.NewSource(1))
	parent := testutils.RandomHeader(rng)
	parent.Number = big.NewInt(0)
	parent.Root = root
	parent.Time = 1000
	return &adapterSetup{cfg: cfg, parent: parent, state: state, hinter: new(recordingHinter), stf: new(enginetest.Transition)}
}

func (s *adapterSetup) adapter(t *testing.T) *engine.Adapter {
	return engine.NewAdapter(testlog.Logger(t, log.LevelDebug), s.cfg, s.stf, s.state, s.hinter, metrics.NoopMetrics)
}

func (s *adapterSetup) attributes(t *testing.T, txs ...*types.Transaction) *eth.PayloadAttributes {
	rng := rand.New(rand.NewSource(2))
	l1Info := testutils.RandomBlockInfo(rng)
	ts := s.parent.Time + s.cfg.BlockTime
	dep, err := derive.L1InfoDeposit(s.cfg, eth.SystemConfig{}, 0, l1Info, ts)
	require.NoError(t, err)
	all := append(types.Transactions{types.NewTx(dep)}, txs...)
	opaque, err := eth.EncodeTransactions(all)
	require.NoError(t, err)
	gasLimit := eth.Uint64Quantity(30_000_000)
	attrs := &eth.PayloadAttributes{
		Timestamp:             eth.Uint64Quantity(ts),
		PrevRandao:            eth.Bytes32{0x11},
		SuggestedFeeRecipient: predeploys.SequencerFeeVaultAddr,
		Withdrawals:           &types.Withdrawals{},
		NoTxPool:              true,
		GasLimit:              &gasLimit,
	}
	for _, tx := range opaque {
		attrs.Transactions = append(attrs.Transactions, eth.Data(tx))
	}
	return attrs
}

func userTx(t *testing.T, to common.Address, calldata []byte) *types.Transaction {
	chainID := big.NewInt(5000)
	key := testutils.InsecureRandomKey(rand.New(rand.NewSource(3)))
	return types.MustSignNewTx(key, types.LatestSignerForChainID(chainID), &types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     0,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2_000_000_000),
		Gas:       100_000,
		To:        &to,
		Value:     big.NewInt(0),
		Data:      calldata,
	})
}

func TestAdapterApply(t *testing.T) {
	s := newAdapterSetup(t)
	a := s.adapter(t)
	topic := common.Hash{0xaa}
	tx := userTx(t, common.Address{0xcc}, enginetest.EncodeLog([]common.Hash{topic}, []byte("hello")))
	attrs := s.attributes(t, tx)

	c, err := a.Apply(context.Background(), s.parent, attrs)
	require.NoError(t, err)

	block := c.Block
	require.Equal(t, s.parent.Hash(), block.ParentHash())
	require.Equal(t, uint64(1), block.NumberU64())
	require.Equal(t, uint64(attrs.Timestamp), block.Time())
	require.Equal(t, attrs.SuggestedFeeRecipient, block.Coinbase())
	require.Equal(t, common.Hash(attrs.PrevRandao), block.MixDigest())
	require.Equal(t, uint64(2*enginetest.TxGas), block.GasUsed())
	require.Equal(t, c.BlockHash, block.Hash())
	require.Len(t, block.Transactions(), 2)
	require.Equal(t, types.EmptyWithdrawalsHash, *block.Header().WithdrawalsHash)

	// the roots match the ones geth derives
	require.Equal(t, types.DeriveSha(block.Transactions(), trie.NewStackTrie(nil)), block.TxHash())
	require.Equal(t, types.DeriveSha(c.Receipts, trie.NewStackTrie(nil)), c.ReceiptsRoot)
	require.Equal(t, c.ReceiptsRoot, block.ReceiptHash())
	require.True(t, block.Bloom().Test(topic[:]))

	expectedRoot, _, err := enginetest.State(1, s.parent.Root, block.Transactions())
	require.NoError(t, err)
	require.Equal(t, expectedRoot, c.StateRoot)
	require.Equal(t, eth.Bytes32(expectedRoot), c.Output.StateRoot)
	require.Equal(t, block.Hash(), c.Output.BlockHash)

	// the new state is read from the nodes the transition wrote, not from the host
	require.Zero(t, s.state.Calls["NodeByHash"])
	require.NotEqual(t, eth.Bytes32(types.EmptyRootHash), c.Output.MessagePasserStorageRoot)

	require.Equal(t, []common.Hash{s.parent.Hash()}, s.hinter.executions)
	require.Equal(t, []common.Hash{block.Hash()}, s.hinter.withdrawals)

	payload, err := eth.BlockAsPayload(block)
	require.NoError(t, err)
	ref, err := derive.PayloadToBlockRef(s.cfg, payload)
	require.NoError(t, err)
	require.Equal(t, block.Hash(), ref.Hash)
}

func TestAdapterOutputAtParent(t *testing.T) {
	s := newAdapterSetup(t)
	a := s.adapter(t)
	output, err := a.OutputAt(s.parent)
	require.NoError(t, err)
	require.Equal(t, s.parent.Hash(), output.BlockHash)
	require.Equal(t, eth.Bytes32(s.parent.Root), output.StateRoot)
	require.NotZero(t, s.state.Calls["NodeByHash"])
}

func TestAdapterFailures(t *testing.T) {
	t.Run("TransitionError", func(t *testing.T) {
		s := newAdapterSetup(t)
		boom := errors.New("boom")
		s.stf.Err = boom
		_, err := s.adapter(t).Apply(context.Background(), s.parent, s.attributes(t))
		require.ErrorIs(t, err, engine.ErrExecution)
		require.ErrorIs(t, err, boom)
	})

	t.Run("UndecodableTransaction", func(t *testing.T) {
		s := newAdapterSetup(t)
		attrs := s.attributes(t)
		attrs.Transactions = append(attrs.Transactions, eth.Data{0x02, 0xff})
		_, err := s.adapter(t).Apply(context.Background(), s.parent, attrs)
		require.ErrorIs(t, err, engine.ErrExecution)
		require.Zero(t, s.stf.Calls)
	})

	t.Run("TimestampNotAfterParent", func(t *testing.T) {
		s := newAdapterSetup(t)
		attrs := s.attributes(t)
		attrs.Timestamp = eth.Uint64Quantity(s.parent.Time)
		_, err := s.adapter(t).Apply(context.Background(), s.parent, attrs)
		require.ErrorIs(t, err, engine.ErrExecution)
	})

	t.Run("MissingGasLimit", func(t *testing.T) {
		s := newAdapterSetup(t)
		attrs := s.attributes(t)
		attrs.GasLimit = nil
		_, err := s.adapter(t).Apply(context.Background(), s.parent, attrs)
		require.ErrorIs(t, err, engine.ErrExecution)
	})

	t.Run("StateRootMismatch", func(t *testing.T) {
		s := newAdapterSetup(t)
		a := s.adapter(t)
		a.SetExpectedStateRoot(func(number uint64) (common.Hash, bool) {
			return common.Hash{0xde, 0xad}, number == 1
		})
		_, err := a.Apply(context.Background(), s.parent, s.attributes(t))
		require.ErrorIs(t, err, engine.ErrExecution)
		require.ErrorIs(t, err, engine.ErrStateRootMismatch)
	})

	t.Run("MissingReceipts", func(t *testing.T) {
		s := newAdapterSetup(t)
		a := engine.NewAdapter(testlog.Logger(t, log.LevelDebug), s.cfg, dropReceipts{s.stf}, s.state, nil, metrics.NoopMetrics)
		_, err := a.Apply(context.Background(), s.parent, s.attributes(t))
		require.ErrorIs(t, err, engine.ErrExecution)
		require.ErrorContains(t, err, "receipts")
	})
}

type dropReceipts struct {
	inner engine.StateTransition
}

func (d dropReceipts) ApplyBlock(ctx context.Context, input *engine.BlockInput) (*engine.TransitionResult, error) {
	res, err := d.inner.ApplyBlock(ctx, input)
	if err != nil {
		return nil, err
	}
	res.Receipts = res.Receipts[:0]
	return res, nil
}
