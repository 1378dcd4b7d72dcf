package engineapi

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/engine"
	l2test "github.com/mantlenetworkio/mantle-faultproof/op-program/client/l2/test"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/testlog"
)

var recipient = common.Address{0xaa}

type transitionSetup struct {
	cfg     *params.ChainConfig
	stf     *Transition
	genesis *types.Header
	signer  types.Signer
	nonce   uint64
	signTx  func(t *testing.T) *types.Transaction
}

func newTransitionSetup(t *testing.T) *transitionSetup {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	config := *params.MergedTestChainConfig
	// the parent block hash system call needs the history contract deployed
	config.PragueTime = nil
	config.OsakaTime = nil
	cfg := &config
	blocks, state := l2test.NewStubOracle(t)
	stf := NewTransition(testlog.Logger(t, log.LevelDebug), cfg, state, blocks)

	statedb, err := stf.stateAt(types.EmptyRootHash)
	require.NoError(t, err)
	statedb.SetBalance(crypto.PubkeyToAddress(key.PublicKey), uint256.NewInt(params.Ether), tracing.BalanceChangeUnspecified)
	root, err := statedb.Commit(0, true, false)
	require.NoError(t, err)
	require.NoError(t, statedb.Database().TrieDB().Commit(root, false))
	stf.db.TakeWritten()

	s := &transitionSetup{
		cfg: cfg,
		stf: stf,
		genesis: &types.Header{
			Number:     big.NewInt(0),
			Root:       root,
			GasLimit:   30_000_000,
			BaseFee:    big.NewInt(params.GWei),
			Difficulty: common.Big0,
		},
		signer: types.LatestSigner(cfg),
	}
	s.signTx = func(t *testing.T) *types.Transaction {
		tx, err := types.SignTx(types.NewTx(&types.LegacyTx{
			Nonce:    s.nonce,
			To:       &recipient,
			Value:    big.NewInt(1000),
			Gas:      params.TxGas,
			GasPrice: big.NewInt(10 * params.GWei),
		}), s.signer, key)
		require.NoError(t, err)
		s.nonce++
		return tx
	}
	return s
}

func (s *transitionSetup) input(parent *types.Header, txs ...*types.Transaction) *engine.BlockInput {
	return &engine.BlockInput{
		ChainID:      eth.ChainIDFromBig(s.cfg.ChainID),
		Parent:       parent,
		Timestamp:    parent.Time + 2,
		GasLimit:     30_000_000,
		Transactions: txs,
	}
}

func TestTransitionAppliesTransfers(t *testing.T) {
	s := newTransitionSetup(t)
	res, err := s.stf.ApplyBlock(context.Background(), s.input(s.genesis, s.signTx(t)))
	require.NoError(t, err)
	require.Len(t, res.Receipts, 1)
	require.Equal(t, types.ReceiptStatusSuccessful, res.Receipts[0].Status)
	require.Equal(t, params.TxGas, res.GasUsed)
	require.NotEqual(t, s.genesis.Root, res.StateRoot)
	require.NotNil(t, res.BaseFee)

	written := make(map[common.Hash]bool)
	for _, n := range res.StateNodes {
		written[crypto.Keccak256Hash(n)] = true
	}
	require.True(t, written[res.StateRoot], "state root node is reported")

	// the next block reads the state the first one wrote
	next := &types.Header{
		ParentHash: s.genesis.Hash(),
		Number:     big.NewInt(1),
		Root:       res.StateRoot,
		GasLimit:   30_000_000,
		GasUsed:    res.GasUsed,
		Time:       s.genesis.Time + 2,
		BaseFee:    res.BaseFee,
		Difficulty: common.Big0,
	}
	res2, err := s.stf.ApplyBlock(context.Background(), s.input(next, s.signTx(t)))
	require.NoError(t, err)
	require.Equal(t, types.ReceiptStatusSuccessful, res2.Receipts[0].Status)

	statedb, err := s.stf.stateAt(res2.StateRoot)
	require.NoError(t, err)
	require.Equal(t, uint64(2000), statedb.GetBalance(recipient).Uint64())
}

func TestTransitionRejectsInvalidInput(t *testing.T) {
	s := newTransitionSetup(t)

	t.Run("timestamp", func(t *testing.T) {
		in := s.input(s.genesis)
		in.Timestamp = s.genesis.Time
		_, err := s.stf.ApplyBlock(context.Background(), in)
		require.ErrorIs(t, err, errInvalidTimestamp)
	})
	t.Run("gas limit", func(t *testing.T) {
		in := s.input(s.genesis)
		in.GasLimit = params.MaxGasLimit + 1
		_, err := s.stf.ApplyBlock(context.Background(), in)
		require.ErrorIs(t, err, errInvalidGasLimit)
	})
	t.Run("chain", func(t *testing.T) {
		in := s.input(s.genesis)
		in.ChainID = eth.ChainIDFromUInt64(12345)
		_, err := s.stf.ApplyBlock(context.Background(), in)
		require.ErrorIs(t, err, errWrongChain)
	})
	t.Run("tx above block gas limit", func(t *testing.T) {
		in := s.input(s.genesis, s.signTx(t))
		in.GasLimit = params.TxGas - 1
		_, err := s.stf.ApplyBlock(context.Background(), in)
		require.ErrorIs(t, err, ErrExceedsGasLimit)
	})
}

func TestTransitionHeaders(t *testing.T) {
	s := newTransitionSetup(t)
	_, err := s.stf.ApplyBlock(context.Background(), s.input(s.genesis))
	require.NoError(t, err)
	require.Equal(t, s.genesis, s.stf.CurrentHeader())
	require.Equal(t, s.genesis, s.stf.GetHeader(s.genesis.Hash(), 0))
	require.Nil(t, s.stf.GetHeader(s.genesis.Hash(), 1))
	require.Equal(t, s.genesis, s.stf.GetHeaderByNumber(0))
	require.Nil(t, s.stf.GetHeaderByHash(common.Hash{0x01}))
}
