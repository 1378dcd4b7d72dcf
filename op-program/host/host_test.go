package host

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/mantle-faultproof/op-node/metrics"
	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup"
	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup/derive"
	preimage "github.com/mantlenetworkio/mantle-faultproof/op-preimage"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/claim"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/driver"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/engine"
	enginetest "github.com/mantlenetworkio/mantle-faultproof/op-program/client/engine/test"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/l1"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/l2"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/mpt"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/tasks"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/host/config"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/host/kvstore"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/testlog"
)

const genesisTime = 1_700_000_000

var (
	batchInbox     = common.HexToAddress("0xff00000000000000000000000000000000000901")
	depositAddress = common.HexToAddress("0xdd00000000000000000000000000000000000901")
	l1ChainID      = big.NewInt(900)
	l2ChainID      = big.NewInt(901)
)

// chainFixture holds a two block L1 chain, with the second block carrying the batch of the
// first L2 block on top of the L2 genesis.
type chainFixture struct {
	kv           *kvstore.MemKV
	rollupCfg    *rollup.Config
	chainCfg     *params.ChainConfig
	l1Genesis    *types.Header
	l1Head       *types.Header
	l2Genesis    *types.Block
	agreedOutput common.Hash
}

func newChainFixture(t *testing.T) *chainFixture {
	kv := kvstore.NewMemKV()
	batcherKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	stateRoot, stateNodes, err := enginetest.State(0, types.EmptyRootHash, nil)
	require.NoError(t, err)
	for _, n := range stateNodes {
		putKeccak(t, kv, n)
	}
	l2Genesis := types.NewBlockWithHeader(&types.Header{
		Number:      big.NewInt(0),
		Root:        stateRoot,
		Time:        genesisTime,
		GasLimit:    30_000_000,
		BaseFee:     big.NewInt(params.GWei),
		Difficulty:  common.Big0,
		UncleHash:   types.EmptyUncleHash,
		TxHash:      types.EmptyTxsHash,
		ReceiptHash: types.EmptyReceiptsHash,
	})
	putHeader(t, kv, l2Genesis.Header())

	l1Genesis := &types.Header{
		Number:      big.NewInt(0),
		Time:        genesisTime,
		GasLimit:    30_000_000,
		BaseFee:     big.NewInt(params.GWei),
		Difficulty:  common.Big0,
		UncleHash:   types.EmptyUncleHash,
		TxHash:      types.EmptyTxsHash,
		ReceiptHash: types.EmptyReceiptsHash,
	}
	putHeader(t, kv, l1Genesis)

	rollupCfg := &rollup.Config{
		Genesis: rollup.Genesis{
			L1:     eth.BlockID{Hash: l1Genesis.Hash(), Number: 0},
			L2:     eth.ToBlockID(l2Genesis),
			L2Time: genesisTime,
			SystemConfig: eth.SystemConfig{
				BatcherAddr: crypto.PubkeyToAddress(batcherKey.PublicKey),
				Scalar:      eth.Bytes32{31: 1},
				GasLimit:    30_000_000,
			},
		},
		BlockTime:              2,
		MaxSequencerDrift:      600,
		SeqWindowSize:          10,
		ChannelTimeoutBedrock:  50,
		L1ChainID:              l1ChainID,
		L2ChainID:              l2ChainID,
		BatchInboxAddress:      batchInbox,
		DepositContractAddress: depositAddress,
	}

	batch := &derive.SingularBatch{
		ParentHash: l2Genesis.Hash(),
		EpochNum:   0,
		EpochHash:  l1Genesis.Hash(),
		Timestamp:  genesisTime + 2,
	}
	_, frames, err := derive.EncodeChannel(derive.Zlib, 10_000_000, derive.MaxFrameLen, derive.NewBatchData(batch))
	require.NoError(t, err)
	l1Head := l1Block(t, kv, rollupCfg, l1Genesis, batcherKey, frames)

	output := outputAt(t, kv, rollupCfg, l2Genesis.Header())
	outputRoot := common.Hash(eth.OutputRoot(output))
	putKeccak(t, kv, output.Marshal())

	return &chainFixture{
		kv:           kv,
		rollupCfg:    rollupCfg,
		chainCfg:     &params.ChainConfig{ChainID: l2ChainID},
		l1Genesis:    l1Genesis,
		l1Head:       l1Head,
		l2Genesis:    l2Genesis,
		agreedOutput: outputRoot,
	}
}

// l1Block builds the child of parent with one batcher transaction per frame.
func l1Block(t *testing.T, kv kvstore.KV, cfg *rollup.Config, parent *types.Header, key *ecdsa.PrivateKey, frames [][]byte) *types.Header {
	var txs types.Transactions
	var receipts types.Receipts
	for i, frame := range frames {
		tx, err := types.SignNewTx(key, cfg.L1Signer(), &types.DynamicFeeTx{
			ChainID:   cfg.L1ChainID,
			Nonce:     uint64(i),
			To:        &cfg.BatchInboxAddress,
			Gas:       1_000_000,
			GasFeeCap: big.NewInt(10 * params.GWei),
			GasTipCap: big.NewInt(params.GWei),
			Data:      frame,
		})
		require.NoError(t, err)
		txs = append(txs, tx)
		receipts = append(receipts, &types.Receipt{
			Type:              types.DynamicFeeTxType,
			Status:            types.ReceiptStatusSuccessful,
			CumulativeGasUsed: uint64(i+1) * 100_000,
			Logs:              []*types.Log{},
		})
	}
	opaqueTxs, err := eth.EncodeTransactions(txs)
	require.NoError(t, err)
	txRoot, txNodes := mpt.WriteTrie(opaqueTxs)
	opaqueReceipts, err := eth.EncodeReceipts(receipts)
	require.NoError(t, err)
	receiptRoot, receiptNodes := mpt.WriteTrie(opaqueReceipts)
	for _, n := range append(txNodes, receiptNodes...) {
		putKeccak(t, kv, n)
	}
	header := &types.Header{
		ParentHash:  parent.Hash(),
		Number:      new(big.Int).Add(parent.Number, common.Big1),
		Time:        parent.Time + 12,
		GasLimit:    30_000_000,
		BaseFee:     big.NewInt(params.GWei),
		Difficulty:  common.Big0,
		UncleHash:   types.EmptyUncleHash,
		TxHash:      txRoot,
		ReceiptHash: receiptRoot,
	}
	putHeader(t, kv, header)
	return header
}

func rawOracle(kv kvstore.KV) preimage.Oracle {
	return preimage.OracleFn(func(key preimage.Key) ([]byte, error) {
		return kv.Get(key.PreimageKey())
	})
}

func outputAt(t *testing.T, kv kvstore.KV, cfg *rollup.Config, header *types.Header) *eth.OutputV0 {
	l2Oracle := l2.NewPreimageOracle(rawOracle(kv), preimage.NoopHinter{}, false)
	adapter := engine.NewAdapter(testlog.Logger(t, log.LevelDebug), cfg, new(enginetest.Transition), l2Oracle, nil, metrics.NoopMetrics)
	output, err := adapter.OutputAt(header)
	require.NoError(t, err)
	return output
}

func putKeccak(t *testing.T, kv kvstore.KV, data []byte) {
	require.NoError(t, kv.Put(preimage.Keccak256Key(crypto.Keccak256Hash(data)).PreimageKey(), data))
}

func putHeader(t *testing.T, kv kvstore.KV, header *types.Header) {
	data, err := rlp.EncodeToBytes(header)
	require.NoError(t, err)
	putKeccak(t, kv, data)
}

// expectedClaim derives the claimed block directly against the fixture pre-images.
func (f *chainFixture) expectedClaim(t *testing.T, blockNum uint64) tasks.DerivationResult {
	oracle := rawOracle(f.kv)
	result, err := tasks.RunDerivation(context.Background(), testlog.Logger(t, log.LevelDebug), tasks.ChainInputs{
		RollupConfig:     f.rollupCfg,
		L1Head:           f.l1Head.Hash(),
		AgreedOutputRoot: f.agreedOutput,
		Target:           driver.BlockTarget(blockNum),
	}, l1.NewPreimageOracle(oracle, preimage.NoopHinter{}), l2.NewPreimageOracle(oracle, preimage.NoopHinter{}, false),
		new(enginetest.Transition), tasks.DerivationOptions{Limits: derive.DefaultLimits()})
	require.NoError(t, err)
	return result
}

func (f *chainFixture) run(t *testing.T, l1Head common.Hash, claimed common.Hash, blockNum uint64) (int, error) {
	logger := testlog.Logger(t, log.LevelDebug)
	cfg := config.NewSingleChainConfig(f.rollupCfg, f.chainCfg, l1Head, f.agreedOutput, claimed, blockNum)
	clientCfg := client.DefaultConfig()
	clientCfg.NewTransition = func(log.Logger, *rollup.Config, l2.Oracle) (engine.StateTransition, error) {
		return new(enginetest.Transition), nil
	}
	var hints []string
	err := FaultProofProgram(context.Background(), logger, cfg, f.kv,
		WithClientConfig(clientCfg),
		WithHintHandler(func(hint string) error {
			hints = append(hints, hint)
			return nil
		}))
	require.NotEmpty(t, hints)
	return client.ExitCode(logger, err), err
}

func TestFaultProofProgram(t *testing.T) {
	f := newChainFixture(t)
	expected := f.expectedClaim(t, 1)
	require.Equal(t, uint64(1), expected.Head.Number)
	require.NotEqual(t, f.agreedOutput, common.Hash(expected.OutputRoot))

	t.Run("true claim is accepted", func(t *testing.T) {
		code, err := f.run(t, f.l1Head.Hash(), common.Hash(expected.OutputRoot), 1)
		require.NoError(t, err)
		require.Equal(t, client.ExitAccepted, code)
	})

	t.Run("one bit flipped claim is rejected", func(t *testing.T) {
		claimed := common.Hash(expected.OutputRoot)
		claimed[31] ^= 1
		code, err := f.run(t, f.l1Head.Hash(), claimed, 1)
		require.ErrorIs(t, err, claim.ErrClaimNotValid)
		require.Equal(t, client.ExitRejected, code)
	})

	t.Run("truncated L1 does not reach the target", func(t *testing.T) {
		code, err := f.run(t, f.l1Genesis.Hash(), common.Hash(expected.OutputRoot), 1)
		require.ErrorIs(t, err, driver.ErrTargetNotReached)
		require.Equal(t, client.ExitRejected, code)
	})

	t.Run("missing pre-image fails", func(t *testing.T) {
		code, err := f.run(t, common.Hash{0xde, 0xad}, common.Hash(expected.OutputRoot), 1)
		require.ErrorIs(t, err, preimage.ErrNotFound)
		require.Equal(t, client.ExitFailed, code)
	})
}

func TestFaultProofProgramInvalidConfig(t *testing.T) {
	f := newChainFixture(t)
	cfg := config.NewSingleChainConfig(f.rollupCfg, f.chainCfg, common.Hash{}, f.agreedOutput, common.Hash{0x01}, 1)
	err := FaultProofProgram(context.Background(), testlog.Logger(t, log.LevelDebug), cfg, f.kv)
	require.ErrorIs(t, err, config.ErrInvalidL1Head)
}

func TestHintHandlerFailureStopsProgram(t *testing.T) {
	f := newChainFixture(t)
	cfg := config.NewSingleChainConfig(f.rollupCfg, f.chainCfg, f.l1Head.Hash(), f.agreedOutput, common.Hash{0x01}, 1)
	err := FaultProofProgram(context.Background(), testlog.Logger(t, log.LevelDebug), cfg, f.kv,
		WithHintHandler(func(hint string) error {
			return errHintRejected
		}))
	require.ErrorIs(t, err, errHintRejected)
}

var errHintRejected = errors.New("hint rejected")
