package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/l2"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/mpt"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/predeploys"
)

var (
	// ErrExecution wraps every failure to turn attributes into a block. It is not recoverable.
	ErrExecution         = errors.New("block execution failed")
	ErrStateRootMismatch = errors.New("state root mismatch")
)

type Metrics interface {
	RecordBlockExecuted()
}

// ExpectedStateRoot reports the state root a block number is known to have, if any.
type ExpectedStateRoot func(number uint64) (common.Hash, bool)

// Adapter executes payload attributes through a StateTransition and assembles the resulting block.
type Adapter struct {
	logger    log.Logger
	rollupCfg *rollup.Config
	chainID   eth.ChainID
	stf       StateTransition
	state     *overlayState
	hinter    l2.OracleHinter
	metrics   Metrics

	expected ExpectedStateRoot
}

func NewAdapter(logger log.Logger, rollupCfg *rollup.Config, stf StateTransition, state l2.StateOracle, hinter l2.OracleHinter, m Metrics) *Adapter {
	return &Adapter{
		logger:    logger,
		rollupCfg: rollupCfg,
		chainID:   eth.ChainIDFromBig(rollupCfg.L2ChainID),
		stf:       stf,
		state:     newOverlayState(state),
		hinter:    hinter,
		metrics:   m,
	}
}

// SetExpectedStateRoot installs a check of each produced state root against a known value.
func (a *Adapter) SetExpectedStateRoot(fn ExpectedStateRoot) {
	a.expected = fn
}

// Apply executes the attributes on top of the parent block.
func (a *Adapter) Apply(ctx context.Context, parent *types.Header, attrs *eth.PayloadAttributes) (*Commitment, error) {
	commitment, err := a.apply(ctx, parent, attrs)
	if err != nil {
		return nil, fmt.Errorf("%w: block %d on %s: %w", ErrExecution, parent.Number.Uint64()+1, parent.Hash(), err)
	}
	a.metrics.RecordBlockExecuted()
	a.logger.Debug("Executed block", "number", commitment.Block.NumberU64(), "hash", commitment.BlockHash,
		"txs", len(commitment.Block.Transactions()), "stateRoot", commitment.StateRoot)
	return commitment, nil
}

func (a *Adapter) apply(ctx context.Context, parent *types.Header, attrs *eth.PayloadAttributes) (*Commitment, error) {
	input, err := a.blockInput(parent, attrs)
	if err != nil {
		return nil, err
	}
	if a.hinter != nil {
		a.hinter.HintBlockExecution(parent.Hash(), *attrs, a.chainID)
	}
	res, err := a.stf.ApplyBlock(ctx, input)
	if err != nil {
		return nil, err
	}
	if len(res.Receipts) != len(input.Transactions) {
		return nil, fmt.Errorf("state transition returned %d receipts for %d transactions", len(res.Receipts), len(input.Transactions))
	}
	if res.BaseFee == nil {
		return nil, errors.New("state transition returned no base fee")
	}
	if res.GasUsed > input.GasLimit {
		return nil, fmt.Errorf("gas used %d exceeds gas limit %d", res.GasUsed, input.GasLimit)
	}
	number := parent.Number.Uint64() + 1
	if a.expected != nil {
		if root, ok := a.expected(number); ok && root != res.StateRoot {
			return nil, fmt.Errorf("%w: block %d has %s, expected %s", ErrStateRootMismatch, number, res.StateRoot, root)
		}
	}
	a.state.add(res.StateNodes)

	block, receiptsRoot, err := a.assemble(input, res)
	if err != nil {
		return nil, err
	}
	output, err := a.OutputAt(block.Header())
	if err != nil {
		return nil, err
	}
	return &Commitment{
		Block:        block,
		Receipts:     res.Receipts,
		BlockHash:    block.Hash(),
		StateRoot:    res.StateRoot,
		ReceiptsRoot: receiptsRoot,
		Output:       output,
	}, nil
}

func (a *Adapter) blockInput(parent *types.Header, attrs *eth.PayloadAttributes) (*BlockInput, error) {
	if uint64(attrs.Timestamp) <= parent.Time {
		return nil, fmt.Errorf("timestamp %d is not after parent timestamp %d", attrs.Timestamp, parent.Time)
	}
	if attrs.GasLimit == nil {
		return nil, errors.New("attributes have no gas limit")
	}
	txs := make(types.Transactions, 0, len(attrs.Transactions))
	for i, raw := range attrs.Transactions {
		var tx types.Transaction
		if err := tx.UnmarshalBinary(raw); err != nil {
			return nil, fmt.Errorf("failed to decode transaction %d: %w", i, err)
		}
		txs = append(txs, &tx)
	}
	var withdrawals types.Withdrawals
	if attrs.Withdrawals != nil {
		withdrawals = *attrs.Withdrawals
	}
	if a.rollupCfg.IsCanyon(uint64(attrs.Timestamp)) && len(withdrawals) > 0 {
		return nil, errors.New("withdrawals are not supported")
	}
	return &BlockInput{
		ChainID:          a.chainID,
		Parent:           parent,
		Timestamp:        uint64(attrs.Timestamp),
		FeeRecipient:     attrs.SuggestedFeeRecipient,
		PrevRandao:       common.Hash(attrs.PrevRandao),
		GasLimit:         uint64(*attrs.GasLimit),
		Transactions:     txs,
		Withdrawals:      withdrawals,
		ParentBeaconRoot: attrs.ParentBeaconBlockRoot,
	}, nil
}

func (a *Adapter) assemble(input *BlockInput, res *TransitionResult) (*types.Block, common.Hash, error) {
	opaqueTxs, err := eth.EncodeTransactions(input.Transactions)
	if err != nil {
		return nil, common.Hash{}, err
	}
	opaqueReceipts, err := eth.EncodeReceipts(res.Receipts)
	if err != nil {
		return nil, common.Hash{}, err
	}
	txRoot, _ := mpt.WriteTrie(opaqueTxs)
	receiptsRoot, _ := mpt.WriteTrie(opaqueReceipts)

	header := &types.Header{
		ParentHash:  input.Parent.Hash(),
		UncleHash:   types.EmptyUncleHash,
		Coinbase:    input.FeeRecipient,
		Root:        res.StateRoot,
		TxHash:      txRoot,
		ReceiptHash: receiptsRoot,
		Bloom:       logsBloom(res.Receipts),
		Difficulty:  common.Big0,
		Number:      new(big.Int).Add(input.Parent.Number, common.Big1),
		GasLimit:    input.GasLimit,
		GasUsed:     res.GasUsed,
		Time:        input.Timestamp,
		MixDigest:   input.PrevRandao,
		Nonce:       types.EncodeNonce(0),
		BaseFee:     res.BaseFee,
	}
	body := types.Body{Transactions: input.Transactions}
	if a.rollupCfg.IsCanyon(input.Timestamp) {
		header.WithdrawalsHash = &types.EmptyWithdrawalsHash
		body.Withdrawals = types.Withdrawals{}
	}
	if input.ParentBeaconRoot != nil {
		// no blob txs on L2, the blob gas fields are still required next to the beacon root
		zero := uint64(0)
		header.BlobGasUsed = &zero
		header.ExcessBlobGas = &zero
		header.ParentBeaconRoot = input.ParentBeaconRoot
	}
	return types.NewBlockWithHeader(header).WithBody(body), receiptsRoot, nil
}

func logsBloom(receipts types.Receipts) types.Bloom {
	var bloom types.Bloom
	for _, r := range receipts {
		for _, l := range r.Logs {
			bloom.Add(l.Address.Bytes())
			for _, topic := range l.Topics {
				bloom.Add(topic[:])
			}
		}
	}
	return bloom
}

// OutputAt computes the output of the block with the given header. The withdrawals storage
// root is read from the block's state.
func (a *Adapter) OutputAt(header *types.Header) (*eth.OutputV0, error) {
	blockHash := header.Hash()
	if a.hinter != nil {
		a.hinter.HintWithdrawalsRoot(blockHash, a.chainID)
	}
	storageRoot, err := l2.NewStateTrie(header.Root, a.chainID, a.state).StorageRoot(predeploys.L2ToL1MessagePasserAddr)
	if err != nil {
		return nil, fmt.Errorf("withdrawals trie unavailable at block %s: %w", blockHash, err)
	}
	return &eth.OutputV0{
		StateRoot:                eth.Bytes32(header.Root),
		MessagePasserStorageRoot: eth.Bytes32(storageRoot),
		BlockHash:                blockHash,
	}, nil
}

// overlayState serves trie nodes written during this run before asking the oracle.
type overlayState struct {
	nodes  map[common.Hash][]byte
	oracle l2.StateOracle
}

func newOverlayState(oracle l2.StateOracle) *overlayState {
	return &overlayState{nodes: make(map[common.Hash][]byte), oracle: oracle}
}

func (o *overlayState) add(nodes []hexutil.Bytes) {
	for _, n := range nodes {
		o.nodes[crypto.Keccak256Hash(n)] = n
	}
}

func (o *overlayState) NodeByHash(nodeHash common.Hash, chainID eth.ChainID) ([]byte, error) {
	if n, ok := o.nodes[nodeHash]; ok {
		return n, nil
	}
	return o.oracle.NodeByHash(nodeHash, chainID)
}

func (o *overlayState) CodeByHash(codeHash common.Hash, chainID eth.ChainID) ([]byte, error) {
	return o.oracle.CodeByHash(codeHash, chainID)
}
