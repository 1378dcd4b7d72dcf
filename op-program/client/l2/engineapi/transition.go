// Package engineapi executes L2 blocks with the go-ethereum state transition, on state served by the
// preimage oracle.
package engineapi

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/consensus"
	"github.com/ethereum/go-ethereum/consensus/beacon"
	"github.com/ethereum/go-ethereum/consensus/misc/eip1559"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/triedb"

	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/engine"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/l2"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
)

var (
	ErrExceedsGasLimit  = errors.New("tx gas exceeds block gas limit")
	errInvalidGasLimit  = errors.New("invalid gas limit")
	errInvalidTimestamp = errors.New("invalid timestamp")
	errWrongChain       = errors.New("block input for another chain")
)

// HeaderSource loads L2 blocks by hash, for the ancestors read by the BLOCKHASH opcode.
type HeaderSource interface {
	BlockByHash(blockHash common.Hash, chainID eth.ChainID) (*types.Block, error)
}

// Transition is the go-ethereum backed StateTransition. State written by one block stays
// available to the blocks built on top of it.
type Transition struct {
	logger   log.Logger
	chainCfg *params.ChainConfig
	chainID  eth.ChainID
	blocks   HeaderSource
	db       *l2.OracleKeyValueStore
	engine   consensus.Engine

	headers map[common.Hash]*types.Header
	current *types.Header
}

var _ engine.StateTransition = (*Transition)(nil)

func NewTransition(logger log.Logger, chainCfg *params.ChainConfig, state l2.StateOracle, blocks HeaderSource) *Transition {
	chainID := eth.ChainIDFromBig(chainCfg.ChainID)
	return &Transition{
		logger:   logger,
		chainCfg: chainCfg,
		chainID:  chainID,
		blocks:   blocks,
		db:       l2.NewOracleBackedDB(memorydb.New(), state, chainID),
		engine:   beacon.New(nil),
		headers:  make(map[common.Hash]*types.Header),
	}
}

func (t *Transition) stateAt(root common.Hash) (*state.StateDB, error) {
	stateDB, err := state.New(root, state.NewDatabase(triedb.NewDatabase(rawdb.NewDatabase(t.db), nil), nil))
	if err != nil {
		return nil, err
	}
	stateDB.MakeSinglethreaded()
	return stateDB, nil
}

func (t *Transition) ApplyBlock(ctx context.Context, input *engine.BlockInput) (*engine.TransitionResult, error) {
	if input.ChainID != t.chainID {
		return nil, fmt.Errorf("%w: %s, expected %s", errWrongChain, &input.ChainID, &t.chainID)
	}
	if input.GasLimit > params.MaxGasLimit {
		return nil, fmt.Errorf("%w: have %v, max %v", errInvalidGasLimit, input.GasLimit, params.MaxGasLimit)
	}
	parent := input.Parent
	if input.Timestamp <= parent.Time {
		return nil, errInvalidTimestamp
	}
	t.headers[parent.Hash()] = parent
	t.current = parent

	statedb, err := t.stateAt(parent.Root)
	if err != nil {
		return nil, fmt.Errorf("get parent state: %w", err)
	}
	header := &types.Header{
		ParentHash:       parent.Hash(),
		Coinbase:         input.FeeRecipient,
		Difficulty:       common.Big0,
		Number:           new(big.Int).Add(parent.Number, common.Big1),
		GasLimit:         input.GasLimit,
		Time:             input.Timestamp,
		MixDigest:        input.PrevRandao,
		Nonce:            types.EncodeNonce(0),
		ParentBeaconRoot: input.ParentBeaconRoot,
	}
	header.BaseFee = eip1559.CalcBaseFee(t.chainCfg, parent)
	if header.ParentBeaconRoot != nil && t.chainCfg.IsCancun(header.Number, header.Time) {
		// Blob tx not supported on L2 but fields must be set when Cancun is active.
		zero := uint64(0)
		header.BlobGasUsed = &zero
		header.ExcessBlobGas = &zero
	}
	// the block context reads the blob gas fields, so it is created after they are set
	blockCtx := core.NewEVMBlockContext(header, t, &header.Coinbase, t.chainCfg, statedb)
	evm := vm.NewEVM(blockCtx, statedb, t.chainCfg, vm.Config{})
	if header.ParentBeaconRoot != nil {
		core.ProcessBeaconBlockRoot(*header.ParentBeaconRoot, evm)
	}
	if t.chainCfg.IsPrague(header.Number, header.Time) {
		core.ProcessParentBlockHash(header.ParentHash, evm)
	}

	gasPool := new(core.GasPool).AddGas(header.GasLimit)
	receipts := make(types.Receipts, 0, len(input.Transactions))
	for i, tx := range input.Transactions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if tx.Gas() > header.GasLimit {
			return nil, fmt.Errorf("%w tx gas: %d, block gas limit: %d", ErrExceedsGasLimit, tx.Gas(), header.GasLimit)
		}
		statedb.SetTxContext(tx.Hash(), i)
		receipt, err := core.ApplyTransaction(evm, gasPool, statedb, header, tx, &header.GasUsed)
		if err != nil {
			return nil, fmt.Errorf("failed to apply transaction to L2 block (tx %d): %w", i, err)
		}
		receipts = append(receipts, receipt)
	}

	root, err := statedb.Commit(header.Number.Uint64(), t.chainCfg.IsEIP158(header.Number), t.chainCfg.IsCancun(header.Number, header.Time))
	if err != nil {
		return nil, fmt.Errorf("state write error: %w", err)
	}
	if err := statedb.Database().TrieDB().Commit(root, false); err != nil {
		return nil, fmt.Errorf("trie write error: %w", err)
	}
	t.logger.Debug("Applied block", "number", header.Number, "txs", len(input.Transactions), "gasUsed", header.GasUsed, "root", root)
	return &engine.TransitionResult{
		StateRoot:  root,
		Receipts:   receipts,
		GasUsed:    header.GasUsed,
		BaseFee:    header.BaseFee,
		StateNodes: t.db.TakeWritten(),
	}, nil
}

// Chain context of the EVM. Only the ancestors of the executed block are served.

func (t *Transition) Config() *params.ChainConfig {
	return t.chainCfg
}

func (t *Transition) Engine() consensus.Engine {
	return t.engine
}

func (t *Transition) CurrentHeader() *types.Header {
	return t.current
}

func (t *Transition) GetHeader(hash common.Hash, number uint64) *types.Header {
	h := t.GetHeaderByHash(hash)
	if h == nil || h.Number.Uint64() != number {
		return nil
	}
	return h
}

func (t *Transition) GetHeaderByHash(hash common.Hash) *types.Header {
	if h, ok := t.headers[hash]; ok {
		return h
	}
	block, err := t.blocks.BlockByHash(hash, t.chainID)
	if err != nil {
		t.logger.Warn("Failed to load L2 block header", "hash", hash, "err", err)
		return nil
	}
	h := block.Header()
	t.headers[hash] = h
	return h
}

// GetHeaderByNumber walks back from the current header.
func (t *Transition) GetHeaderByNumber(number uint64) *types.Header {
	h := t.current
	for h != nil && h.Number.Uint64() > number {
		h = t.GetHeaderByHash(h.ParentHash)
	}
	if h == nil || h.Number.Uint64() != number {
		return nil
	}
	return h
}

func (t *Transition) GetTd(hash common.Hash, number uint64) *big.Int {
	return common.Big0
}
