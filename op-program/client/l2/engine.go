package l2

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup"
	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup/derive"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
)

var (
	ErrNotFound       = ethereum.NotFound
	ErrNotCanonical   = errors.New("block does not extend the canonical head")
	ErrUnknownVersion = errors.New("unsupported output version")
)

// OracleEngine tracks the canonical L2 chain of one rollup, from the agreed head onwards.
// Ancestors of the agreed head are loaded from the oracle by parent hash when first needed;
// blocks produced in this run are appended with Append and never requested from the host.
type OracleEngine struct {
	logger    log.Logger
	rollupCfg *rollup.Config
	chainID   eth.ChainID
	oracle    Oracle

	head      *types.Block
	local     map[common.Hash]*types.Block
	hashByNum map[uint64]common.Hash
	earliest  *types.Block
}

var _ derive.L2Source = (*OracleEngine)(nil)

// NewOracleEngine loads the agreed L2 head named by the agreed output root.
func NewOracleEngine(logger log.Logger, rollupCfg *rollup.Config, oracle Oracle, agreedOutputRoot common.Hash) (*OracleEngine, error) {
	chainID := eth.ChainIDFromBig(rollupCfg.L2ChainID)
	output, err := oracle.OutputByRoot(agreedOutputRoot, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to load agreed output %s: %w", agreedOutputRoot, err)
	}
	outputV0, ok := output.(*eth.OutputV0)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnknownVersion, output)
	}
	head, err := oracle.BlockByHash(outputV0.BlockHash, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to load agreed L2 block %s: %w", outputV0.BlockHash, err)
	}
	if head.Root() != common.Hash(outputV0.StateRoot) {
		return nil, fmt.Errorf("agreed L2 block %s has state root %s, but the agreed output commits to %s",
			head.Hash(), head.Root(), common.Hash(outputV0.StateRoot))
	}
	logger.Info("Loaded agreed L2 head", "hash", head.Hash(), "number", head.NumberU64())
	return NewOracleEngineAt(logger, rollupCfg, oracle, head), nil
}

// NewOracleEngineAt starts the canonical chain at the given head block.
func NewOracleEngineAt(logger log.Logger, rollupCfg *rollup.Config, oracle Oracle, head *types.Block) *OracleEngine {
	return &OracleEngine{
		logger:    logger,
		rollupCfg: rollupCfg,
		chainID:   eth.ChainIDFromBig(rollupCfg.L2ChainID),
		oracle:    oracle,
		head:      head,
		local:     make(map[common.Hash]*types.Block),
		hashByNum: map[uint64]common.Hash{head.NumberU64(): head.Hash()},
		earliest:  head,
	}
}

func (o *OracleEngine) ChainID() eth.ChainID {
	return o.chainID
}

func (o *OracleEngine) HeadBlock() *types.Block {
	return o.head
}

func (o *OracleEngine) Head() (eth.L2BlockRef, error) {
	return o.blockRef(o.head)
}

// Append extends the canonical chain with a block built on top of the current head.
func (o *OracleEngine) Append(block *types.Block) error {
	if block.ParentHash() != o.head.Hash() || block.NumberU64() != o.head.NumberU64()+1 {
		return fmt.Errorf("%w: block %s (parent %s) on head %s", ErrNotCanonical,
			eth.ToBlockID(block), block.ParentHash(), eth.ToBlockID(o.head))
	}
	o.local[block.Hash()] = block
	o.hashByNum[block.NumberU64()] = block.Hash()
	o.head = block
	return nil
}

func (o *OracleEngine) BlockByHash(hash common.Hash) (*types.Block, error) {
	if block, ok := o.local[hash]; ok {
		return block, nil
	}
	return o.oracle.BlockByHash(hash, o.chainID)
}

// BlockByNumber returns the canonical block with the given number.
func (o *OracleEngine) BlockByNumber(number uint64) (*types.Block, error) {
	if number > o.head.NumberU64() {
		return nil, fmt.Errorf("%w: block %d is past the L2 head %d", ErrNotFound, number, o.head.NumberU64())
	}
	if hash, ok := o.hashByNum[number]; ok {
		return o.BlockByHash(hash)
	}
	block := o.earliest
	for block.NumberU64() > number {
		parent, err := o.oracle.BlockByHash(block.ParentHash(), o.chainID)
		if err != nil {
			return nil, fmt.Errorf("failed to walk back to L2 block %d: %w", number, err)
		}
		block = parent
		o.hashByNum[block.NumberU64()] = block.Hash()
		o.earliest = block
	}
	return block, nil
}

func (o *OracleEngine) blockRef(block *types.Block) (eth.L2BlockRef, error) {
	payload, err := eth.BlockAsPayload(block)
	if err != nil {
		return eth.L2BlockRef{}, err
	}
	return derive.PayloadToBlockRef(o.rollupCfg, payload)
}

func (o *OracleEngine) L2BlockRefByNumber(ctx context.Context, number uint64) (eth.L2BlockRef, error) {
	block, err := o.BlockByNumber(number)
	if err != nil {
		return eth.L2BlockRef{}, err
	}
	return o.blockRef(block)
}

func (o *OracleEngine) L2BlockRefByHash(ctx context.Context, hash common.Hash) (eth.L2BlockRef, error) {
	block, err := o.BlockByHash(hash)
	if err != nil {
		return eth.L2BlockRef{}, err
	}
	return o.blockRef(block)
}

func (o *OracleEngine) PayloadByNumber(ctx context.Context, number uint64) (*eth.ExecutionPayload, error) {
	block, err := o.BlockByNumber(number)
	if err != nil {
		return nil, err
	}
	return eth.BlockAsPayload(block)
}

func (o *OracleEngine) SystemConfigByL2Hash(ctx context.Context, hash common.Hash) (eth.SystemConfig, error) {
	block, err := o.BlockByHash(hash)
	if err != nil {
		return eth.SystemConfig{}, err
	}
	payload, err := eth.BlockAsPayload(block)
	if err != nil {
		return eth.SystemConfig{}, err
	}
	return derive.PayloadToSystemConfig(o.rollupCfg, payload)
}
