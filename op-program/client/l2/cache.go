package l2

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
)

// CacheMetrics is notified of every cache lookup.
type CacheMetrics interface {
	RecordCacheHit(cache string)
	RecordCacheMiss(cache string)
}

// CacheConfig holds the capacity, in entries, of each cache.
type CacheConfig struct {
	// Blocks should be set large enough to handle the pipeline reset process of walking back from L2 head to find
	// the L1 origin that is old enough to start buffering channel data from.
	Blocks   int
	Nodes    int
	Codes    int
	Outputs  int
	Receipts int
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Blocks:   3_000,
		Nodes:    100_000,
		Codes:    10_000,
		Outputs:  100,
		Receipts: 100,
	}
}

// CachingOracle is an implementation of Oracle that delegates to another implementation, adding caching of all results.
// Entries are keyed by hash alone: the chain id only routes the request to the right data.
type CachingOracle struct {
	oracle  Oracle
	metrics CacheMetrics
	blocks  *simplelru.LRU[common.Hash, *types.Block]
	nodes   *simplelru.LRU[common.Hash, []byte]
	rcpts   *simplelru.LRU[common.Hash, types.Receipts]
	codes   *simplelru.LRU[common.Hash, []byte]
	outputs *simplelru.LRU[common.Hash, eth.Output]
}

var _ Oracle = (*CachingOracle)(nil)

func NewCachingOracle(oracle Oracle, cfg CacheConfig, metrics CacheMetrics) *CachingOracle {
	blockLRU, _ := simplelru.NewLRU[common.Hash, *types.Block](max(cfg.Blocks, 1), nil)
	nodeLRU, _ := simplelru.NewLRU[common.Hash, []byte](max(cfg.Nodes, 1), nil)
	rcptsLRU, _ := simplelru.NewLRU[common.Hash, types.Receipts](max(cfg.Receipts, 1), nil)
	codeLRU, _ := simplelru.NewLRU[common.Hash, []byte](max(cfg.Codes, 1), nil)
	outputLRU, _ := simplelru.NewLRU[common.Hash, eth.Output](max(cfg.Outputs, 1), nil)
	return &CachingOracle{
		oracle:  oracle,
		metrics: metrics,
		blocks:  blockLRU,
		rcpts:   rcptsLRU,
		nodes:   nodeLRU,
		codes:   codeLRU,
		outputs: outputLRU,
	}
}

func (o *CachingOracle) NodeByHash(nodeHash common.Hash, chainID eth.ChainID) ([]byte, error) {
	if node, ok := o.nodes.Get(nodeHash); ok {
		o.metrics.RecordCacheHit("l2_nodes")
		return node, nil
	}
	o.metrics.RecordCacheMiss("l2_nodes")
	node, err := o.oracle.NodeByHash(nodeHash, chainID)
	if err != nil {
		return nil, err
	}
	o.nodes.Add(nodeHash, node)
	return node, nil
}

func (o *CachingOracle) ReceiptsByBlockHash(blockHash common.Hash, chainID eth.ChainID) (*types.Block, types.Receipts, error) {
	if rcpts, ok := o.rcpts.Get(blockHash); ok {
		if block, ok := o.blocks.Get(blockHash); ok {
			o.metrics.RecordCacheHit("l2_receipts")
			return block, rcpts, nil
		}
	}
	o.metrics.RecordCacheMiss("l2_receipts")
	block, rcpts, err := o.oracle.ReceiptsByBlockHash(blockHash, chainID)
	if err != nil {
		return nil, nil, err
	}
	o.blocks.Add(blockHash, block)
	o.rcpts.Add(blockHash, rcpts)
	return block, rcpts, nil
}

func (o *CachingOracle) CodeByHash(codeHash common.Hash, chainID eth.ChainID) ([]byte, error) {
	if code, ok := o.codes.Get(codeHash); ok {
		o.metrics.RecordCacheHit("l2_codes")
		return code, nil
	}
	o.metrics.RecordCacheMiss("l2_codes")
	code, err := o.oracle.CodeByHash(codeHash, chainID)
	if err != nil {
		return nil, err
	}
	o.codes.Add(codeHash, code)
	return code, nil
}

func (o *CachingOracle) BlockByHash(blockHash common.Hash, chainID eth.ChainID) (*types.Block, error) {
	if block, ok := o.blocks.Get(blockHash); ok {
		o.metrics.RecordCacheHit("l2_blocks")
		return block, nil
	}
	o.metrics.RecordCacheMiss("l2_blocks")
	block, err := o.oracle.BlockByHash(blockHash, chainID)
	if err != nil {
		return nil, err
	}
	o.blocks.Add(blockHash, block)
	return block, nil
}

func (o *CachingOracle) OutputByRoot(root common.Hash, chainID eth.ChainID) (eth.Output, error) {
	if output, ok := o.outputs.Get(root); ok {
		o.metrics.RecordCacheHit("l2_outputs")
		return output, nil
	}
	o.metrics.RecordCacheMiss("l2_outputs")
	output, err := o.oracle.OutputByRoot(root, chainID)
	if err != nil {
		return nil, err
	}
	o.outputs.Add(root, output)
	return output, nil
}
