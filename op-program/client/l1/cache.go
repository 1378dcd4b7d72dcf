package l1

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
	Headers  int
	Txs      int
	Receipts int
	Blobs    int
}

// DefaultCacheConfig is large enough for the pipeline reset, which walks back a full channel timeout of L1 headers.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Headers:  1000,
		Txs:      1000,
		Receipts: 1000,
		Blobs:    100,
	}
}

type txsEntry struct {
	info eth.BlockInfo
	txs  types.Transactions
}

type blobKey struct {
	blockHash common.Hash
	blob      eth.IndexedBlobHash
}

// CachingOracle is an implementation of Oracle that delegates to another implementation, adding caching of all results.
// Errors are never cached.
type CachingOracle struct {
	oracle  Oracle
	metrics CacheMetrics
	blocks  *simplelru.LRU[common.Hash, eth.BlockInfo]
	txs     *simplelru.LRU[common.Hash, txsEntry]
	rcpts   *simplelru.LRU[common.Hash, types.Receipts]
	blobs   *simplelru.LRU[blobKey, *eth.Blob]
}

var _ Oracle = (*CachingOracle)(nil)

func NewCachingOracle(oracle Oracle, cfg CacheConfig, metrics CacheMetrics) *CachingOracle {
	blockLRU, _ := simplelru.NewLRU[common.Hash, eth.BlockInfo](max(cfg.Headers, 1), nil)
	txsLRU, _ := simplelru.NewLRU[common.Hash, txsEntry](max(cfg.Txs, 1), nil)
	rcptsLRU, _ := simplelru.NewLRU[common.Hash, types.Receipts](max(cfg.Receipts, 1), nil)
	blobsLRU, _ := simplelru.NewLRU[blobKey, *eth.Blob](max(cfg.Blobs, 1), nil)
	return &CachingOracle{
		oracle:  oracle,
		metrics: metrics,
		blocks:  blockLRU,
		txs:     txsLRU,
		rcpts:   rcptsLRU,
		blobs:   blobsLRU,
	}
}

func (o *CachingOracle) HeaderByBlockHash(blockHash common.Hash) (eth.BlockInfo, error) {
	if block, ok := o.blocks.Get(blockHash); ok {
		o.metrics.RecordCacheHit("l1_headers")
		return block, nil
	}
	o.metrics.RecordCacheMiss("l1_headers")
	block, err := o.oracle.HeaderByBlockHash(blockHash)
	if err != nil {
		return nil, err
	}
	o.blocks.Add(blockHash, block)
	return block, nil
}

func (o *CachingOracle) TransactionsByBlockHash(blockHash common.Hash) (eth.BlockInfo, types.Transactions, error) {
	if entry, ok := o.txs.Get(blockHash); ok {
		o.metrics.RecordCacheHit("l1_txs")
		return entry.info, entry.txs, nil
	}
	o.metrics.RecordCacheMiss("l1_txs")
	block, txs, err := o.oracle.TransactionsByBlockHash(blockHash)
	if err != nil {
		return nil, nil, err
	}
	o.blocks.Add(blockHash, block)
	o.txs.Add(blockHash, txsEntry{info: block, txs: txs})
	return block, txs, nil
}

func (o *CachingOracle) ReceiptsByBlockHash(blockHash common.Hash) (eth.BlockInfo, types.Receipts, error) {
	if rcpts, ok := o.rcpts.Get(blockHash); ok {
		if block, ok := o.blocks.Get(blockHash); ok {
			o.metrics.RecordCacheHit("l1_receipts")
			return block, rcpts, nil
		}
	}
	o.metrics.RecordCacheMiss("l1_receipts")
	block, rcpts, err := o.oracle.ReceiptsByBlockHash(blockHash)
	if err != nil {
		return nil, nil, err
	}
	o.blocks.Add(blockHash, block)
	o.rcpts.Add(blockHash, rcpts)
	return block, rcpts, nil
}

func (o *CachingOracle) GetBlob(ref eth.L1BlockRef, blobHash eth.IndexedBlobHash) (*eth.Blob, error) {
	key := blobKey{blockHash: ref.Hash, blob: blobHash}
	if blob, ok := o.blobs.Get(key); ok {
		o.metrics.RecordCacheHit("l1_blobs")
		return blob, nil
	}
	o.metrics.RecordCacheMiss("l1_blobs")
	blob, err := o.oracle.GetBlob(ref, blobHash)
	if err != nil {
		return nil, err
	}
	o.blobs.Add(key, blob)
	return blob, nil
}
