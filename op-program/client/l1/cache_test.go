package l1

import (
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/mantle-faultproof/op-node/metrics"
	preimage "github.com/mantlenetworkio/mantle-faultproof/op-preimage"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/testutils"
)

// Should implement Oracle
var _ Oracle = (*CachingOracle)(nil)

// countingOracle serves from the wrapped oracle and counts the calls made per method.
type countingOracle struct {
	inner Oracle
	calls map[string]int
}

func newCountingOracle(inner Oracle) *countingOracle {
	return &countingOracle{inner: inner, calls: make(map[string]int)}
}

func (c *countingOracle) HeaderByBlockHash(blockHash common.Hash) (eth.BlockInfo, error) {
	c.calls["header"]++
	return c.inner.HeaderByBlockHash(blockHash)
}

func (c *countingOracle) TransactionsByBlockHash(blockHash common.Hash) (eth.BlockInfo, types.Transactions, error) {
	c.calls["txs"]++
	return c.inner.TransactionsByBlockHash(blockHash)
}

func (c *countingOracle) ReceiptsByBlockHash(blockHash common.Hash) (eth.BlockInfo, types.Receipts, error) {
	c.calls["receipts"]++
	return c.inner.ReceiptsByBlockHash(blockHash)
}

func (c *countingOracle) GetBlob(ref eth.L1BlockRef, blobHash eth.IndexedBlobHash) (*eth.Blob, error) {
	c.calls["blob"]++
	return c.inner.GetBlob(ref, blobHash)
}

func newTestCache(t *testing.T, cfg CacheConfig, blocks ...*types.Block) (*CachingOracle, *countingOracle) {
	preimages := make(map[common.Hash][]byte)
	for _, block := range blocks {
		for k, v := range blockPreimages(t, block, nil) {
			preimages[k] = v
		}
	}
	stub := newCountingOracle(NewPreimageOracle(mapOracle(preimages), preimage.NoopHinter{}))
	return NewCachingOracle(stub, cfg, metrics.NoopMetrics), stub
}

func TestCachingOracleHeaderByBlockHash(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	block, _ := testutils.RandomBlock(rng, 0)
	oracle, stub := newTestCache(t, DefaultCacheConfig(), block)

	actual, err := oracle.HeaderByBlockHash(block.Hash())
	require.NoError(t, err)
	require.Equal(t, block.Hash(), actual.Hash())

	// Later calls should retrieve from cache
	actual, err = oracle.HeaderByBlockHash(block.Hash())
	require.NoError(t, err)
	require.Equal(t, block.Hash(), actual.Hash())
	require.Equal(t, 1, stub.calls["header"])
}

func TestCachingOracleTransactionsFillHeaders(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	block, _ := testutils.RandomBlock(rng, 0)
	oracle, stub := newTestCache(t, DefaultCacheConfig(), block)

	_, txs, err := oracle.TransactionsByBlockHash(block.Hash())
	require.NoError(t, err)
	require.Empty(t, txs)
	_, _, err = oracle.TransactionsByBlockHash(block.Hash())
	require.NoError(t, err)
	require.Equal(t, 1, stub.calls["txs"])

	// the header came along with the transactions
	_, err = oracle.HeaderByBlockHash(block.Hash())
	require.NoError(t, err)
	require.Zero(t, stub.calls["header"])
}

func TestCachingOracleDoesNotCacheErrors(t *testing.T) {
	oracle, stub := newTestCache(t, DefaultCacheConfig())
	for i := 0; i < 2; i++ {
		_, err := oracle.HeaderByBlockHash(common.Hash{0x01})
		require.Error(t, err)
	}
	require.Equal(t, 2, stub.calls["header"])
}

func TestCachingOracleEvictsLeastRecentlyUsed(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	a, _ := testutils.RandomBlock(rng, 0)
	b, _ := testutils.RandomBlock(rng, 0)
	c, _ := testutils.RandomBlock(rng, 0)
	oracle, stub := newTestCache(t, CacheConfig{Headers: 2, Txs: 1, Receipts: 1, Blobs: 1}, a, b, c)

	get := func(block *types.Block) {
		_, err := oracle.HeaderByBlockHash(block.Hash())
		require.NoError(t, err)
	}
	get(a)
	get(b)
	get(a) // a is now the most recently used
	require.Equal(t, 2, stub.calls["header"])

	get(c) // evicts b
	require.Equal(t, 3, stub.calls["header"])
	get(a)
	require.Equal(t, 3, stub.calls["header"])
	get(b)
	require.Equal(t, 4, stub.calls["header"])
}
