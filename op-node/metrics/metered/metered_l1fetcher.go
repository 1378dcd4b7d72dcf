package metered

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
)

type L1FetcherMetrics interface {
	RecordL1Request(method string)
}

type L1Fetcher interface {
	L1BlockRefByNumber(context.Context, uint64) (eth.L1BlockRef, error)
	InfoByHash(ctx context.Context, hash common.Hash) (eth.BlockInfo, error)
	FetchReceipts(ctx context.Context, blockHash common.Hash) (eth.BlockInfo, types.Receipts, error)
	InfoAndTxsByHash(ctx context.Context, hash common.Hash) (eth.BlockInfo, types.Transactions, error)
}

// MeteredL1Fetcher counts the L1 requests made by the derivation pipeline.
type MeteredL1Fetcher struct {
	inner   L1Fetcher
	metrics L1FetcherMetrics
}

var _ L1Fetcher = (*MeteredL1Fetcher)(nil)

func NewMeteredL1Fetcher(inner L1Fetcher, metrics L1FetcherMetrics) *MeteredL1Fetcher {
	return &MeteredL1Fetcher{
		inner:   inner,
		metrics: metrics,
	}
}

func (m *MeteredL1Fetcher) L1BlockRefByNumber(ctx context.Context, num uint64) (eth.L1BlockRef, error) {
	m.metrics.RecordL1Request("L1BlockRefByNumber")
	return m.inner.L1BlockRefByNumber(ctx, num)
}

func (m *MeteredL1Fetcher) InfoByHash(ctx context.Context, hash common.Hash) (eth.BlockInfo, error) {
	m.metrics.RecordL1Request("InfoByHash")
	return m.inner.InfoByHash(ctx, hash)
}

func (m *MeteredL1Fetcher) FetchReceipts(ctx context.Context, blockHash common.Hash) (eth.BlockInfo, types.Receipts, error) {
	m.metrics.RecordL1Request("FetchReceipts")
	return m.inner.FetchReceipts(ctx, blockHash)
}

func (m *MeteredL1Fetcher) InfoAndTxsByHash(ctx context.Context, hash common.Hash) (eth.BlockInfo, types.Transactions, error) {
	m.metrics.RecordL1Request("InfoAndTxsByHash")
	return m.inner.InfoAndTxsByHash(ctx, hash)
}
