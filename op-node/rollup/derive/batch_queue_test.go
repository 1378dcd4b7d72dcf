package derive

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/mantle-faultproof/op-node/metrics"
	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/testlog"
)

type fakeBatchQueueInput struct {
	origin  eth.L1BlockRef
	batches []Batch
	flushed int
}

func (f *fakeBatchQueueInput) FlushChannel() {
	f.flushed++
}

func (f *fakeBatchQueueInput) Origin() eth.L1BlockRef {
	return f.origin
}

func (f *fakeBatchQueueInput) NextBatch(_ context.Context) (Batch, error) {
	if len(f.batches) == 0 {
		return nil, io.EOF
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	return b, nil
}

func b(parent common.Hash, timestamp uint64, epoch eth.L1BlockRef, txs ...eth.Data) *SingularBatch {
	return &SingularBatch{
		ParentHash:   parent,
		EpochNum:     rollup.Epoch(epoch.Number),
		EpochHash:    epoch.Hash,
		Timestamp:    timestamp,
		Transactions: txs,
	}
}

func batchQueueTestSetup(t *testing.T) (*rollup.Config, eth.L1BlockRef, eth.L2BlockRef) {
	cfg := &rollup.Config{
		Genesis: rollup.Genesis{
			L2Time: 10,
		},
		BlockTime:         2,
		MaxSequencerDrift: 600,
		SeqWindowSize:     10,
	}
	l1A := eth.L1BlockRef{
		Hash:   common.Hash{0xa},
		Number: 10,
		Time:   100,
	}
	safeHead := eth.L2BlockRef{
		Hash:           common.Hash{0x55},
		Number:         5,
		ParentHash:     common.Hash{0x44},
		Time:           100,
		L1Origin:       l1A.ID(),
		SequenceNumber: 0,
	}
	return cfg, l1A, safeHead
}

func nextSafeHead(parent eth.L2BlockRef, batch *SingularBatch, hash common.Hash) eth.L2BlockRef {
	return eth.L2BlockRef{
		Hash:           hash,
		Number:         parent.Number + 1,
		ParentHash:     parent.Hash,
		Time:           batch.Timestamp,
		L1Origin:       batch.Epoch(),
		SequenceNumber: parent.SequenceNumber + 1,
	}
}

func TestBatchQueueAcceptsNextBatch(t *testing.T) {
	cfg, l1A, safeHead := batchQueueTestSetup(t)
	batch := b(safeHead.Hash, 102, l1A, eth.Data{0x02, 0x01})
	input := &fakeBatchQueueInput{origin: l1A, batches: []Batch{batch}}

	bq := NewBatchQueue(testlog.Logger(t, log.LevelError), cfg, input, nil, metrics.NoopMetrics)
	require.ErrorIs(t, bq.Reset(context.Background(), l1A, eth.SystemConfig{}), io.EOF)

	out, concluding, err := bq.NextBatch(context.Background(), safeHead)
	require.NoError(t, err)
	require.True(t, concluding)
	require.Equal(t, batch, out)

	// nothing more is buffered, and the sequencing window has not expired yet
	_, _, err = bq.NextBatch(context.Background(), nextSafeHead(safeHead, out, common.Hash{0x66}))
	require.ErrorIs(t, err, io.EOF)
}

// When two batches claim the same slot, the first one seen that is valid is used,
// and the later one is dropped once the slot is filled.
func TestBatchQueueFirstValidBatchWins(t *testing.T) {
	cfg, l1A, safeHead := batchQueueTestSetup(t)
	block6 := common.Hash{0x66}

	first := b(block6, 104, l1A, eth.Data{0x02, 0xaa})
	second := b(block6, 104, l1A, eth.Data{0x02, 0xbb})
	next := b(safeHead.Hash, 102, l1A, eth.Data{0x02, 0x01})
	input := &fakeBatchQueueInput{origin: l1A, batches: []Batch{first, second, next}}

	bq := NewBatchQueue(testlog.Logger(t, log.LevelError), cfg, input, nil, metrics.NoopMetrics)
	require.ErrorIs(t, bq.Reset(context.Background(), l1A, eth.SystemConfig{}), io.EOF)

	// the two future batches are buffered
	for i := 0; i < 2; i++ {
		_, _, err := bq.NextBatch(context.Background(), safeHead)
		require.ErrorIs(t, err, NotEnoughData)
	}
	out, _, err := bq.NextBatch(context.Background(), safeHead)
	require.NoError(t, err)
	require.Equal(t, next, out)

	head := nextSafeHead(safeHead, out, block6)
	out, _, err = bq.NextBatch(context.Background(), head)
	require.NoError(t, err)
	require.Equal(t, first, out)

	head = nextSafeHead(head, out, common.Hash{0x77})
	_, _, err = bq.NextBatch(context.Background(), head)
	require.ErrorIs(t, err, io.EOF)
	require.Empty(t, bq.batches)
}

func TestBatchQueueDropsInvalidThenAcceptsValid(t *testing.T) {
	cfg, l1A, safeHead := batchQueueTestSetup(t)

	wrongParent := b(common.Hash{0xde, 0xad}, 102, l1A, eth.Data{0x02, 0xaa})
	deposit := b(safeHead.Hash, 102, l1A, eth.Data{0x7e, 0x01})
	valid := b(safeHead.Hash, 102, l1A, eth.Data{0x02, 0xcc})
	input := &fakeBatchQueueInput{origin: l1A, batches: []Batch{wrongParent, deposit, valid}}

	bq := NewBatchQueue(testlog.Logger(t, log.LevelCrit), cfg, input, nil, metrics.NoopMetrics)
	require.ErrorIs(t, bq.Reset(context.Background(), l1A, eth.SystemConfig{}), io.EOF)

	var out *SingularBatch
	for i := 0; i < 3 && out == nil; i++ {
		batch, _, err := bq.NextBatch(context.Background(), safeHead)
		if err == NotEnoughData {
			continue
		}
		require.NoError(t, err)
		out = batch
	}
	require.Equal(t, valid, out)
}

func TestBatchQueueEmptyBatchAfterSequencingWindow(t *testing.T) {
	cfg, l1A, safeHead := batchQueueTestSetup(t)
	l1B := eth.L1BlockRef{
		Hash:       common.Hash{0xb},
		Number:     l1A.Number + 1,
		ParentHash: l1A.Hash,
		Time:       l1A.Time + 12,
	}
	input := &fakeBatchQueueInput{origin: l1A}

	bq := NewBatchQueue(testlog.Logger(t, log.LevelError), cfg, input, nil, metrics.NoopMetrics)
	require.ErrorIs(t, bq.Reset(context.Background(), l1A, eth.SystemConfig{}), io.EOF)

	_, _, err := bq.NextBatch(context.Background(), safeHead)
	require.ErrorIs(t, err, io.EOF)

	// advance L1 to the next block, then far enough that the window of epoch A expires
	input.origin = l1B
	_, _, err = bq.NextBatch(context.Background(), safeHead)
	require.ErrorIs(t, err, io.EOF)
	input.origin = eth.L1BlockRef{Hash: common.Hash{0xc}, Number: l1A.Number + cfg.SeqWindowSize + 1, Time: 500}

	out, concluding, err := bq.NextBatch(context.Background(), safeHead)
	require.NoError(t, err)
	require.True(t, concluding)
	require.Equal(t, b(safeHead.Hash, 102, l1A), out)
}

func TestBatchQueueFlushChannel(t *testing.T) {
	cfg, l1A, safeHead := batchQueueTestSetup(t)
	input := &fakeBatchQueueInput{origin: l1A, batches: []Batch{b(common.Hash{0x66}, 104, l1A)}}

	bq := NewBatchQueue(testlog.Logger(t, log.LevelError), cfg, input, nil, metrics.NoopMetrics)
	require.ErrorIs(t, bq.Reset(context.Background(), l1A, eth.SystemConfig{}), io.EOF)
	_, _, err := bq.NextBatch(context.Background(), safeHead)
	require.ErrorIs(t, err, NotEnoughData)
	require.Len(t, bq.batches, 1)

	bq.FlushChannel()
	require.Empty(t, bq.batches)
	require.Equal(t, 1, input.flushed)
}
