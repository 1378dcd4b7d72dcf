package derive

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
)

// ChannelFlusher is implemented by stages that can drop the channel they are currently reading.
type ChannelFlusher interface {
	FlushChannel()
}

type RawChannelProvider interface {
	NextData(ctx context.Context) ([]byte, error)
	Origin() eth.L1BlockRef
}

// ChannelInReader reads a batch from the channel
// This does decompression and limits the max RLP size
// This is a pure function from the channel, but each channel (or channel fragment)
// must be tagged with an L1 inclusion block to be passed to the batch queue.
type ChannelInReader struct {
	log    log.Logger
	cfg    *rollup.Config
	spec   *rollup.ChainSpec
	limits Limits

	nextBatchFn func() (*BatchData, error)

	prev RawChannelProvider

	metrics Metrics
}

var _ NextBatchProvider = (*ChannelInReader)(nil)

// NewChannelInReader creates a ChannelInReader, which should be Reset(origin) before use.
func NewChannelInReader(log log.Logger, cfg *rollup.Config, limits Limits, prev RawChannelProvider, metrics Metrics) *ChannelInReader {
	return &ChannelInReader{
		log:     log,
		cfg:     cfg,
		spec:    rollup.NewChainSpec(cfg),
		limits:  limits,
		prev:    prev,
		metrics: metrics,
	}
}

func (cr *ChannelInReader) Origin() eth.L1BlockRef {
	return cr.prev.Origin()
}

// WriteChannel sets the data of the channel that batches are read from next.
func (cr *ChannelInReader) WriteChannel(data []byte) error {
	origin := cr.prev.Origin()
	maxRLPBytes := cr.limits.maxRLPBytesPerChannel(cr.spec, origin.Time)
	nextBatchFn, err := BatchReader(bytes.NewBuffer(data), maxRLPBytes, cr.cfg.IsFjord(origin.Time))
	if err != nil {
		return err
	}
	cr.nextBatchFn = nextBatchFn
	return nil
}

// NextChannel forces the next read to continue with the next channel,
// resetting any decoding/decompression state to a fresh start.
func (cr *ChannelInReader) NextChannel() {
	cr.nextBatchFn = nil
}

// skipChannel drops the rest of the current channel after a decoding failure.
func (cr *ChannelInReader) skipChannel(reason string, err error) error {
	cr.log.Warn("skipping invalid channel", "reason", reason, "origin", cr.Origin(), "err", err)
	cr.metrics.RecordChannelInvalid()
	cr.NextChannel()
	return NotEnoughData
}

// NextBatch pulls out the next batch from the channel if it has it.
// It returns io.EOF when it cannot make any more progress.
// It will return a temporary error if it needs to be called again to advance some internal state.
func (cr *ChannelInReader) NextBatch(ctx context.Context) (Batch, error) {
	if cr.nextBatchFn == nil {
		data, err := cr.prev.NextData(ctx)
		if err != nil {
			return nil, err
		}
		if err := cr.WriteChannel(data); err != nil {
			return nil, cr.skipChannel("decompression", err)
		}
	}

	batchData, err := cr.nextBatchFn()
	if err == io.EOF {
		cr.NextChannel()
		return nil, NotEnoughData
	} else if err != nil {
		return nil, cr.skipChannel("read", err)
	}

	batch := batchWithMetadata{comprAlgo: batchData.ComprAlgo}
	switch batchData.GetBatchType() {
	case SingularBatchType:
		batch.Batch, err = GetSingularBatch(batchData)
		if err != nil {
			return nil, cr.skipChannel("singular batch", err)
		}
		batch.LogContext(cr.log).Debug("decoded singular batch from channel", "stage_origin", cr.Origin())
		return batch, nil
	case SpanBatchType:
		if origin := cr.Origin(); !cr.cfg.IsDelta(origin.Time) {
			// Check hard fork activation with the L1 inclusion block time instead of the L1 origin block time.
			// Therefore, even if the batch passed this rule, it can be dropped in the batch queue.
			// This is just for early dropping invalid batches as soon as possible.
			cr.log.Warn("dropping span batch included before Delta", "origin", origin, "origin_time", origin.Time)
			cr.metrics.RecordBatchDropped()
			return nil, NotEnoughData
		}
		batch.Batch, err = DeriveSpanBatch(batchData, cr.cfg.BlockTime, cr.cfg.Genesis.L2Time, cr.cfg.L2ChainID)
		if err != nil {
			return nil, cr.skipChannel("span batch", err)
		}
		batch.LogContext(cr.log).Debug("decoded span batch from channel", "stage_origin", cr.Origin())
		return batch, nil
	default:
		// error is bubbled up to user, but pipeline can skip the batch and continue after.
		return nil, cr.skipChannel("batch type", fmt.Errorf("unrecognized batch type: %d", batchData.GetBatchType()))
	}
}

func (cr *ChannelInReader) Reset(ctx context.Context, _ eth.L1BlockRef, _ eth.SystemConfig) error {
	cr.nextBatchFn = nil
	return io.EOF
}

// FlushChannel discards the data of the channel currently being read.
func (cr *ChannelInReader) FlushChannel() {
	cr.nextBatchFn = nil
}
