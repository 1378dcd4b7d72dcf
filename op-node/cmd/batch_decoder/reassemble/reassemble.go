package reassemble

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup"
	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup/derive"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/safemath"
)

// DefaultChannelTimeout is used when neither the limits nor a rollup config set one.
const DefaultChannelTimeout = 300

type FrameSummary struct {
	Block       uint64           `json:"block"`
	TxIndex     int              `json:"tx_index"`
	ID          derive.ChannelID `json:"id"`
	FrameNumber uint16           `json:"frame_number"`
	DataLength  int              `json:"data_length"`
	IsLast      bool             `json:"is_last"`
}

type InvalidFrames struct {
	Block   uint64 `json:"block"`
	TxIndex int    `json:"tx_index"`
	Error   string `json:"error"`
}

// Frames parses the frames of every transaction. Transactions that do not hold valid frames are
// reported as invalid and skipped, the same way derivation skips them.
func Frames(txs []TxData) ([]FrameSummary, []InvalidFrames) {
	var frames []FrameSummary
	var invalid []InvalidFrames
	for i, tx := range txs {
		parsed, err := derive.ParseFrames(tx.Data)
		if err != nil {
			invalid = append(invalid, InvalidFrames{Block: tx.Block, TxIndex: i, Error: err.Error()})
			continue
		}
		for _, f := range parsed {
			frames = append(frames, FrameSummary{
				Block:       tx.Block,
				TxIndex:     i,
				ID:          f.ID,
				FrameNumber: f.FrameNumber,
				DataLength:  len(f.Data),
				IsLast:      f.IsLast,
			})
		}
	}
	return frames, invalid
}

type BatchSummary struct {
	Type      int          `json:"type"`
	Timestamp uint64       `json:"timestamp,omitempty"`
	Epoch     uint64       `json:"epoch,omitempty"`
	Parent    *common.Hash `json:"parent,omitempty"`
	Blocks    int          `json:"blocks"`
	TxCount   int          `json:"tx_count"`
}

type ChannelResult struct {
	ID        derive.ChannelID `json:"id"`
	OpenBlock uint64           `json:"open_block"`
	Frames    int              `json:"frames"`
	IsReady   bool             `json:"is_ready"`
	TimedOut  bool             `json:"timed_out"`
	Batches   []BatchSummary   `json:"batches"`
	// Error is set when the channel data could not be decoded in full.
	Error string `json:"error,omitempty"`
}

// Reassembler rebuilds channels from frames the way the channel bank does: a channel opens at
// the L1 block of its first frame and times out once a later frame lies past the timeout.
type Reassembler struct {
	log    log.Logger
	cfg    *rollup.Config
	limits derive.Limits
	spec   *rollup.ChainSpec
}

// NewReassembler creates a reassembler. A nil rollup config decodes singular batches only, with
// the pre-Fjord protocol limits.
func NewReassembler(logger log.Logger, cfg *rollup.Config, limits derive.Limits) *Reassembler {
	if cfg == nil {
		cfg = &rollup.Config{ChannelTimeoutBedrock: DefaultChannelTimeout}
	}
	return &Reassembler{log: logger, cfg: cfg, limits: limits, spec: rollup.NewChainSpec(cfg)}
}

// latest selects the fork rules of the most recent fork the config schedules.
const latest = math.MaxUint64

func (r *Reassembler) channelTimeout() uint64 {
	if r.limits.ChannelTimeout != 0 {
		return r.limits.ChannelTimeout
	}
	return r.spec.ChannelTimeout(latest)
}

func (r *Reassembler) maxRLPBytes() uint64 {
	if r.limits.MaxRLPBytesPerChannel != 0 {
		return r.limits.MaxRLPBytesPerChannel
	}
	return r.spec.MaxRLPBytesPerChannel(latest)
}

// Channels reassembles the channels the transactions carry, in order of their first frame.
func (r *Reassembler) Channels(txs []TxData) []ChannelResult {
	type entry struct {
		ch       *derive.Channel
		frames   int
		timedOut bool
	}
	var order []*entry
	open := make(map[derive.ChannelID]*entry)
	timeout := r.channelTimeout()
	for i, tx := range txs {
		frames, err := derive.ParseFrames(tx.Data)
		if err != nil {
			r.log.Warn("Skipping tx without valid frames", "block", tx.Block, "tx", i, "err", err)
			continue
		}
		inclusion := eth.L1BlockRef{Number: tx.Block}
		for _, f := range frames {
			e, ok := open[f.ID]
			if !ok {
				e = &entry{ch: derive.NewChannel(f.ID, inclusion)}
				open[f.ID] = e
				order = append(order, e)
			}
			if e.timedOut {
				continue
			}
			if tx.Block > safemath.SaturatingAdd(e.ch.OpenBlockNumber(), timeout) {
				r.log.Info("Channel timed out", "channel", f.ID, "open", e.ch.OpenBlockNumber(), "block", tx.Block)
				e.timedOut = true
				continue
			}
			if err := e.ch.AddFrame(f, inclusion); err != nil {
				r.log.Warn("Dropping frame", "channel", f.ID, "frame", f.FrameNumber, "err", err)
				continue
			}
			e.frames++
		}
	}

	results := make([]ChannelResult, 0, len(order))
	for _, e := range order {
		res := ChannelResult{
			ID:        e.ch.ID(),
			OpenBlock: e.ch.OpenBlockNumber(),
			Frames:    e.frames,
			IsReady:   e.ch.IsReady(),
			TimedOut:  e.timedOut,
			Batches:   []BatchSummary{},
		}
		if res.IsReady && !res.TimedOut {
			batches, err := r.decodeBatches(e.ch.Reader())
			res.Batches = append(res.Batches, batches...)
			if err != nil {
				res.Error = err.Error()
			}
		}
		results = append(results, res)
	}
	return results
}

func (r *Reassembler) decodeBatches(data io.Reader) ([]BatchSummary, error) {
	next, err := derive.BatchReader(data, r.maxRLPBytes(), r.spec.IsFjord(latest))
	if err != nil {
		return nil, fmt.Errorf("failed to read channel: %w", err)
	}
	var out []BatchSummary
	for {
		batchData, err := next()
		if errors.Is(err, io.EOF) {
			return out, nil
		} else if err != nil {
			return out, fmt.Errorf("failed to decode batch %d: %w", len(out), err)
		}
		summary, err := r.summarize(batchData)
		if err != nil {
			return out, err
		}
		out = append(out, summary)
	}
}

func (r *Reassembler) summarize(batchData *derive.BatchData) (BatchSummary, error) {
	switch batchData.GetBatchType() {
	case derive.SingularBatchType:
		batch, err := derive.GetSingularBatch(batchData)
		if err != nil {
			return BatchSummary{}, err
		}
		return BatchSummary{
			Type:      derive.SingularBatchType,
			Timestamp: batch.Timestamp,
			Epoch:     uint64(batch.EpochNum),
			Parent:    &batch.ParentHash,
			Blocks:    1,
			TxCount:   len(batch.Transactions),
		}, nil
	case derive.SpanBatchType:
		if r.cfg.BlockTime == 0 || r.cfg.L2ChainID == nil {
			// span batches are relative to the chain genesis
			return BatchSummary{Type: derive.SpanBatchType}, nil
		}
		batch, err := derive.DeriveSpanBatch(batchData, r.cfg.BlockTime, r.cfg.Genesis.L2Time, r.cfg.L2ChainID)
		if err != nil {
			return BatchSummary{}, fmt.Errorf("failed to derive span batch: %w", err)
		}
		return BatchSummary{
			Type:      derive.SpanBatchType,
			Timestamp: batch.GetTimestamp(),
			Epoch:     uint64(batch.GetStartEpochNum()),
			Blocks:    batch.GetBlockCount(),
			TxCount:   int(batch.TxCount()),
		}, nil
	default:
		return BatchSummary{}, fmt.Errorf("unrecognized batch type %d", batchData.GetBatchType())
	}
}
