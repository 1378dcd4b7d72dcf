package derive

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/safemath"
)

// L1Fetcher is the L1 data the pipeline reads: headers, receipts and transactions.
type L1Fetcher interface {
	L1BlockRefByNumberFetcher
	L1ReceiptsFetcher
	L1TransactionFetcher
}

// L2Source is the view of the L2 chain the pipeline needs to find its reset point
// and to check span batches against already derived blocks.
type L2Source interface {
	SafeBlockFetcher
	SystemConfigL2Fetcher
	L2BlockRefByHash(ctx context.Context, hash common.Hash) (eth.L2BlockRef, error)
}

type ResettableStage interface {
	// Reset resets a pull stage. `base` refers to the L1 Block Reference to reset to, with corresponding configuration.
	Reset(ctx context.Context, base eth.L1BlockRef, baseCfg eth.SystemConfig) error
}

// PipelineState is the lifecycle state of the pipeline.
type PipelineState uint8

const (
	// PipelineIdle: the last step yielded attributes, or the pipeline has not stepped yet.
	PipelineIdle PipelineState = iota
	// PipelineAdvancing: the last step made progress without yielding (reset, origin advance, buffering).
	PipelineAdvancing
	// PipelineDrained: the L1 chain is exhausted. Terminal.
	PipelineDrained
	// PipelineErrored: a step failed. Terminal.
	PipelineErrored
)

func (s PipelineState) String() string {
	switch s {
	case PipelineIdle:
		return "idle"
	case PipelineAdvancing:
		return "advancing"
	case PipelineDrained:
		return "drained"
	case PipelineErrored:
		return "errored"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// DerivationPipeline is updated with new L1 data, and the Step() function can be iterated on to generate attributes.
type DerivationPipeline struct {
	log       log.Logger
	rollupCfg *rollup.Config
	spec      *rollup.ChainSpec
	limits    Limits
	l1Fetcher L1Fetcher
	l2        L2Source
	metrics   Metrics

	// stages in reset order, top of the stack first
	stages []ResettableStage

	// Special stages to keep track of
	traversal *L1Traversal
	attrib    *AttributesQueue

	// Index of the stage that is currently being reset.
	// >= len(stages) if no additional resetting is required
	resetting      int
	resetL2Safe    eth.L2BlockRef
	resetSysConfig eth.SystemConfig
	engineIsReset  bool

	// The L1 block the pipeline is currently deriving from
	origin eth.L1BlockRef

	state PipelineState
	err   error
}

// NewDerivationPipeline creates a DerivationPipeline, to turn L1 data into L2 block-inputs.
func NewDerivationPipeline(log log.Logger, rollupCfg *rollup.Config, limits Limits, l1Fetcher L1Fetcher, l1Blobs L1BlobsFetcher,
	l2Source L2Source, metrics Metrics) *DerivationPipeline {
	spec := rollup.NewChainSpec(rollupCfg)
	// Pull stages
	l1Traversal := NewL1Traversal(log, rollupCfg, l1Fetcher, metrics)
	dataSrc := NewDataSourceFactory(log, rollupCfg, l1Fetcher, l1Blobs) // auxiliary stage for L1Retrieval
	l1Src := NewL1Retrieval(log, dataSrc, l1Traversal)
	frameQueue := NewFrameQueue(log, l1Src, metrics)
	bank := NewChannelBank(log, rollupCfg, limits, frameQueue, metrics)
	chInReader := NewChannelInReader(log, rollupCfg, limits, bank, metrics)
	batchQueue := NewBatchQueue(log, rollupCfg, chInReader, l2Source, metrics)
	attrBuilder := NewFetchingAttributesBuilder(rollupCfg, l1Fetcher, l2Source)
	attributesQueue := NewAttributesQueue(log, rollupCfg, attrBuilder, batchQueue, metrics)

	// Reset from the top of the stack down to the L1 traversal.
	stages := []ResettableStage{attributesQueue, batchQueue, chInReader, bank, frameQueue, l1Src, l1Traversal}

	return &DerivationPipeline{
		log:       log,
		rollupCfg: rollupCfg,
		spec:      spec,
		limits:    limits,
		l1Fetcher: l1Fetcher,
		l2:        l2Source,
		metrics:   metrics,
		stages:    stages,
		traversal: l1Traversal,
		attrib:    attributesQueue,
		resetting: 0,
	}
}

// DepositsOnlyAttributes creates a deposits only copy of the last produced attributes and
// flushes the channel that the attributes were derived from.
func (dp *DerivationPipeline) DepositsOnlyAttributes(parent eth.BlockID, derivedFrom eth.L1BlockRef) (*AttributesWithParent, error) {
	return dp.attrib.DepositsOnlyAttributes(parent, derivedFrom)
}

// Reset signals a reset of all pipeline stages. The actual reset starts on the next Step,
// once the engine reset is confirmed. A drained or errored pipeline cannot be restarted.
func (dp *DerivationPipeline) Reset() {
	if dp.Finished() {
		dp.log.Warn("ignoring reset of finished derivation pipeline", "state", dp.state)
		return
	}
	dp.resetting = 0
	dp.resetSysConfig = eth.SystemConfig{}
	dp.resetL2Safe = eth.L2BlockRef{}
	dp.engineIsReset = false
	dp.metrics.RecordPipelineReset()
}

// ConfirmEngineReset must be called after the engine was brought to the safe head the
// pipeline resets from.
func (dp *DerivationPipeline) ConfirmEngineReset() {
	dp.engineIsReset = true
}

// Origin is the L1 block of the inner-most stage of the derivation pipeline,
// i.e. the L1 chain up to and including this point included and/or produced all the safe L2 blocks.
func (dp *DerivationPipeline) Origin() eth.L1BlockRef {
	return dp.origin
}

func (dp *DerivationPipeline) State() PipelineState {
	return dp.state
}

// Finished reports whether the pipeline reached a terminal state.
func (dp *DerivationPipeline) Finished() bool {
	return dp.state == PipelineDrained || dp.state == PipelineErrored
}

// Step tries to progress the pipeline once. It returns the next attributes when one was derived,
// nil attributes and a nil error when progress was made without output (stage reset, L1 origin
// advance, buffering), io.EOF when the L1 chain is exhausted, or any other error when
// derivation failed. Once io.EOF or an error is returned every later Step repeats it.
func (dp *DerivationPipeline) Step(ctx context.Context, pendingSafeHead eth.L2BlockRef) (*AttributesWithParent, error) {
	switch dp.state {
	case PipelineDrained:
		return nil, io.EOF
	case PipelineErrored:
		return nil, dp.err
	}
	attrib, err := dp.step(ctx, pendingSafeHead)
	switch {
	case err == nil && attrib != nil:
		dp.state = PipelineIdle
	case err == nil || errors.Is(err, NotEnoughData):
		dp.state = PipelineAdvancing
		err = nil
	case errors.Is(err, io.EOF):
		dp.log.Info("derivation pipeline drained", "origin", dp.origin)
		dp.state = PipelineDrained
		err = io.EOF
	default:
		if errors.Is(err, ErrCritical) {
			dp.metrics.RecordCriticalError()
		}
		dp.state = PipelineErrored
		dp.err = err
	}
	return attrib, err
}

func (dp *DerivationPipeline) step(ctx context.Context, pendingSafeHead eth.L2BlockRef) (*AttributesWithParent, error) {
	// if any stages need to be reset, do that first.
	if dp.resetting < len(dp.stages) {
		if !dp.engineIsReset {
			return nil, NewResetError(errors.New("cannot continue derivation until Engine has been reset"))
		}

		// After the Engine has been reset to ensure it is derived from the canonical L1 chain,
		// we still need to internally rewind the L1 traversal further,
		// so we can read all the L2 data necessary for constructing the next batches that come after the safe head.
		if pendingSafeHead != dp.resetL2Safe {
			if err := dp.initialReset(ctx, pendingSafeHead); err != nil {
				return nil, fmt.Errorf("failed initial reset: %w", err)
			}
		}

		if err := dp.stages[dp.resetting].Reset(ctx, dp.origin, dp.resetSysConfig); err == io.EOF {
			dp.log.Debug("reset of stage completed", "stage", dp.resetting, "origin", dp.origin)
			dp.resetting += 1
			return nil, nil
		} else if err != nil {
			return nil, fmt.Errorf("stage %d failed resetting: %w", dp.resetting, err)
		} else {
			return nil, nil
		}
	}

	prevOrigin := dp.origin
	newOrigin := dp.attrib.Origin()
	if prevOrigin != newOrigin {
		dp.origin = newOrigin
		dp.log.Debug("derivation origin changed", "origin", newOrigin)
	}

	if attrib, err := dp.attrib.NextAttributes(ctx, pendingSafeHead); err == nil {
		return attrib, nil
	} else if err == io.EOF {
		// If every stage has returned io.EOF, try to advance the L1 Origin
		return nil, dp.traversal.AdvanceL1Block(ctx)
	} else if errors.Is(err, NotEnoughData) {
		return nil, err
	} else {
		return nil, fmt.Errorf("derivation failed: %w", err)
	}
}

// initialReset does the initial reset work of finding the L1 point to rewind back to
func (dp *DerivationPipeline) initialReset(ctx context.Context, resetL2Safe eth.L2BlockRef) error {
	dp.log.Info("Rewinding derivation-pipeline L1 traversal to handle reset")

	// Walk back L2 chain to find the L1 origin that is old enough to start buffering channel data from.
	pipelineL2 := resetL2Safe
	l1Origin := resetL2Safe.L1Origin

	pipelineOrigin, err := dp.l1BlockRefByHash(ctx, l1Origin.Hash)
	if err != nil {
		return NewTemporaryError(fmt.Errorf("failed to fetch the new L1 progress: origin: %s; err: %w", pipelineL2.L1Origin, err))
	}

	for {
		afterL2Genesis := pipelineL2.Number > dp.rollupCfg.Genesis.L2.Number
		afterL1Genesis := pipelineL2.L1Origin.Number > dp.rollupCfg.Genesis.L1.Number
		afterChannelTimeout := safemath.SaturatingAdd(pipelineL2.L1Origin.Number, dp.limits.channelTimeout(dp.spec, pipelineOrigin.Time)) > l1Origin.Number
		if afterL2Genesis && afterL1Genesis && afterChannelTimeout {
			parent, err := dp.l2.L2BlockRefByHash(ctx, pipelineL2.ParentHash)
			if err != nil {
				return NewResetError(fmt.Errorf("failed to fetch L2 parent block %s: %w", pipelineL2.ParentID(), err))
			}
			pipelineL2 = parent
			pipelineOrigin, err = dp.l1BlockRefByHash(ctx, pipelineL2.L1Origin.Hash)
			if err != nil {
				return NewTemporaryError(fmt.Errorf("failed to fetch the new L1 progress: origin: %s; err: %w", pipelineL2.L1Origin, err))
			}
		} else {
			break
		}
	}

	sysCfg, err := dp.l2.SystemConfigByL2Hash(ctx, pipelineL2.Hash)
	if err != nil {
		return NewTemporaryError(fmt.Errorf("failed to fetch L1 config of L2 block %s: %w", pipelineL2.ID(), err))
	}

	dp.origin = pipelineOrigin
	dp.resetSysConfig = sysCfg
	dp.resetL2Safe = resetL2Safe
	return nil
}

func (dp *DerivationPipeline) l1BlockRefByHash(ctx context.Context, hash common.Hash) (eth.L1BlockRef, error) {
	info, err := dp.l1Fetcher.InfoByHash(ctx, hash)
	if err != nil {
		return eth.L1BlockRef{}, err
	}
	return eth.InfoToL1BlockRef(info), nil
}
