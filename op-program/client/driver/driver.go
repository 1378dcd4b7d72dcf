package driver

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup"
	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup/derive"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/engine"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
)

var (
	// ErrTargetNotReached is returned when the L1 data is exhausted before the target was derived.
	ErrTargetNotReached = errors.New("L1 data exhausted before the target was reached")
	ErrUnexpectedParent = errors.New("attributes do not build on the current head")
	errFinished         = errors.New("driver already finished")
)

type State uint8

const (
	Bootstrapped State = iota
	Deriving
	Executing
	Finished
	Failed
)

func (s State) String() string {
	switch s {
	case Bootstrapped:
		return "bootstrapped"
	case Deriving:
		return "deriving"
	case Executing:
		return "executing"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

type Pipeline interface {
	Step(ctx context.Context, pendingSafeHead eth.L2BlockRef) (*derive.AttributesWithParent, error)
	Reset()
	ConfirmEngineReset()
	Origin() eth.L1BlockRef
	DepositsOnlyAttributes(parent eth.BlockID, derivedFrom eth.L1BlockRef) (*derive.AttributesWithParent, error)
}

// Engine is the canonical L2 chain the driver extends.
type Engine interface {
	HeadBlock() *types.Block
	Head() (eth.L2BlockRef, error)
	BlockByNumber(number uint64) (*types.Block, error)
	Append(block *types.Block) error
}

type Executor interface {
	Apply(ctx context.Context, parent *types.Header, attrs *eth.PayloadAttributes) (*engine.Commitment, error)
	OutputAt(header *types.Header) (*eth.OutputV0, error)
}

type Metrics interface {
	RecordL2Ref(name string, ref eth.L2BlockRef)
}

// Candidate is an executed block that is not part of the canonical chain yet.
type Candidate struct {
	*engine.Commitment
	Ref         eth.L2BlockRef
	DerivedFrom eth.L1BlockRef
}

// Result is the L2 block at the target and its output.
type Result struct {
	Head       eth.L2BlockRef
	Output     *eth.OutputV0
	OutputRoot eth.Bytes32
}

// Driver derives and executes L2 blocks of one chain until the target is reached. Every error
// moves it to Failed, and a finished or failed driver keeps returning its outcome.
type Driver struct {
	logger    log.Logger
	rollupCfg *rollup.Config
	pipeline  Pipeline
	engine    Engine
	exec      Executor
	target    Target
	metrics   Metrics

	state     State
	head      eth.L2BlockRef
	targetNum uint64
	err       error
}

func NewDriver(logger log.Logger, rollupCfg *rollup.Config, pipeline Pipeline, eng Engine, exec Executor, target Target, m Metrics) *Driver {
	return &Driver{
		logger:    logger,
		rollupCfg: rollupCfg,
		pipeline:  pipeline,
		engine:    eng,
		exec:      exec,
		target:    target,
		metrics:   m,
		state:     Bootstrapped,
	}
}

func (d *Driver) State() State {
	return d.state
}

// Head is the last block appended to the canonical chain.
func (d *Driver) Head() eth.L2BlockRef {
	return d.head
}

func (d *Driver) Target() Target {
	return d.target
}

func (d *Driver) Err() error {
	return d.err
}

func (d *Driver) fail(err error) error {
	d.state = Failed
	d.err = err
	d.logger.Error("Derivation failed", "head", d.head, "origin", d.pipeline.Origin(), "err", err)
	return err
}

// start resets the pipeline onto the agreed head.
func (d *Driver) start() error {
	head, err := d.engine.Head()
	if err != nil {
		return d.fail(fmt.Errorf("failed to load agreed L2 head: %w", err))
	}
	d.head = head
	targetNum, err := d.target.BlockNumber(d.rollupCfg)
	if err != nil {
		return d.fail(fmt.Errorf("invalid target %s: %w", d.target, err))
	}
	d.targetNum = targetNum
	d.metrics.RecordL2Ref("l2_safe", head)
	d.pipeline.Reset()
	d.pipeline.ConfirmEngineReset()
	d.state = Deriving
	if head.Number >= targetNum {
		d.logger.Info("Agreed head is already at the target", "head", head, "target", d.target)
		d.state = Finished
	}
	return nil
}

// NextCandidate steps the pipeline until it yields attributes for the head, and executes them.
// It returns io.EOF once the target is reached.
func (d *Driver) NextCandidate(ctx context.Context) (*Candidate, error) {
	switch d.state {
	case Bootstrapped:
		if err := d.start(); err != nil {
			return nil, err
		}
		if d.state == Finished {
			return nil, io.EOF
		}
	case Finished:
		return nil, io.EOF
	case Failed:
		return nil, d.err
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, d.fail(err)
		}
		d.state = Deriving
		attrs, err := d.pipeline.Step(ctx, d.head)
		if errors.Is(err, io.EOF) {
			return nil, d.fail(fmt.Errorf("%w: head %s, target %s, L1 origin %s", ErrTargetNotReached, d.head, d.target, d.pipeline.Origin()))
		} else if err != nil {
			return nil, d.fail(fmt.Errorf("derivation failed: %w", err))
		} else if attrs == nil {
			continue
		}
		return d.execute(ctx, attrs)
	}
}

func (d *Driver) execute(ctx context.Context, attrs *derive.AttributesWithParent) (*Candidate, error) {
	if attrs.Parent != d.head {
		return nil, d.fail(fmt.Errorf("%w: attributes parent %s, head %s", ErrUnexpectedParent, attrs.Parent, d.head))
	}
	d.state = Executing
	parent := d.engine.HeadBlock()
	c, err := d.exec.Apply(ctx, parent.Header(), attrs.Attributes)
	if err != nil {
		return nil, d.fail(err)
	}
	payload, err := eth.BlockAsPayload(c.Block)
	if err != nil {
		return nil, d.fail(fmt.Errorf("%w: %w", engine.ErrExecution, err))
	}
	ref, err := derive.PayloadToBlockRef(d.rollupCfg, payload)
	if err != nil {
		return nil, d.fail(fmt.Errorf("%w: %w", engine.ErrExecution, err))
	}
	return &Candidate{Commitment: c, Ref: ref, DerivedFrom: attrs.DerivedFrom}, nil
}

// Commit appends the candidate to the canonical chain.
func (d *Driver) Commit(c *Candidate) error {
	if d.state == Failed {
		return d.err
	}
	if d.state == Finished {
		return errFinished
	}
	if err := d.engine.Append(c.Block); err != nil {
		return d.fail(err)
	}
	d.head = c.Ref
	d.metrics.RecordL2Ref("l2_safe", c.Ref)
	d.logger.Info("Derived L2 block", "block", c.Ref, "derivedFrom", c.DerivedFrom, "output", c.OutputRoot())
	d.state = Deriving
	if c.Ref.Number >= d.targetNum {
		d.logger.Info("Derivation complete: reached target", "head", c.Ref, "target", d.target)
		d.state = Finished
	}
	return nil
}

// ReplaceWithDepositsOnly executes the deposits-only version of a rejected candidate in its place.
// The channel the candidate was derived from is flushed.
func (d *Driver) ReplaceWithDepositsOnly(ctx context.Context, c *Candidate) (*Candidate, error) {
	if d.state == Failed {
		return nil, d.err
	}
	attrs, err := d.pipeline.DepositsOnlyAttributes(d.head.ID(), c.DerivedFrom)
	if err != nil {
		return nil, d.fail(fmt.Errorf("failed to build deposits-only attributes: %w", err))
	}
	return d.execute(ctx, attrs)
}

// Step derives, executes and commits the next block.
func (d *Driver) Step(ctx context.Context) error {
	c, err := d.NextCandidate(ctx)
	if err != nil {
		return err
	}
	return d.Commit(c)
}

// RunComplete drives the chain to the target and returns the output there.
func (d *Driver) RunComplete(ctx context.Context) (Result, error) {
	for {
		if err := d.Step(ctx); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return Result{}, err
		}
	}
	return d.Result()
}

// Result returns the output at the target block. The target may lie before the head when the
// agreed head was already past it.
func (d *Driver) Result() (Result, error) {
	if d.state != Finished {
		return Result{}, fmt.Errorf("driver is %s, not finished", d.state)
	}
	number := min(d.targetNum, d.head.Number)
	block, err := d.engine.BlockByNumber(number)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load L2 block %d: %w", number, err)
	}
	output, err := d.exec.OutputAt(block.Header())
	if err != nil {
		return Result{}, fmt.Errorf("failed to compute output of L2 block %d: %w", number, err)
	}
	payload, err := eth.BlockAsPayload(block)
	if err != nil {
		return Result{}, err
	}
	ref, err := derive.PayloadToBlockRef(d.rollupCfg, payload)
	if err != nil {
		return Result{}, err
	}
	return Result{Head: ref, Output: output, OutputRoot: eth.OutputRoot(output)}, nil
}
