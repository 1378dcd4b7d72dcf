package interop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/driver"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
	"github.com/mantlenetworkio/mantle-faultproof/op-supervisor/supervisor/backend/depset"
)

// ErrInteropStalled is returned when every unfinished chain holds a candidate that cannot be judged.
var ErrInteropStalled = errors.New("interop derivation stalled: no chain can make progress")

// ChainDriver is the single-chain driver, extended by one candidate at a time.
type ChainDriver interface {
	NextCandidate(ctx context.Context) (*driver.Candidate, error)
	Commit(c *driver.Candidate) error
	ReplaceWithDepositsOnly(ctx context.Context, c *driver.Candidate) (*driver.Candidate, error)
	Head() eth.L2BlockRef
	Result() (driver.Result, error)
}

type Metrics interface {
	RecordInteropHold()
	RecordInteropReplacement()
}

type Chain struct {
	ID     eth.ChainID
	Driver ChainDriver
}

type chainState struct {
	Chain
	held *driver.Candidate
	done bool
}

// InteropDriver advances the chains of a dependency set together. A candidate block is only
// committed once all its executing messages are judged: valid blocks are committed, invalid
// ones are replaced by their deposits-only version, and indeterminate ones are held until the
// chains they depend on progress.
type InteropDriver struct {
	logger     log.Logger
	activation depset.ActivationConfig
	checker    *Checker
	index      *LogIndex
	metrics    Metrics
	chains     []*chainState
}

func NewInteropDriver(logger log.Logger, activation depset.ActivationConfig, checker *Checker, index *LogIndex, m Metrics, chains ...Chain) *InteropDriver {
	states := make([]*chainState, 0, len(chains))
	for _, c := range chains {
		states = append(states, &chainState{Chain: c})
	}
	return &InteropDriver{
		logger:     logger,
		activation: activation,
		checker:    checker,
		index:      index,
		metrics:    m,
		chains:     states,
	}
}

// RunComplete drives every chain to its target.
func (d *InteropDriver) RunComplete(ctx context.Context) error {
	for {
		progressed, err := d.round(ctx)
		if err != nil {
			return err
		}
		if d.allDone() {
			return nil
		}
		if !progressed {
			return d.stalled()
		}
	}
}

// round visits the unfinished chains in order of head timestamp, and returns after the first
// chain that made progress.
func (d *InteropDriver) round(ctx context.Context) (bool, error) {
	pending := make([]*chainState, 0, len(d.chains))
	for _, c := range d.chains {
		if !c.done {
			pending = append(pending, c)
		}
	}
	slices.SortFunc(pending, func(a, b *chainState) int {
		ta, tb := a.Driver.Head().Time, b.Driver.Head().Time
		if ta != tb {
			if ta < tb {
				return -1
			}
			return 1
		}
		return a.ID.Cmp(b.ID)
	})
	for _, c := range pending {
		progressed, err := d.advance(ctx, c)
		if err != nil {
			return false, err
		}
		if progressed {
			return true, nil
		}
	}
	return false, nil
}

func (d *InteropDriver) advance(ctx context.Context, c *chainState) (bool, error) {
	candidate := c.held
	if candidate == nil {
		next, err := c.Driver.NextCandidate(ctx)
		if errors.Is(err, io.EOF) {
			c.done = true
			d.index.Seal(c.ID)
			d.logger.Info("Chain reached target", "chain", c.ID, "head", c.Driver.Head())
			return true, nil
		} else if err != nil {
			return false, fmt.Errorf("chain %s: %w", &c.ID, err)
		}
		candidate = next
	}
	verdict := Valid
	if d.activation.IsInterop(c.ID, candidate.Ref.Time) {
		v, err := d.checker.Validate(&Block{
			ChainID:   c.ID,
			Number:    candidate.Ref.Number,
			Timestamp: candidate.Ref.Time,
			Receipts:  candidate.Receipts,
		})
		if err != nil {
			return false, err
		}
		verdict = v
	}
	switch verdict {
	case Indeterminate:
		if c.held == nil {
			d.metrics.RecordInteropHold()
			d.logger.Info("Holding candidate block", "chain", c.ID, "block", candidate.Ref)
		}
		c.held = candidate
		return false, nil
	case Invalid:
		c.held = nil
		d.metrics.RecordInteropReplacement()
		d.logger.Warn("Replacing invalid block with deposits-only block", "chain", c.ID, "block", candidate.Ref)
		replacement, err := c.Driver.ReplaceWithDepositsOnly(ctx, candidate)
		if err != nil {
			return false, fmt.Errorf("chain %s: %w", &c.ID, err)
		}
		candidate = replacement
	default:
		c.held = nil
	}
	if err := c.Driver.Commit(candidate); err != nil {
		return false, fmt.Errorf("chain %s: %w", &c.ID, err)
	}
	if err := d.index.Accept(c.ID, candidate.Block, candidate.Receipts); err != nil {
		return false, err
	}
	return true, nil
}

func (d *InteropDriver) allDone() bool {
	for _, c := range d.chains {
		if !c.done {
			return false
		}
	}
	return true
}

func (d *InteropDriver) stalled() error {
	for _, c := range d.chains {
		if c.held != nil {
			d.logger.Error("Candidate still held", "chain", c.ID, "block", c.held.Ref)
		}
	}
	return ErrInteropStalled
}

// Super returns the super root preimage of the chain outputs at the game timestamp.
func (d *InteropDriver) Super(timestamp uint64) (*eth.SuperV1, error) {
	outputs := make([]eth.ChainIDAndOutput, 0, len(d.chains))
	for _, c := range d.chains {
		res, err := c.Driver.Result()
		if err != nil {
			return nil, fmt.Errorf("chain %s: %w", &c.ID, err)
		}
		outputs = append(outputs, eth.ChainIDAndOutput{ChainID: c.ID, Output: res.OutputRoot})
	}
	return eth.NewSuperV1(timestamp, outputs...), nil
}
