package tasks

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/mantle-faultproof/op-node/metrics"
	"github.com/mantlenetworkio/mantle-faultproof/op-node/metrics/metered"
	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup"
	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup/derive"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/driver"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/engine"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/l1"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/l2"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
)

// TransitionFactory creates the state transition that executes the blocks of one L2 chain.
type TransitionFactory func(logger log.Logger, rollupCfg *rollup.Config, l2Oracle l2.Oracle) (engine.StateTransition, error)

type DerivationResult struct {
	Head       eth.L2BlockRef
	BlockHash  common.Hash
	OutputRoot eth.Bytes32
}

type DerivationOptions struct {
	Limits  derive.Limits
	Metrics metrics.Metricer
	// Hinter, when set, receives the proactive hints of block execution and output computation.
	Hinter l2.OracleHinter
	// ExpectedStateRoot, when set, fails execution at the first block whose state root differs
	// from the known one. Used to find where a replay of a known chain diverges.
	ExpectedStateRoot engine.ExpectedStateRoot
}

// ChainInputs identify the derivation of one chain: from the agreed output root, with L1 data
// up to the L1 head, until the target.
type ChainInputs struct {
	RollupConfig     *rollup.Config
	L1Head           common.Hash
	AgreedOutputRoot common.Hash
	Target           driver.Target
}

// Chain is the wired derivation and execution of one L2 chain.
type Chain struct {
	Driver  *driver.Driver
	Engine  *l2.OracleEngine
	Adapter *engine.Adapter
}

// NewChain loads the L1 head and the agreed L2 head, and wires the derivation pipeline, the
// execution adapter and the driver on top of them.
func NewChain(logger log.Logger, in ChainInputs, l1Oracle l1.Oracle, l2Oracle l2.Oracle, stf engine.StateTransition, opts DerivationOptions) (*Chain, error) {
	cfg := in.RollupConfig
	m := opts.Metrics
	if m == nil {
		m = metrics.NoopMetrics
	}
	l1Source, err := l1.NewOracleL1Client(logger, l1Oracle, in.L1Head)
	if err != nil {
		return nil, err
	}
	l1Blobs := l1.NewBlobFetcher(logger, l1Oracle)
	eng, err := l2.NewOracleEngine(logger, cfg, l2Oracle, in.AgreedOutputRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to load agreed L2 head: %w", err)
	}
	pipeline := derive.NewDerivationPipeline(logger, cfg, opts.Limits, metered.NewMeteredL1Fetcher(l1Source, m), l1Blobs, eng, m)
	adapter := engine.NewAdapter(logger, cfg, stf, l2Oracle, opts.Hinter, m)
	if opts.ExpectedStateRoot != nil {
		adapter.SetExpectedStateRoot(opts.ExpectedStateRoot)
	}
	d := driver.NewDriver(logger, cfg, pipeline, eng, adapter, in.Target, m)
	return &Chain{Driver: d, Engine: eng, Adapter: adapter}, nil
}

// RunDerivation derives and executes the L2 chain until the target, and returns the output
// root at the target. The result lies at the agreed head when that is already past the target.
func RunDerivation(
	ctx context.Context,
	logger log.Logger,
	in ChainInputs,
	l1Oracle l1.Oracle,
	l2Oracle l2.Oracle,
	stf engine.StateTransition,
	opts DerivationOptions,
) (DerivationResult, error) {
	if err := opts.Limits.Check(); err != nil {
		return DerivationResult{}, fmt.Errorf("invalid derivation limits: %w", err)
	}
	chain, err := NewChain(logger, in, l1Oracle, l2Oracle, stf, opts)
	if err != nil {
		return DerivationResult{}, err
	}
	logger.Info("Starting derivation", "chainID", in.RollupConfig.L2ChainID, "target", in.Target)
	result, err := chain.Driver.RunComplete(ctx)
	if err != nil {
		return DerivationResult{}, fmt.Errorf("failed to run program to completion: %w", err)
	}
	logger.Info("Derivation complete", "head", chain.Driver.Head(), "result", result.Head, "output", result.OutputRoot)
	return DerivationResult{
		Head:       result.Head,
		BlockHash:  result.Head.Hash,
		OutputRoot: result.OutputRoot,
	}, nil
}
