package interop

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/mantle-faultproof/op-node/metrics"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/boot"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/claim"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/driver"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/l1"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/l2"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/tasks"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
)

var (
	ErrUnsupportedSuperRoot = errors.New("unsupported super root")
	ErrAgreedPastGame       = errors.New("agreed super root is past the game timestamp")
)

type SuperRootSource interface {
	SuperRootByHash(root common.Hash) (eth.Super, error)
}

// RunInteropProgram derives every chain of the agreed super root up to the game timestamp,
// checking the executing messages across chains, and validates the claimed super root.
func RunInteropProgram(
	ctx context.Context,
	logger log.Logger,
	bootInfo *boot.BootInfoInterop,
	l1Oracle l1.Oracle,
	l2Oracle l2.Oracle,
	supers SuperRootSource,
	newTransition tasks.TransitionFactory,
	opts tasks.DerivationOptions,
) error {
	logger.Info("Interop program bootstrapped", "l1Head", bootInfo.L1Head, "agreed", bootInfo.AgreedPrestate,
		"claim", bootInfo.Claim, "timestamp", bootInfo.GameTimestamp)
	if err := opts.Limits.Check(); err != nil {
		return fmt.Errorf("invalid derivation limits: %w", err)
	}
	d, err := newInteropDerivation(logger, bootInfo, l1Oracle, l2Oracle, supers, newTransition, opts)
	if err != nil {
		return err
	}
	if err := d.RunComplete(ctx); err != nil {
		return fmt.Errorf("failed to run interop program to completion: %w", err)
	}
	super, err := d.Super(bootInfo.GameTimestamp)
	if err != nil {
		return err
	}
	return claim.ValidateClaim(logger, eth.Bytes32(bootInfo.Claim), eth.SuperRoot(super))
}

func newInteropDerivation(
	logger log.Logger,
	bootInfo *boot.BootInfoInterop,
	l1Oracle l1.Oracle,
	l2Oracle l2.Oracle,
	supers SuperRootSource,
	newTransition tasks.TransitionFactory,
	opts tasks.DerivationOptions,
) (*InteropDriver, error) {
	agreed, err := supers.SuperRootByHash(bootInfo.AgreedPrestate)
	if err != nil {
		return nil, fmt.Errorf("failed to load agreed super root: %w", err)
	}
	superV1, ok := agreed.(*eth.SuperV1)
	if !ok {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedSuperRoot, agreed.Version())
	}
	if superV1.Timestamp > bootInfo.GameTimestamp {
		return nil, fmt.Errorf("%w: agreed %d, game %d", ErrAgreedPastGame, superV1.Timestamp, bootInfo.GameTimestamp)
	}

	deps := bootInfo.Configs.DependencySet()
	rollupCfgs := bootInfo.Configs.RollupConfigs()
	links, err := LinksFromRollupConfigs(deps, rollupCfgs)
	if err != nil {
		return nil, fmt.Errorf("failed to set up message link rules: %w", err)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoopMetrics
	}
	index := NewLogIndex()
	chains := make([]Chain, 0, len(superV1.Chains))
	for _, c := range superV1.Chains {
		chainID := c.ChainID
		if !deps.HasChain(chainID) {
			return nil, fmt.Errorf("%w: agreed chain %s outside the dependency set", boot.ErrUnknownChainID, &chainID)
		}
		rollupCfg, err := bootInfo.Configs.RollupConfig(chainID)
		if err != nil {
			return nil, err
		}
		chainLogger := logger.New("chain", &chainID)
		stf, err := newTransition(chainLogger, rollupCfg, l2Oracle)
		if err != nil {
			return nil, fmt.Errorf("failed to create state transition of chain %s: %w", &chainID, err)
		}
		chain, err := tasks.NewChain(chainLogger, tasks.ChainInputs{
			RollupConfig:     rollupCfg,
			L1Head:           bootInfo.L1Head,
			AgreedOutputRoot: common.Hash(c.Output),
			Target:           driver.TimestampTarget(bootInfo.GameTimestamp),
		}, l1Oracle, l2Oracle, stf, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to set up chain %s: %w", &chainID, err)
		}
		index.AddChain(chainID, chain.Engine, l2Oracle)
		chains = append(chains, Chain{ID: chainID, Driver: chain.Driver})
	}
	checker := NewChecker(logger, deps, links, index)
	return NewInteropDriver(logger, rollupCfgs, checker, index, opts.Metrics, chains...), nil
}
