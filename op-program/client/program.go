package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"

	"github.com/mantlenetworkio/mantle-faultproof/op-node/metrics"
	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup"
	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup/derive"
	preimage "github.com/mantlenetworkio/mantle-faultproof/op-preimage"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/boot"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/claim"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/driver"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/engine"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/interop"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/l1"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/l2"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/l2/engineapi"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/tasks"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
)

// Exit codes of the client program.
const (
	ExitAccepted = 0
	ExitRejected = 1
	ExitFailed   = 2
)

type Config struct {
	InteropEnabled bool

	Limits  derive.Limits
	L1Cache l1.CacheConfig
	L2Cache l2.CacheConfig
	Metrics metrics.Metricer

	// NewTransition overrides the go-ethereum state transition.
	NewTransition tasks.TransitionFactory
}

func DefaultConfig() Config {
	return Config{
		Limits:  derive.DefaultLimits(),
		L1Cache: l1.DefaultCacheConfig(),
		L2Cache: l2.DefaultCacheConfig(),
	}
}

// Main executes the client program in a detached context and exits the current process.
// The client runtime environment must be preset before calling this function.
func Main(logger log.Logger, useInterop bool) {
	logger.Info("Starting fault proof program client", "useInterop", useInterop)
	preimageOracle := preimage.ClientPreimageChannel()
	preimageHinter := preimage.ClientHinterChannel()
	cfg := DefaultConfig()
	cfg.InteropEnabled = useInterop
	err := RunProgram(context.Background(), logger, preimageOracle, preimageHinter, cfg)
	os.Exit(ExitCode(logger, err))
}

// ExitCode maps the outcome of a program run to the process exit code. A claim that does not
// match, or that lies past the L1 data, is rejected. Any other failure is not a verdict.
func ExitCode(logger log.Logger, err error) int {
	switch {
	case err == nil:
		logger.Info("Claim successfully verified")
		return ExitAccepted
	case errors.Is(err, claim.ErrClaimNotValid), errors.Is(err, driver.ErrTargetNotReached):
		logger.Error("Claim is invalid", "err", err)
		return ExitRejected
	default:
		logger.Error("Program failed", "err", err)
		return ExitFailed
	}
}

// RunProgram executes the Program, while attached to an IO based pre-image oracle, to be served by a host.
func RunProgram(ctx context.Context, logger log.Logger, preimageOracle io.ReadWriter, preimageHinter io.ReadWriter, cfg Config) error {
	m := cfg.Metrics
	if m == nil {
		m = metrics.NoopMetrics
	}
	// one channel pair serves every provider
	pClient := preimage.NewSharedOracle(preimage.NewOracleClient(preimageOracle))
	hClient := preimage.NewSharedHinter(preimage.NewHintWriter(preimageHinter).WithLogger(logger))
	l1PreimageOracle := l1.NewCachingOracle(l1.NewPreimageOracle(pClient, hClient), cfg.L1Cache, m)
	rawL2Oracle := l2.NewPreimageOracle(pClient, hClient, cfg.InteropEnabled)
	l2PreimageOracle := l2.NewCachingOracle(rawL2Oracle, cfg.L2Cache, m)
	opts := tasks.DerivationOptions{
		Limits:  cfg.Limits,
		Metrics: m,
		Hinter:  rawL2Oracle.Hinter(),
	}

	if cfg.InteropEnabled {
		bootInfo, err := boot.BootstrapInterop(pClient)
		if err != nil {
			return fmt.Errorf("failed to bootstrap: %w", err)
		}
		newTransition := cfg.NewTransition
		if newTransition == nil {
			newTransition = gethTransition(bootInfo.Configs.ChainConfig)
		}
		return interop.RunInteropProgram(ctx, logger, bootInfo, l1PreimageOracle, l2PreimageOracle, rawL2Oracle, newTransition, opts)
	}
	bootInfo, err := boot.NewBootstrapClient(pClient).BootInfo()
	if err != nil {
		return fmt.Errorf("failed to bootstrap: %w", err)
	}
	newTransition := cfg.NewTransition
	if newTransition == nil {
		newTransition = gethTransition(func(eth.ChainID) (*params.ChainConfig, error) {
			return bootInfo.L2ChainConfig, nil
		})
	}
	return RunPreInteropProgram(ctx, logger, bootInfo, l1PreimageOracle, l2PreimageOracle, newTransition, opts)
}

func gethTransition(chainConfig func(eth.ChainID) (*params.ChainConfig, error)) tasks.TransitionFactory {
	return func(logger log.Logger, rollupCfg *rollup.Config, l2Oracle l2.Oracle) (engine.StateTransition, error) {
		chainCfg, err := chainConfig(eth.ChainIDFromBig(rollupCfg.L2ChainID))
		if err != nil {
			return nil, err
		}
		return engineapi.NewTransition(logger, chainCfg, l2Oracle, l2Oracle), nil
	}
}
