package host

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	preimage "github.com/mantlenetworkio/mantle-faultproof/op-preimage"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/host/config"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/host/kvstore"
)

// HintHandler receives every hint of the client. Hints are advisory: the KV store must hold
// all pre-images the client reads.
type HintHandler func(hint string) error

type programCfg struct {
	client client.Config
	hints  HintHandler
}

type ProgramOpt func(c *programCfg)

// WithClientConfig overrides the configuration of the in-process client.
func WithClientConfig(cfg client.Config) ProgramOpt {
	return func(c *programCfg) {
		c.client = cfg
	}
}

func WithHintHandler(handler HintHandler) ProgramOpt {
	return func(c *programCfg) {
		c.hints = handler
	}
}

// Main runs the program in-process against the pre-images in kv and returns its exit code.
func Main(ctx context.Context, logger log.Logger, cfg *config.Config, kv kvstore.KV, opts ...ProgramOpt) int {
	return client.ExitCode(logger, FaultProofProgram(ctx, logger, cfg, kv, opts...))
}

// FaultProofProgram runs the client in-process, serving the program inputs as local keys and
// every other pre-image from kv. It returns the outcome of the client.
func FaultProofProgram(ctx context.Context, logger log.Logger, cfg *config.Config, kv kvstore.KV, opts ...ProgramOpt) error {
	if err := cfg.Check(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for _, r := range cfg.Rollups {
		r.LogDescription(logger)
	}
	pcfg := &programCfg{client: client.DefaultConfig()}
	for _, opt := range opts {
		opt(pcfg)
	}
	pcfg.client.InteropEnabled = cfg.InteropEnabled

	pClientRW, pHostRW := preimage.CreateMemoryChannel()
	hClientRW, hHostRW := preimage.CreateMemoryChannel()

	localSource := kvstore.NewLocalPreimageSource(cfg)
	splitter := kvstore.NewPreimageSourceSplitter(localSource.Get, kv.Get)

	g, gctx := errgroup.WithContext(ctx)
	go func() {
		// Unblocks the servers once the program is done or aborted.
		<-gctx.Done()
		_ = pHostRW.Close()
		_ = hHostRW.Close()
	}()
	g.Go(func() error {
		return serveOracle(logger, pHostRW, splitter.Get)
	})
	g.Go(func() error {
		return routeHints(logger, hHostRW, pcfg.hints)
	})
	g.Go(func() error {
		defer func() {
			_ = pClientRW.Close()
			_ = hClientRW.Close()
		}()
		logger.Info("Starting program in-process")
		return client.RunProgram(gctx, logger, pClientRW, hClientRW, pcfg.client)
	})
	return g.Wait()
}

func serveOracle(logger log.Logger, rw io.ReadWriter, getter preimage.PreimageGetter) error {
	server := preimage.NewOracleServer(rw)
	for {
		if err := server.NextPreimageRequest(func(key [32]byte) ([]byte, error) {
			logger.Trace("Serving pre-image", "key", common.Hash(key))
			return getter(key)
		}); err != nil {
			if isClosed(err) {
				return nil
			}
			return fmt.Errorf("pre-image server failed: %w", err)
		}
	}
}

func routeHints(logger log.Logger, rw io.ReadWriter, handler HintHandler) error {
	reader := preimage.NewHintReader(rw)
	for {
		if err := reader.NextHint(func(hint string) error {
			logger.Trace("Received hint", "hint", hint)
			if handler == nil {
				return nil
			}
			return handler(hint)
		}); err != nil {
			if isClosed(err) {
				return nil
			}
			return fmt.Errorf("hint processing failed: %w", err)
		}
	}
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe)
}
