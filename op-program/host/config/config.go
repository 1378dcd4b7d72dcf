package config

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"

	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/boot"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
	"github.com/mantlenetworkio/mantle-faultproof/op-supervisor/supervisor/backend/depset"
)

var (
	ErrNoL2Chains            = errors.New("at least one L2 chain must be specified")
	ErrMissingL2ChainID      = errors.New("missing l2 chain id")
	ErrMissingL2Genesis      = errors.New("missing l2 genesis")
	ErrNoRollupForGenesis    = errors.New("no rollup config matching l2 genesis")
	ErrNoGenesisForRollup    = errors.New("no l2 genesis for rollup")
	ErrDuplicateRollup       = errors.New("duplicate rollup")
	ErrDuplicateGenesis      = errors.New("duplicate l2 genesis")
	ErrInvalidL1Head         = errors.New("invalid l1 head")
	ErrInvalidL2OutputRoot   = errors.New("invalid l2 output root")
	ErrInvalidAgreedPrestate = errors.New("invalid l2 agreed prestate")
	ErrInvalidL2ClaimBlock   = errors.New("invalid l2 claim block number")
	ErrMissingAgreedPrestate = errors.New("missing agreed prestate")
	ErrMissingDependencySet  = errors.New("missing dependency set")
)

// Config holds the inputs the host serves to the client program as local keys.
type Config struct {
	L2ChainID eth.ChainID
	Rollups   []*rollup.Config

	// L1Head is the block hash of the L1 chain head block
	L1Head common.Hash
	// L2OutputRoot is the agreed L2 output root to start derivation from.
	// For interop this is the agreed super root.
	L2OutputRoot common.Hash
	// L2Claim is the claimed L2 output root to verify
	L2Claim common.Hash
	// L2ClaimBlockNumber is the block number the claimed L2 output root is from.
	// For interop this is the superchain root timestamp
	L2ClaimBlockNumber uint64
	// L2ChainConfigs are the op-geth chain config for the L2 execution engines
	// Must have one chain config for each rollup config
	L2ChainConfigs []*params.ChainConfig

	// InteropEnabled enables interop fault proof rules when running the client in-process
	InteropEnabled bool
	// AgreedPrestate is the preimage of the agreed prestate claim. Required for interop.
	AgreedPrestate []byte
	// DependencySet is the dependency set for the interop host. Required for interop.
	DependencySet depset.DependencySet
}

func (c *Config) Check() error {
	if !c.InteropEnabled && c.L2ChainID == (eth.ChainID{}) {
		return ErrMissingL2ChainID
	}
	if len(c.Rollups) == 0 {
		return ErrNoL2Chains
	}
	for _, rollupCfg := range c.Rollups {
		if err := rollupCfg.Check(); err != nil {
			return fmt.Errorf("invalid rollup config for chain %v: %w", rollupCfg.L2ChainID, err)
		}
	}
	if c.L1Head == (common.Hash{}) {
		return ErrInvalidL1Head
	}
	if c.L2OutputRoot == (common.Hash{}) {
		return ErrInvalidL2OutputRoot
	}
	if c.L2ClaimBlockNumber == 0 {
		return ErrInvalidL2ClaimBlock
	}
	if len(c.L2ChainConfigs) == 0 {
		return ErrMissingL2Genesis
	}
	// Make of known rollup chain IDs to whether we have the L2 chain config for it
	chainIDToHasChainConfig := make(map[eth.ChainID]bool, len(c.Rollups))
	for _, config := range c.Rollups {
		chainID := eth.ChainIDFromBig(config.L2ChainID)
		if _, ok := chainIDToHasChainConfig[chainID]; ok {
			return fmt.Errorf("%w for chain ID %v", ErrDuplicateRollup, &chainID)
		}
		chainIDToHasChainConfig[chainID] = false
	}
	for _, config := range c.L2ChainConfigs {
		chainID := eth.ChainIDFromBig(config.ChainID)
		hasChainConfig, ok := chainIDToHasChainConfig[chainID]
		if !ok {
			return fmt.Errorf("%w for chain ID %v", ErrNoRollupForGenesis, &chainID)
		}
		if hasChainConfig {
			return fmt.Errorf("%w for chain ID %v", ErrDuplicateGenesis, &chainID)
		}
		chainIDToHasChainConfig[chainID] = true
	}
	for chainID, hasChainConfig := range chainIDToHasChainConfig {
		if !hasChainConfig {
			return fmt.Errorf("%w for chain ID %v", ErrNoGenesisForRollup, &chainID)
		}
	}
	if c.InteropEnabled {
		if len(c.AgreedPrestate) == 0 {
			return ErrMissingAgreedPrestate
		}
		if crypto.Keccak256Hash(c.AgreedPrestate) != c.L2OutputRoot {
			return fmt.Errorf("%w: must be preimage of L2 output root", ErrInvalidAgreedPrestate)
		}
		if c.DependencySet == nil {
			return ErrMissingDependencySet
		}
	}
	return nil
}

// NewSingleChainConfig serves the chain configuration as custom configs: configuration is
// always read from local keys by the client.
func NewSingleChainConfig(
	rollupCfg *rollup.Config,
	l2ChainConfig *params.ChainConfig,
	l1Head common.Hash,
	l2OutputRoot common.Hash,
	l2Claim common.Hash,
	l2ClaimBlockNum uint64,
) *Config {
	return &Config{
		L2ChainID:          boot.CustomChainIDIndicator,
		Rollups:            []*rollup.Config{rollupCfg},
		L2ChainConfigs:     []*params.ChainConfig{l2ChainConfig},
		L1Head:             l1Head,
		L2OutputRoot:       l2OutputRoot,
		L2Claim:            l2Claim,
		L2ClaimBlockNumber: l2ClaimBlockNum,
	}
}

func NewInteropConfig(
	l1Head common.Hash,
	agreedPrestate []byte,
	claim common.Hash,
	gameTimestamp uint64,
	deps depset.DependencySet,
	l2ChainConfigs []*params.ChainConfig,
	rollupCfgs []*rollup.Config,
) *Config {
	return &Config{
		L2ChainID:          boot.CustomChainIDIndicator,
		Rollups:            rollupCfgs,
		L2ChainConfigs:     l2ChainConfigs,
		L1Head:             l1Head,
		L2OutputRoot:       crypto.Keccak256Hash(agreedPrestate),
		L2Claim:            claim,
		L2ClaimBlockNumber: gameTimestamp,
		InteropEnabled:     true,
		AgreedPrestate:     agreedPrestate,
		DependencySet:      deps,
	}
}
