package boot

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"

	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
	"github.com/mantlenetworkio/mantle-faultproof/op-supervisor/supervisor/backend/depset"
)

var ErrUnknownChainID = errors.New("unknown chain id")

type BootInfoInterop struct {
	Configs ConfigSource

	L1Head         common.Hash
	AgreedPrestate common.Hash
	Claim          common.Hash
	GameTimestamp  uint64
}

type ConfigSource interface {
	RollupConfig(chainID eth.ChainID) (*rollup.Config, error)
	ChainConfig(chainID eth.ChainID) (*params.ChainConfig, error)
	DependencySet() depset.DependencySet
	RollupConfigs() depset.RollupConfigSet
}

// OracleConfigSource holds the configuration of every chain of the dependency set, as served
// by the host.
type OracleConfigSource struct {
	l2ChainConfigs map[eth.ChainID]*params.ChainConfig
	rollupConfigs  depset.RollupConfigSet
	depset         depset.DependencySet
}

var _ ConfigSource = (*OracleConfigSource)(nil)

func (c *OracleConfigSource) RollupConfig(chainID eth.ChainID) (*rollup.Config, error) {
	cfg, ok := c.rollupConfigs[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownChainID, &chainID)
	}
	return cfg, nil
}

func (c *OracleConfigSource) ChainConfig(chainID eth.ChainID) (*params.ChainConfig, error) {
	cfg, ok := c.l2ChainConfigs[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownChainID, &chainID)
	}
	return cfg, nil
}

func (c *OracleConfigSource) DependencySet() depset.DependencySet {
	return c.depset
}

func (c *OracleConfigSource) RollupConfigs() depset.RollupConfigSet {
	return c.rollupConfigs
}

func loadConfigs(r oracleClient) (*OracleConfigSource, error) {
	var rollupConfigs []*rollup.Config
	if err := readJSON(r, RollupConfigLocalIndex, &rollupConfigs); err != nil {
		return nil, fmt.Errorf("failed to bootstrap rollup configs: %w", err)
	}
	rollupSet, err := depset.NewRollupConfigSet(rollupConfigs...)
	if err != nil {
		return nil, fmt.Errorf("invalid rollup configs: %w", err)
	}

	var chainConfigs []*params.ChainConfig
	if err := readJSON(r, L2ChainConfigLocalIndex, &chainConfigs); err != nil {
		return nil, fmt.Errorf("failed to bootstrap chain configs: %w", err)
	}
	l2ChainConfigs := make(map[eth.ChainID]*params.ChainConfig, len(chainConfigs))
	for _, config := range chainConfigs {
		if config == nil || config.ChainID == nil {
			return nil, fmt.Errorf("%w: chain config without a chain ID", ErrChainIDMismatch)
		}
		l2ChainConfigs[eth.ChainIDFromBig(config.ChainID)] = config
	}

	deps := new(depset.StaticConfigDependencySet)
	if err := readJSON(r, DependencySetLocalIndex, deps); err != nil {
		return nil, fmt.Errorf("failed to bootstrap dependency set: %w", err)
	}
	for _, chainID := range deps.Chains() {
		if !rollupSet.HasChain(chainID) {
			return nil, fmt.Errorf("%w: no rollup config for dependency %v", ErrUnknownChainID, &chainID)
		}
		if _, ok := l2ChainConfigs[chainID]; !ok {
			return nil, fmt.Errorf("%w: no chain config for dependency %v", ErrUnknownChainID, &chainID)
		}
	}
	return &OracleConfigSource{
		l2ChainConfigs: l2ChainConfigs,
		rollupConfigs:  rollupSet,
		depset:         deps,
	}, nil
}

// BootstrapInterop reads the inputs of a super root claim. The L2 output root key holds the
// agreed super root and the claim block number key the game timestamp.
func BootstrapInterop(r oracleClient) (*BootInfoInterop, error) {
	l1Head, err := readHash(r, L1HeadLocalIndex)
	if err != nil {
		return nil, err
	}
	agreedPrestate, err := readHash(r, L2OutputRootLocalIndex)
	if err != nil {
		return nil, err
	}
	claim, err := readHash(r, L2ClaimLocalIndex)
	if err != nil {
		return nil, err
	}
	gameTimestamp, err := readUint64(r, L2ClaimBlockNumberLocalIndex)
	if err != nil {
		return nil, err
	}
	configs, err := loadConfigs(r)
	if err != nil {
		return nil, err
	}
	return &BootInfoInterop{
		Configs:        configs,
		L1Head:         l1Head,
		AgreedPrestate: agreedPrestate,
		Claim:          claim,
		GameTimestamp:  gameTimestamp,
	}, nil
}
