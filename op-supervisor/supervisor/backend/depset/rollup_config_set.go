package depset

import (
	"fmt"

	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
)

type ActivationConfig interface {
	// IsInterop returns true if the Interop hardfork is active for the given chain at the given timestamp.
	// Unknown chains are never active.
	IsInterop(chainID eth.ChainID, ts uint64) bool

	// IsInteropActivationBlock returns true if the given timestamp is for an Interop activation block.
	IsInteropActivationBlock(chainID eth.ChainID, ts uint64) bool
}

// RollupConfigSet provides the fork activation of every chain, backed by its full rollup config.
type RollupConfigSet map[eth.ChainID]*rollup.Config

var _ ActivationConfig = (RollupConfigSet)(nil)

// NewRollupConfigSet indexes the configs by L2 chain ID. Duplicate chains are rejected.
func NewRollupConfigSet(configs ...*rollup.Config) (RollupConfigSet, error) {
	out := make(RollupConfigSet, len(configs))
	for i, cfg := range configs {
		if cfg.L2ChainID == nil {
			return nil, fmt.Errorf("rollup config %d has no L2 chain ID", i)
		}
		id := eth.ChainIDFromBig(cfg.L2ChainID)
		if _, ok := out[id]; ok {
			return nil, fmt.Errorf("duplicate rollup config for chain %s", &id)
		}
		out[id] = cfg
	}
	return out, nil
}

func (s RollupConfigSet) HasChain(chainID eth.ChainID) bool {
	_, ok := s[chainID]
	return ok
}

func (s RollupConfigSet) Chains() []eth.ChainID {
	out := make([]eth.ChainID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	eth.SortChainID(out)
	return out
}

func (s RollupConfigSet) IsInterop(chainID eth.ChainID, ts uint64) bool {
	cfg, ok := s[chainID]
	if !ok {
		return false
	}
	return cfg.IsInterop(ts)
}

func (s RollupConfigSet) IsInteropActivationBlock(chainID eth.ChainID, ts uint64) bool {
	cfg, ok := s[chainID]
	if !ok {
		return false
	}
	return cfg.IsInteropActivationBlock(ts)
}
