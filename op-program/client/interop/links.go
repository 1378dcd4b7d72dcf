package interop

import (
	"fmt"

	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/safemath"
	"github.com/mantlenetworkio/mantle-faultproof/op-supervisor/supervisor/backend/depset"
)

// LinkRules decide if a block of execChain at execTime may execute a message initiated on
// initChain at initTime. Only chain and time constraints are checked, not the message.
type LinkRules interface {
	CanExecute(execChain eth.ChainID, execTime uint64, initChain eth.ChainID, initTime uint64) bool
}

type LinkRulesFn func(execChain eth.ChainID, execTime uint64, initChain eth.ChainID, initTime uint64) bool

func (fn LinkRulesFn) CanExecute(execChain eth.ChainID, execTime uint64, initChain eth.ChainID, initTime uint64) bool {
	return fn(execChain, execTime, initChain, initTime)
}

// ForkLinks links chains of the dependency set once interop is active on both ends,
// within the message expiry window.
type ForkLinks struct {
	deps  depset.DependencySet
	forks depset.ActivationConfig
}

var _ LinkRules = (*ForkLinks)(nil)

func NewForkLinks(deps depset.DependencySet, forks depset.ActivationConfig) *ForkLinks {
	return &ForkLinks{deps: deps, forks: forks}
}

// LinksFromRollupConfigs requires a rollup config for every chain of the dependency set.
func LinksFromRollupConfigs(deps depset.DependencySet, configs depset.RollupConfigSet) (*ForkLinks, error) {
	for _, id := range deps.Chains() {
		if !configs.HasChain(id) {
			return nil, fmt.Errorf("no rollup config for chain %s of the dependency set", &id)
		}
	}
	return NewForkLinks(deps, configs), nil
}

func (l *ForkLinks) CanExecute(execChain eth.ChainID, execTime uint64, initChain eth.ChainID, initTime uint64) bool {
	if !l.messaging(execChain, execTime) || !l.messaging(initChain, initTime) {
		return false
	}
	if initTime > execTime {
		return false
	}
	// saturates, so a message close to the end of time never expires
	return safemath.SaturatingAdd(initTime, l.deps.MessageExpiryWindow()) >= execTime
}

// messaging reports if the chain can take part in messages at ts. The activation block
// itself cannot, it only carries the upgrade.
func (l *ForkLinks) messaging(chainID eth.ChainID, ts uint64) bool {
	return l.deps.HasChain(chainID) &&
		l.forks.IsInterop(chainID, ts) &&
		!l.forks.IsInteropActivationBlock(chainID, ts)
}
