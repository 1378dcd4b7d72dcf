package interop

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
	"github.com/mantlenetworkio/mantle-faultproof/op-supervisor/supervisor/backend/depset"
)

// activationTimes activates interop on each chain at its timestamp.
type activationTimes map[eth.ChainID]uint64

func (a activationTimes) IsInterop(chainID eth.ChainID, ts uint64) bool {
	v, ok := a[chainID]
	return ok && ts >= v
}

func (a activationTimes) IsInteropActivationBlock(chainID eth.ChainID, ts uint64) bool {
	v, ok := a[chainID]
	return ok && ts == v
}

func TestForkLinks(t *testing.T) {
	chainUnknown := eth.ChainIDFromUInt64(700)
	deps, err := depset.NewStaticConfigDependencySetWithMessageExpiryOverride(map[eth.ChainID]*depset.StaticConfigDependency{
		chainA: {},
		chainB: {},
	}, 400)
	require.NoError(t, err)
	links := NewForkLinks(deps, activationTimes{chainA: 1000, chainB: 900})
	req := require.New(t)

	req.False(links.CanExecute(chainA, 999, chainB, 950), "cannot exec pre-interop")
	req.False(links.CanExecute(chainA, 1050, chainB, 899), "cannot init pre-interop")

	req.False(links.CanExecute(chainUnknown, 2050, chainB, 2000), "cannot execute on unknown chain")
	req.False(links.CanExecute(chainA, 2050, chainUnknown, 2000), "cannot initiate on unknown chain")

	req.False(links.CanExecute(chainA, 1050, chainB, 1051), "cannot init after exec")

	req.True(links.CanExecute(chainA, 2000, chainB, 2000), "same timestamp")
	req.True(links.CanExecute(chainA, 2400, chainB, 2000), "at expiry")
	req.False(links.CanExecute(chainA, 2401, chainB, 2000), "expired")
	req.True(links.CanExecute(chainA, ^uint64(0)-200, chainB, ^uint64(0)-300), "expiry past the end of time")

	req.True(links.CanExecute(chainA, 1001, chainA, 1001), "with self")
	req.False(links.CanExecute(chainA, 1001, chainA, 1000), "no init at activation")
	req.False(links.CanExecute(chainA, 1000, chainA, 1001), "no exec at activation")
	req.True(links.CanExecute(chainA, 1001, chainB, 950), "init before the executing chain activated")
}

func TestLinksFromRollupConfigs(t *testing.T) {
	interopA, interopB := uint64(1000), uint64(900)
	cfgA := &rollup.Config{L2ChainID: big.NewInt(900), BlockTime: 2, InteropTime: &interopA}
	cfgB := &rollup.Config{L2ChainID: big.NewInt(901), BlockTime: 2, InteropTime: &interopB}
	deps, err := depset.NewStaticConfigDependencySetWithMessageExpiryOverride(map[eth.ChainID]*depset.StaticConfigDependency{
		chainA: {},
		chainB: {},
	}, 400)
	require.NoError(t, err)

	configs, err := depset.NewRollupConfigSet(cfgA, cfgB)
	require.NoError(t, err)
	links, err := LinksFromRollupConfigs(deps, configs)
	require.NoError(t, err)
	require.True(t, links.CanExecute(chainA, 2050, chainB, 2000))
	require.False(t, links.CanExecute(chainA, 1000, chainB, 950), "exec at activation block")

	onlyA, err := depset.NewRollupConfigSet(cfgA)
	require.NoError(t, err)
	_, err = LinksFromRollupConfigs(deps, onlyA)
	require.ErrorContains(t, err, "no rollup config for chain 901")
}
