package depset

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
)

func TestRollupConfigSet(t *testing.T) {
	chainA := eth.ChainIDFromUInt64(900)
	chainB := eth.ChainIDFromUInt64(901)
	interopA, interopB := uint64(1000), uint64(900)
	cfgA := &rollup.Config{L2ChainID: big.NewInt(900), BlockTime: 2, InteropTime: &interopA}
	cfgB := &rollup.Config{L2ChainID: big.NewInt(901), BlockTime: 2, InteropTime: &interopB}

	configs, err := NewRollupConfigSet(cfgB, cfgA)
	require.NoError(t, err)
	require.Equal(t, []eth.ChainID{chainA, chainB}, configs.Chains())
	require.True(t, configs.HasChain(chainB))
	require.True(t, configs.IsInterop(chainA, 1000))
	require.False(t, configs.IsInterop(chainA, 999))
	require.True(t, configs.IsInteropActivationBlock(chainA, 1000))
	require.False(t, configs.IsInteropActivationBlock(chainB, 1000))
	require.False(t, configs.IsInterop(eth.ChainIDFromUInt64(700), 5000))

	t.Run("duplicate rollup config", func(t *testing.T) {
		_, err := NewRollupConfigSet(cfgA, cfgA)
		require.ErrorContains(t, err, "duplicate")
	})
	t.Run("missing chain ID", func(t *testing.T) {
		_, err := NewRollupConfigSet(&rollup.Config{BlockTime: 2})
		require.ErrorContains(t, err, "no L2 chain ID")
	})
}
