package kvstore

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup"
	preimage "github.com/mantlenetworkio/mantle-faultproof/op-preimage"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/host/config"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
	"github.com/mantlenetworkio/mantle-faultproof/op-supervisor/supervisor/backend/depset"
)

func TestLocalPreimageSource(t *testing.T) {
	rollupCfg := &rollup.Config{L2ChainID: big.NewInt(5000), BlockTime: 2}
	chainCfg := &params.ChainConfig{ChainID: big.NewInt(5000)}
	cfg := config.NewSingleChainConfig(rollupCfg, chainCfg,
		common.HexToHash("0x1111"), common.HexToHash("0x2222"), common.HexToHash("0x3333"), 1234)
	source := NewLocalPreimageSource(cfg)
	tests := []struct {
		name     string
		key      common.Hash
		expected []byte
	}{
		{"L1Head", l1HeadKey, cfg.L1Head.Bytes()},
		{"L2OutputRoot", l2OutputRootKey, cfg.L2OutputRoot.Bytes()},
		{"L2Claim", l2ClaimKey, cfg.L2Claim.Bytes()},
		{"L2ClaimBlockNumber", l2ClaimBlockNumberKey, binary.BigEndian.AppendUint64(nil, cfg.L2ClaimBlockNumber)},
		{"L2ChainID", l2ChainIDKey, binary.BigEndian.AppendUint64(nil, math.MaxUint64)},
		{"Rollup", rollupKey, asJson(t, rollupCfg)},
		{"ChainConfig", l2ChainConfigKey, asJson(t, chainCfg)},
		{"Unknown", preimage.LocalIndexKey(1000).PreimageKey(), nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result, err := source.Get(test.key)
			if test.expected == nil {
				require.ErrorIs(t, err, ErrNotFound)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, test.expected, result)
		})
	}

	t.Run("DependencySetWithoutInterop", func(t *testing.T) {
		_, err := source.Get(dependencySetKey)
		require.ErrorIs(t, err, errNoDependencySet)
	})
}

func TestGetChainConfigPreimagesInterop(t *testing.T) {
	rollup1 := &rollup.Config{L2ChainID: big.NewInt(900)}
	rollup2 := &rollup.Config{L2ChainID: big.NewInt(901)}
	chainCfg1 := &params.ChainConfig{ChainID: big.NewInt(900)}
	chainCfg2 := &params.ChainConfig{ChainID: big.NewInt(901)}
	deps, err := depset.DependencySetOf(eth.ChainIDFromUInt64(900), eth.ChainIDFromUInt64(901))
	require.NoError(t, err)
	cfg := config.NewInteropConfig(common.HexToHash("0x1111"), []byte{1, 2, 3}, common.HexToHash("0x3333"), 1234,
		deps, []*params.ChainConfig{chainCfg1, chainCfg2}, []*rollup.Config{rollup1, rollup2})
	source := NewLocalPreimageSource(cfg)

	actualRollup, err := source.Get(rollupKey)
	require.NoError(t, err)
	require.Equal(t, asJson(t, cfg.Rollups), actualRollup)
	actualChainConfig, err := source.Get(l2ChainConfigKey)
	require.NoError(t, err)
	require.Equal(t, asJson(t, cfg.L2ChainConfigs), actualChainConfig)
	actualDeps, err := source.Get(dependencySetKey)
	require.NoError(t, err)
	require.Equal(t, asJson(t, deps), actualDeps)
	outputRoot, err := source.Get(l2OutputRootKey)
	require.NoError(t, err)
	require.Equal(t, cfg.L2OutputRoot.Bytes(), outputRoot)
	require.NotEqual(t, common.Hash{}, cfg.L2OutputRoot)
}

func asJson(t *testing.T, v any) []byte {
	d, err := json.Marshal(v)
	require.NoError(t, err)
	return d
}
