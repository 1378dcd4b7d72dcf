package rollup

import (
	"bytes"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mantlenetworkio/mantle-faultproof/op-node/params"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
)

func randConfig() *Config {
	return &Config{
		Genesis: Genesis{
			L1:     eth.BlockID{Hash: common.Hash{1}, Number: 100},
			L2:     eth.BlockID{Hash: common.Hash{2}, Number: 0},
			L2Time: 1000,
			SystemConfig: eth.SystemConfig{
				BatcherAddr: common.Address{3},
				Scalar:      eth.Bytes32{4},
				GasLimit:    30_000_000,
			},
		},
		BlockTime:              2,
		MaxSequencerDrift:      600,
		SeqWindowSize:          3600,
		ChannelTimeoutBedrock:  300,
		L1ChainID:              big.NewInt(900),
		L2ChainID:              big.NewInt(901),
		BatchInboxAddress:      common.Address{5},
		DepositContractAddress: common.Address{6},
		L1SystemConfigAddress:  common.Address{7},
	}
}

func TestConfigJSON(t *testing.T) {
	config := randConfig()
	data, err := json.Marshal(config)
	require.NoError(t, err)
	var roundTripped Config
	require.NoError(t, roundTripped.ParseRollupConfig(bytes.NewReader(data)))
	require.Equal(t, *config, roundTripped)

	require.Error(t, new(Config).ParseRollupConfig(bytes.NewReader([]byte(`{"unknown_field": 1}`))))
}

func TestConfigCheck(t *testing.T) {
	require.NoError(t, randConfig().Check())

	cfg := randConfig()
	cfg.BlockTime = 0
	cfg.BatchInboxAddress = common.Address{}
	cfg.L2ChainID = big.NewInt(900)
	err := cfg.Check()
	require.ErrorIs(t, err, ErrBlockTimeZero)
	require.ErrorIs(t, err, ErrMissingBatchInboxAddress)
	require.ErrorIs(t, err, ErrChainIDsSame)
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	require.Len(t, merr.Errors, 3)

	cfg = randConfig()
	cfg.L1ChainID = nil
	require.ErrorIs(t, cfg.Check(), ErrMissingL1ChainID)
}

func TestForkOrdering(t *testing.T) {
	ten, twenty := uint64(10), uint64(20)
	cfg := randConfig()
	cfg.EcotoneTime = &ten
	require.ErrorContains(t, cfg.Check(), "prior fork delta missing")

	cfg.DeltaTime = &twenty
	require.ErrorContains(t, cfg.Check(), "prior fork delta has higher offset")

	cfg.DeltaTime = &ten
	cfg.RegolithTime, cfg.CanyonTime = &ten, &ten
	require.NoError(t, cfg.Check())
}

func TestActivations(t *testing.T) {
	cfg := randConfig()
	require.False(t, cfg.IsDelta(0))
	cfg.ActivateAtGenesis(Ecotone)
	require.True(t, cfg.IsRegolith(0))
	require.True(t, cfg.IsDelta(0))
	require.True(t, cfg.IsEcotone(0))
	require.False(t, cfg.IsFjord(1_000_000))
	require.Nil(t, cfg.InteropTime)

	at := uint64(1010)
	cfg.FjordTime = &at
	require.False(t, cfg.IsActivationBlock(Fjord, 1008))
	require.True(t, cfg.IsActivationBlock(Fjord, 1010))
	require.False(t, cfg.IsActivationBlock(Fjord, 1012))
}

func TestChainSpec(t *testing.T) {
	cfg := randConfig()
	fjord, granite := uint64(2000), uint64(3000)
	cfg.ActivateAtGenesis(Ecotone)
	cfg.FjordTime, cfg.GraniteTime = &fjord, &granite
	spec := NewChainSpec(cfg)

	require.Equal(t, uint64(maxChannelBankSizeBedrock), spec.MaxChannelBankSize(1999))
	require.Equal(t, uint64(maxChannelBankSizeFjord), spec.MaxChannelBankSize(2000))
	require.Equal(t, uint64(maxRLPBytesPerChannelFjord), spec.MaxRLPBytesPerChannel(2000))
	require.Equal(t, uint64(600), spec.MaxSequencerDrift(1999))
	require.Equal(t, uint64(maxSequencerDriftFjord), spec.MaxSequencerDrift(2000))
	require.Equal(t, uint64(300), spec.ChannelTimeout(2999))
	require.Equal(t, uint64(params.ChannelTimeoutGranite), spec.ChannelTimeout(3000))
}

func TestTargetBlockNumber(t *testing.T) {
	cfg := randConfig()
	_, err := cfg.TargetBlockNumber(999)
	require.Error(t, err)
	num, err := cfg.TargetBlockNumber(1005)
	require.NoError(t, err)
	require.Equal(t, uint64(2), num)
	require.Equal(t, uint64(1004), cfg.TimestampForBlock(2))
}
