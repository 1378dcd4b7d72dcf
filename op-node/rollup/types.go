package rollup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/hashicorp/go-multierror"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
)

var (
	ErrBlockTimeZero                 = errors.New("block time cannot be 0")
	ErrMissingChannelTimeout         = errors.New("channel timeout must be set, this should cover at least a L1 block time")
	ErrInvalidSeqWindowSize          = errors.New("sequencing window size must at least be 2")
	ErrInvalidMaxSeqDrift            = errors.New("maximum sequencer drift must be greater than 0")
	ErrMissingGenesisL1Hash          = errors.New("genesis L1 hash cannot be empty")
	ErrMissingGenesisL2Hash          = errors.New("genesis L2 hash cannot be empty")
	ErrGenesisHashesSame             = errors.New("achievement get! rollup inception: L1 and L2 genesis cannot be the same")
	ErrMissingGenesisL2Time          = errors.New("missing L2 genesis time")
	ErrMissingBatcherAddr            = errors.New("missing genesis system config batcher address")
	ErrMissingScalar                 = errors.New("missing genesis system config scalar")
	ErrMissingGasLimit               = errors.New("missing genesis system config gas limit")
	ErrMissingBatchInboxAddress      = errors.New("missing batch inbox address")
	ErrMissingDepositContractAddress = errors.New("missing deposit contract address")
	ErrMissingL1ChainID              = errors.New("L1 chain ID must not be nil")
	ErrMissingL2ChainID              = errors.New("L2 chain ID must not be nil")
	ErrChainIDsSame                  = errors.New("L1 and L2 chain IDs must be different")
	ErrL1ChainIDNotPositive          = errors.New("L1 chain ID must be non-zero and positive")
	ErrL2ChainIDNotPositive          = errors.New("L2 chain ID must be non-zero and positive")
)

// Epoch is the L1 block number an L2 block is derived from.
type Epoch uint64

type Genesis struct {
	// The L1 block that the rollup starts *after* (no derived transactions)
	L1 eth.BlockID `json:"l1"`
	// The L2 block the rollup starts from (no transactions, pre-configured state)
	L2 eth.BlockID `json:"l2"`
	// Timestamp of L2 block
	L2Time uint64 `json:"l2_time"`
	// Initial system configuration values.
	// The L2 genesis block may not include transactions, and thus cannot encode the config values,
	// unlike later L2 blocks.
	SystemConfig eth.SystemConfig `json:"system_config"`
}

type Config struct {
	// Genesis anchor point of the rollup
	Genesis Genesis `json:"genesis"`
	// Seconds per L2 block
	BlockTime uint64 `json:"block_time"`
	// Sequencer batches may not be more than MaxSequencerDrift seconds after
	// the L1 timestamp of their L1 origin time.
	//
	// With Fjord, the MaxSequencerDrift becomes a constant. Use the ChainSpec
	// instead of reading this rollup configuration field directly.
	MaxSequencerDrift uint64 `json:"max_sequencer_drift,omitempty"`
	// Number of epochs (L1 blocks) per sequencing window, including the epoch L1 origin block itself
	SeqWindowSize uint64 `json:"seq_window_size"`
	// Number of L1 blocks between when a channel can be opened and when it must be closed by.
	ChannelTimeoutBedrock uint64 `json:"channel_timeout"`
	// Required to verify L1 signatures
	L1ChainID *big.Int `json:"l1_chain_id"`
	// Required to identify the L2 network
	L2ChainID *big.Int `json:"l2_chain_id"`

	// RegolithTime sets the activation time of the Regolith network-upgrade.
	// Active if RegolithTime != nil && L2 block timestamp >= *RegolithTime, inactive otherwise.
	RegolithTime *uint64 `json:"regolith_time,omitempty"`

	// CanyonTime sets the activation time of the Canyon network upgrade.
	// Active if CanyonTime != nil && L2 block timestamp >= *CanyonTime, inactive otherwise.
	CanyonTime *uint64 `json:"canyon_time,omitempty"`

	// DeltaTime sets the activation time of the Delta network upgrade, which introduces span batches.
	// Active if DeltaTime != nil && L2 block timestamp >= *DeltaTime, inactive otherwise.
	DeltaTime *uint64 `json:"delta_time,omitempty"`

	// EcotoneTime sets the activation time of the Ecotone network upgrade: blob data and the new L1 info format.
	// Active if EcotoneTime != nil && L2 block timestamp >= *EcotoneTime, inactive otherwise.
	EcotoneTime *uint64 `json:"ecotone_time,omitempty"`

	// FjordTime sets the activation time of the Fjord network upgrade: brotli channels and larger limits.
	// Active if FjordTime != nil && L2 block timestamp >= *FjordTime, inactive otherwise.
	FjordTime *uint64 `json:"fjord_time,omitempty"`

	// GraniteTime sets the activation time of the Granite network upgrade, which shortens the channel timeout.
	// Active if GraniteTime != nil && L2 block timestamp >= *GraniteTime, inactive otherwise.
	GraniteTime *uint64 `json:"granite_time,omitempty"`

	// InteropTime sets the activation time for cross-chain message validation.
	// Active if InteropTime != nil && L2 block timestamp >= *InteropTime, inactive otherwise.
	InteropTime *uint64 `json:"interop_time,omitempty"`

	// Note: below addresses are part of the block-derivation process,
	// and required to be the same network-wide to stay in consensus.

	// L1 address that batches are sent to.
	BatchInboxAddress common.Address `json:"batch_inbox_address"`
	// L1 Deposit Contract Address
	DepositContractAddress common.Address `json:"deposit_contract_address"`
	// L1 System Config Address
	L1SystemConfigAddress common.Address `json:"l1_system_config_address"`
}

func (cfg *Config) TimestampForBlock(blockNumber uint64) uint64 {
	return cfg.Genesis.L2Time + ((blockNumber - cfg.Genesis.L2.Number) * cfg.BlockTime)
}

func (cfg *Config) TargetBlockNumber(timestamp uint64) (num uint64, err error) {
	genesisTimestamp := cfg.Genesis.L2Time
	if timestamp < genesisTimestamp {
		return 0, fmt.Errorf("did not reach genesis time (%d) yet", genesisTimestamp)
	}
	// Note: round down, we should not request blocks into the future.
	blocksSinceGenesis := (timestamp - genesisTimestamp) / cfg.BlockTime
	return cfg.Genesis.L2.Number + blocksSinceGenesis, nil
}

// Check verifies that the given configuration makes sense.
// All problems are reported at once.
func (cfg *Config) Check() error {
	var result *multierror.Error
	add := func(cond bool, err error) {
		if cond {
			result = multierror.Append(result, err)
		}
	}
	add(cfg.BlockTime == 0, ErrBlockTimeZero)
	add(cfg.ChannelTimeoutBedrock == 0, ErrMissingChannelTimeout)
	add(cfg.SeqWindowSize < 2, ErrInvalidSeqWindowSize)
	add(cfg.MaxSequencerDrift == 0 && !cfg.IsFjord(cfg.Genesis.L2Time), ErrInvalidMaxSeqDrift)
	add(cfg.Genesis.L1.Hash == (common.Hash{}), ErrMissingGenesisL1Hash)
	add(cfg.Genesis.L2.Hash == (common.Hash{}), ErrMissingGenesisL2Hash)
	add(cfg.Genesis.L2.Hash != (common.Hash{}) && cfg.Genesis.L2.Hash == cfg.Genesis.L1.Hash, ErrGenesisHashesSame)
	add(cfg.Genesis.L2Time == 0, ErrMissingGenesisL2Time)
	add(cfg.Genesis.SystemConfig.BatcherAddr == (common.Address{}), ErrMissingBatcherAddr)
	add(cfg.Genesis.SystemConfig.Scalar == (eth.Bytes32{}), ErrMissingScalar)
	add(cfg.Genesis.SystemConfig.GasLimit == 0, ErrMissingGasLimit)
	add(cfg.BatchInboxAddress == (common.Address{}), ErrMissingBatchInboxAddress)
	add(cfg.DepositContractAddress == (common.Address{}), ErrMissingDepositContractAddress)
	add(cfg.L1ChainID == nil, ErrMissingL1ChainID)
	add(cfg.L2ChainID == nil, ErrMissingL2ChainID)
	if cfg.L1ChainID != nil && cfg.L2ChainID != nil {
		add(cfg.L1ChainID.Cmp(cfg.L2ChainID) == 0, ErrChainIDsSame)
	}
	if cfg.L1ChainID != nil {
		add(cfg.L1ChainID.Sign() < 1, ErrL1ChainIDNotPositive)
	}
	if cfg.L2ChainID != nil {
		add(cfg.L2ChainID.Sign() < 1, ErrL2ChainIDNotPositive)
	}

	times := []*uint64{nil, cfg.RegolithTime, cfg.CanyonTime, cfg.DeltaTime, cfg.EcotoneTime, cfg.FjordTime, cfg.GraniteTime}
	for i := 2; i < len(times); i++ {
		if err := checkFork(times[i-1], times[i], ForksInOrder[i-1], ForksInOrder[i]); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// checkFork checks that fork A is before or at the same time as fork B
func checkFork(a, b *uint64, aName, bName ForkName) error {
	if b == nil {
		return nil
	}
	if a == nil {
		return fmt.Errorf("fork %s set (to %d), but prior fork %s missing", bName, *b, aName)
	}
	if *a > *b {
		return fmt.Errorf("fork %s set to %d, but prior fork %s has higher offset %d", bName, *b, aName, *a)
	}
	return nil
}

func (c *Config) L1Signer() types.Signer {
	return types.LatestSignerForChainID(c.L1ChainID)
}

func (c *Config) ActivationTimeFor(fork ForkName) *uint64 {
	switch fork {
	case Interop:
		return c.InteropTime
	case Granite:
		return c.GraniteTime
	case Fjord:
		return c.FjordTime
	case Ecotone:
		return c.EcotoneTime
	case Delta:
		return c.DeltaTime
	case Canyon:
		return c.CanyonTime
	case Regolith:
		return c.RegolithTime
	default:
		return nil
	}
}

func (c *Config) IsForkActive(fork ForkName, timestamp uint64) bool {
	activationTime := c.ActivationTimeFor(fork)
	return activationTime != nil && timestamp >= *activationTime
}

// IsRegolith returns true if the Regolith hardfork is active at or past the given timestamp.
func (c *Config) IsRegolith(timestamp uint64) bool {
	return c.IsForkActive(Regolith, timestamp)
}

// IsCanyon returns true if the Canyon hardfork is active at or past the given timestamp.
func (c *Config) IsCanyon(timestamp uint64) bool {
	return c.IsForkActive(Canyon, timestamp)
}

// IsDelta returns true if the Delta hardfork is active at or past the given timestamp.
func (c *Config) IsDelta(timestamp uint64) bool {
	return c.IsForkActive(Delta, timestamp)
}

// IsEcotone returns true if the Ecotone hardfork is active at or past the given timestamp.
func (c *Config) IsEcotone(timestamp uint64) bool {
	return c.IsForkActive(Ecotone, timestamp)
}

// IsFjord returns true if the Fjord hardfork is active at or past the given timestamp.
func (c *Config) IsFjord(timestamp uint64) bool {
	return c.IsForkActive(Fjord, timestamp)
}

// IsGranite returns true if the Granite hardfork is active at or past the given timestamp.
func (c *Config) IsGranite(timestamp uint64) bool {
	return c.IsForkActive(Granite, timestamp)
}

// IsInterop returns true if the Interop hardfork is active at or past the given timestamp.
func (c *Config) IsInterop(timestamp uint64) bool {
	return c.IsForkActive(Interop, timestamp)
}

// IsActivationBlock returns whether the block at l2BlockTime is the first block of the fork.
func (c *Config) IsActivationBlock(fork ForkName, l2BlockTime uint64) bool {
	return c.IsForkActive(fork, l2BlockTime) &&
		l2BlockTime >= c.BlockTime &&
		!c.IsForkActive(fork, l2BlockTime-c.BlockTime)
}

func (c *Config) IsEcotoneActivationBlock(l2BlockTime uint64) bool {
	return c.IsActivationBlock(Ecotone, l2BlockTime)
}

// IsInteropActivationBlock returns whether the specified block is the first block subject to the
// Interop upgrade.
func (c *Config) IsInteropActivationBlock(l2BlockTime uint64) bool {
	return c.IsActivationBlock(Interop, l2BlockTime)
}

// ActivateAtGenesis schedules the given fork, and all prior forks, at genesis time.
func (c *Config) ActivateAtGenesis(fork ForkName) {
	zero := uint64(0)
	for _, f := range ForksInOrder[1:] {
		switch f {
		case Regolith:
			c.RegolithTime = &zero
		case Canyon:
			c.CanyonTime = &zero
		case Delta:
			c.DeltaTime = &zero
		case Ecotone:
			c.EcotoneTime = &zero
		case Fjord:
			c.FjordTime = &zero
		case Granite:
			c.GraniteTime = &zero
		case Interop:
			c.InteropTime = &zero
		}
		if f == fork {
			return
		}
	}
}

// LogDescription outputs the important parts of the rollup configuration in a log format.
func (c *Config) LogDescription(log log.Logger) {
	ctx := []any{
		"l2_chain_id", c.L2ChainID,
		"l1_chain_id", c.L1ChainID,
		"l2_start_time", c.Genesis.L2Time,
		"l2_block_hash", c.Genesis.L2.Hash.String(),
		"l2_block_number", c.Genesis.L2.Number,
		"l1_block_hash", c.Genesis.L1.Hash.String(),
		"l1_block_number", c.Genesis.L1.Number,
	}
	for _, f := range ForksInOrder[1:] {
		t := c.ActivationTimeFor(f)
		v := "(not configured)"
		if t != nil {
			v = fmt.Sprintf("@ %d", *t)
		}
		ctx = append(ctx, string(f)+"_time", v)
	}
	log.Info("Rollup Config", ctx...)
}

func (c *Config) ParseRollupConfig(in io.Reader) error {
	dec := json.NewDecoder(in)
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("failed to decode rollup config: %w", err)
	}
	return nil
}
