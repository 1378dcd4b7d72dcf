package rollup

import (
	"math/big"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/mantle-faultproof/op-node/params"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
)

// maxChannelBankSize is the amount of memory space, in number of bytes,
// till the bank is pruned by removing channels, starting with the oldest channel.
// It's value is changed with the Fjord network upgrade.
const (
	maxChannelBankSizeBedrock = 100_000_000
	maxChannelBankSizeFjord   = 1_000_000_000
)

// MaxRLPBytesPerChannel is the maximum amount of bytes that will be read from
// a channel. This limit is set when decoding the RLP.
const (
	maxRLPBytesPerChannelBedrock = 10_000_000
	maxRLPBytesPerChannelFjord   = 100_000_000
)

// Fjord changes the max sequencer drift to a protocol constant. It was previously configurable via
// the rollup config.
const maxSequencerDriftFjord = 1800

type ChainSpec struct {
	config      *Config
	currentFork ForkName
}

func NewChainSpec(config *Config) *ChainSpec {
	return &ChainSpec{config: config}
}

// L2ChainID returns the chain ID of the L2 chain.
func (s *ChainSpec) L2ChainID() *big.Int {
	return s.config.L2ChainID
}

// L2GenesisTime returns the genesis time of the L2 chain.
func (s *ChainSpec) L2GenesisTime() uint64 {
	return s.config.Genesis.L2Time
}

// IsFjord returns true if t >= fjord_time
func (s *ChainSpec) IsFjord(t uint64) bool {
	return s.config.IsFjord(t)
}

// MaxChannelBankSize returns the maximum number of bytes the can allocated inside the channel bank
// before pruning occurs at the given timestamp.
func (s *ChainSpec) MaxChannelBankSize(t uint64) uint64 {
	if s.config.IsFjord(t) {
		return maxChannelBankSizeFjord
	}
	return maxChannelBankSizeBedrock
}

// ChannelTimeout returns the channel timeout constant.
func (s *ChainSpec) ChannelTimeout(t uint64) uint64 {
	if s.config.IsGranite(t) {
		return params.ChannelTimeoutGranite
	}
	return s.config.ChannelTimeoutBedrock
}

// MaxRLPBytesPerChannel returns the maximum amount of bytes that will be read from
// a channel at a given timestamp.
func (s *ChainSpec) MaxRLPBytesPerChannel(t uint64) uint64 {
	if s.config.IsFjord(t) {
		return maxRLPBytesPerChannelFjord
	}
	return maxRLPBytesPerChannelBedrock
}

// MaxSequencerDrift returns the maximum sequencer drift for the given block timestamp. Until Fjord,
// this was a rollup configuration parameter. Since Fjord, it is a constant, so its effective value
// should always be queried via the ChainSpec.
func (s *ChainSpec) MaxSequencerDrift(t uint64) uint64 {
	if s.config.IsFjord(t) {
		return maxSequencerDriftFjord
	}
	return s.config.MaxSequencerDrift
}

// CheckForkActivation logs the fork that the given block is the first block of, if any.
func (s *ChainSpec) CheckForkActivation(log log.Logger, block eth.L2BlockRef) {
	if s.currentFork == None {
		s.currentFork = Bedrock
		for _, f := range ForksInOrder[1:] {
			if s.config.IsForkActive(f, block.Time) {
				s.currentFork = f
			}
		}
		log.Info("Current hardfork version detected", "forkName", s.currentFork)
		return
	}
	for _, f := range ForksInOrder[1:] {
		if f == s.currentFork {
			continue
		}
		if s.config.IsActivationBlock(f, block.Time) {
			s.currentFork = f
			log.Info("Detected hardfork activation block", "forkName", f, "timestamp", block.Time, "blockNum", block.Number, "hash", block.Hash)
		}
	}
}
