package derive

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"

	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup"
)

var (
	ErrNoPendingChannels   = errors.New("max pending channels must be at least 1")
	ErrChannelBankTooSmall = errors.New("max channel bank size must fit at least one frame")
)

const DefaultMaxPendingChannels = 100

// Limits bounds the memory the derivation pipeline may hold for in-flight channels.
// Zero values fall back to the protocol values of the chain spec.
type Limits struct {
	// MaxPendingChannels is the number of channels the channel bank holds before
	// evicting the oldest one.
	MaxPendingChannels int `toml:"max_pending_channels"`
	// MaxChannelBankSize overrides the total channel bank size in bytes.
	MaxChannelBankSize uint64 `toml:"max_channel_bank_size"`
	// MaxRLPBytesPerChannel overrides the RLP read limit of a single channel.
	MaxRLPBytesPerChannel uint64 `toml:"max_rlp_bytes_per_channel"`
	// ChannelTimeout overrides the channel lifetime, in L1 blocks.
	ChannelTimeout uint64 `toml:"channel_timeout"`
}

func DefaultLimits() Limits {
	return Limits{MaxPendingChannels: DefaultMaxPendingChannels}
}

func (l *Limits) Check() error {
	var result *multierror.Error
	if l.MaxPendingChannels < 1 {
		result = multierror.Append(result, ErrNoPendingChannels)
	}
	if l.MaxChannelBankSize != 0 && l.MaxChannelBankSize < frameOverhead {
		result = multierror.Append(result, fmt.Errorf("%w: %d", ErrChannelBankTooSmall, l.MaxChannelBankSize))
	}
	return result.ErrorOrNil()
}

// LoadLimits reads limits from a TOML file. Keys that are absent keep their default.
func LoadLimits(path string) (Limits, error) {
	limits := DefaultLimits()
	md, err := toml.DecodeFile(path, &limits)
	if err != nil {
		return Limits{}, fmt.Errorf("failed to decode limits file %q: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Limits{}, fmt.Errorf("unknown keys in limits file %q: %v", path, undecoded)
	}
	if err := limits.Check(); err != nil {
		return Limits{}, fmt.Errorf("invalid limits file %q: %w", path, err)
	}
	return limits, nil
}

func (l *Limits) channelTimeout(spec *rollup.ChainSpec, t uint64) uint64 {
	if l.ChannelTimeout != 0 {
		return l.ChannelTimeout
	}
	return spec.ChannelTimeout(t)
}

func (l *Limits) maxChannelBankSize(spec *rollup.ChainSpec, t uint64) uint64 {
	if l.MaxChannelBankSize != 0 {
		return l.MaxChannelBankSize
	}
	return spec.MaxChannelBankSize(t)
}

func (l *Limits) maxRLPBytesPerChannel(spec *rollup.ChainSpec, t uint64) uint64 {
	if l.MaxRLPBytesPerChannel != 0 {
		return l.MaxRLPBytesPerChannel
	}
	return spec.MaxRLPBytesPerChannel(t)
}

func (l *Limits) maxPendingChannels() int {
	if l.MaxPendingChannels < 1 {
		return DefaultMaxPendingChannels
	}
	return l.MaxPendingChannels
}
