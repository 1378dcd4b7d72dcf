package derive

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// count the tagging info as 200 in terms of buffer size.
const frameOverhead = 200

// frameSize calculates the size of the frame + overhead for
// storing the frame. The sum of the frame size of each frame in
// a channel determines the channel's size. The sum of the channel
// sizes is used for pruning & compared against the max channel bank size.
func frameSize(frame Frame) uint64 {
	return uint64(len(frame.Data)) + frameOverhead
}

const DerivationVersion0 = 0

// MaxSpanBatchElementCount is the maximum number of blocks, transactions in total,
// or transaction per block allowed in a span batch.
const MaxSpanBatchElementCount = 10_000_000

// ChannelVersionBrotli is the version byte prefix of a channel compressed with brotli.
// Zlib-compressed channels are recognized by the zlib header instead.
const ChannelVersionBrotli byte = 0x01

// DuplicateErr is returned when a newly read frame is already known
var DuplicateErr = errors.New("duplicate frame")

// ChannelIDLength defines the length of the channel IDs
const ChannelIDLength = 16

// ChannelID is an opaque identifier for a channel. It is 128 bits to be globally unique.
type ChannelID [ChannelIDLength]byte

func (id ChannelID) String() string {
	return fmt.Sprintf("%x", id[:])
}

// TerminalString implements log.TerminalStringer, formatting a string for console output during logging.
func (id ChannelID) TerminalString() string {
	return fmt.Sprintf("%x..%x", id[:3], id[13:])
}

func (id ChannelID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ChannelID) UnmarshalText(text []byte) error {
	h, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	if len(h) != ChannelIDLength {
		return errors.New("invalid length")
	}
	copy(id[:], h)
	return nil
}

type CompressionAlgo string

const (
	Zlib     CompressionAlgo = "zlib"
	Brotli   CompressionAlgo = "brotli"
	Brotli9  CompressionAlgo = "brotli-9"
	Brotli10 CompressionAlgo = "brotli-10"
	Brotli11 CompressionAlgo = "brotli-11"
)

var CompressionAlgos = []CompressionAlgo{Zlib, Brotli, Brotli9, Brotli10, Brotli11}

var brotliLevels = map[CompressionAlgo]int{
	Brotli:   10,
	Brotli9:  9,
	Brotli10: 10,
	Brotli11: 11,
}

func (algo CompressionAlgo) String() string {
	return string(algo)
}

func (algo *CompressionAlgo) Set(value string) error {
	for _, a := range CompressionAlgos {
		if string(a) == value {
			*algo = a
			return nil
		}
	}
	return fmt.Errorf("unknown compression algo: %s", value)
}

func (algo *CompressionAlgo) Clone() any {
	cpy := *algo
	return &cpy
}

func (algo CompressionAlgo) IsBrotli() bool {
	_, ok := brotliLevels[algo]
	return ok
}

func GetBrotliLevel(algo CompressionAlgo) int {
	if lvl, ok := brotliLevels[algo]; ok {
		return lvl
	}
	panic(fmt.Sprintf("unrecognized brotli compression algo: %s", algo))
}
