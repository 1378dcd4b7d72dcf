package derive

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zlib"

	"github.com/ethereum/go-ethereum/rlp"
)

var (
	ErrMaxFrameSizeTooSmall    = errors.New("maxSize is too small to fit the fixed frame overhead")
	ErrTooManyRLPBytes         = errors.New("batch would cause RLP bytes to go over limit")
	ErrChannelOutAlreadyClosed = errors.New("channel-out already closed")
)

// FrameV0OverHeadSize is the absolute minimum size of a frame.
// This is the fixed overhead frame size, calculated as specified
// in the [Frame Format] specs: 16 + 2 + 4 + 1 = 23 bytes.
const FrameV0OverHeadSize = 23

type compressor interface {
	io.WriteCloser
	Flush() error
}

// ChannelOut encodes batches into a compressed channel and splits it into frames.
type ChannelOut struct {
	id ChannelID
	// Frame ID of the next frame to emit. Increment after emitting
	frame uint64
	// rlpLength is the uncompressed size of the channel. Must be less than MaxRLPBytesPerChannel
	rlpLength int
	maxRLP    uint64

	// Compressor stage. Write input data to it
	compress compressor
	// post compression buffer
	buf bytes.Buffer

	closed bool
}

// NewChannelOut creates a channel with a random id, compressing with the given algorithm.
func NewChannelOut(algo CompressionAlgo, maxRLPBytesPerChannel uint64) (*ChannelOut, error) {
	c := &ChannelOut{maxRLP: maxRLPBytesPerChannel}
	if _, err := rand.Read(c.id[:]); err != nil {
		return nil, err
	}
	if level, ok := brotliLevels[algo]; ok {
		c.buf.WriteByte(ChannelVersionBrotli)
		c.compress = brotli.NewWriterLevel(&c.buf, level)
		return c, nil
	}
	if algo != Zlib {
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algo)
	}
	zw, err := zlib.NewWriterLevel(&c.buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	c.compress = zw
	return c, nil
}

func (co *ChannelOut) ID() ChannelID {
	return co.id
}

// AddBatch adds a batch to the channel. It returns the RLP encoded byte size
// and an error if there is a problem adding the batch.
func (co *ChannelOut) AddBatch(batch *BatchData) (uint64, error) {
	if co.closed {
		return 0, ErrChannelOutAlreadyClosed
	}

	// We encode to a temporary buffer to determine the encoded length to
	// ensure that the total size of all RLP elements is less than or equal to MAX_RLP_BYTES_PER_CHANNEL
	var buf bytes.Buffer
	if err := rlp.Encode(&buf, batch); err != nil {
		return 0, err
	}
	if co.rlpLength+buf.Len() > int(co.maxRLP) {
		return 0, fmt.Errorf("could not add %d bytes to channel of %d bytes, max is %d. err: %w",
			buf.Len(), co.rlpLength, co.maxRLP, ErrTooManyRLPBytes)
	}
	co.rlpLength += buf.Len()

	written, err := io.Copy(co.compress, &buf)
	return uint64(written), err
}

// ReadyBytes returns the number of compressed bytes that can be immediately output into a frame.
func (co *ChannelOut) ReadyBytes() int {
	return co.buf.Len()
}

// Flush flushes the internal compression stage to the ready buffer.
func (co *ChannelOut) Flush() error {
	return co.compress.Flush()
}

func (co *ChannelOut) Close() error {
	if co.closed {
		return ErrChannelOutAlreadyClosed
	}
	co.closed = true
	return co.compress.Close()
}

// OutputFrame writes a frame to w with a given max size and returns the frame
// number.
// Use `ReadyBytes`, `Flush`, and `Close` to modify the ready buffer.
// Returns an error if the `maxSize` < FrameV0OverHeadSize.
// Returns io.EOF when the channel is closed & there are no more frames.
// Returns nil if there is still more buffered data.
// Returns an error if it ran into an error during processing.
func (co *ChannelOut) OutputFrame(w *bytes.Buffer, maxSize uint64) (uint16, error) {
	// Check that the maxSize is large enough for the frame overhead size.
	if maxSize < FrameV0OverHeadSize {
		return 0, ErrMaxFrameSizeTooSmall
	}

	f := Frame{
		ID:          co.id,
		FrameNumber: uint16(co.frame),
	}

	// Copy data from the local buffer into the frame data buffer
	maxDataSize := maxSize - FrameV0OverHeadSize
	if maxDataSize >= uint64(co.buf.Len()) {
		maxDataSize = uint64(co.buf.Len())
		// If we are closed & will not spill past the current frame
		// mark it as the final frame of the channel.
		if co.closed {
			f.IsLast = true
		}
	}
	f.Data = make([]byte, maxDataSize)

	if _, err := io.ReadFull(&co.buf, f.Data); err != nil {
		return 0, err
	}

	if err := f.MarshalBinary(w); err != nil {
		return 0, err
	}

	co.frame += 1
	fn := f.FrameNumber
	if f.IsLast {
		return fn, io.EOF
	}
	return fn, nil
}

// EncodeChannel builds a closed channel with the given batches and returns its
// frames, each serialized as a complete batcher transaction payload.
func EncodeChannel(algo CompressionAlgo, maxRLPBytesPerChannel uint64, maxFrameSize uint64, batches ...*BatchData) (ChannelID, [][]byte, error) {
	co, err := NewChannelOut(algo, maxRLPBytesPerChannel)
	if err != nil {
		return ChannelID{}, nil, err
	}
	for i, b := range batches {
		if _, err := co.AddBatch(b); err != nil {
			return ChannelID{}, nil, fmt.Errorf("failed to add batch %d: %w", i, err)
		}
	}
	if err := co.Close(); err != nil {
		return ChannelID{}, nil, err
	}
	var out [][]byte
	for {
		var buf bytes.Buffer
		buf.WriteByte(DerivationVersion0)
		_, err := co.OutputFrame(&buf, maxFrameSize)
		out = append(out, buf.Bytes())
		if errors.Is(err, io.EOF) {
			return co.ID(), out, nil
		} else if err != nil {
			return ChannelID{}, nil, err
		}
	}
}
