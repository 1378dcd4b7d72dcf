package preimage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	// DefaultMaxPreimageSize bounds the response length the client is willing to read.
	DefaultMaxPreimageSize = 1 << 28

	// notFoundLength is the length value the host writes to signal an unknown key.
	notFoundLength = math.MaxUint64
)

// OracleClient implements the Oracle by writing the pre-image key to the given stream,
// and reading back a length-prefixed value.
// The client is not safe for concurrent use, see SharedOracle.
type OracleClient struct {
	rw      io.ReadWriter
	maxSize uint64
	closed  error
}

var _ Oracle = (*OracleClient)(nil)

func NewOracleClient(rw io.ReadWriter) *OracleClient {
	return &OracleClient{rw: rw, maxSize: DefaultMaxPreimageSize}
}

// WithMaxSize changes the largest pre-image the client accepts.
func (o *OracleClient) WithMaxSize(size uint64) *OracleClient {
	o.maxSize = size
	return o
}

// Get requests the pre-image of the given key from the host. The call blocks until the full
// value has been read. Any failure to read or write the channel permanently closes the client.
func (o *OracleClient) Get(key Key) ([]byte, error) {
	if o.closed != nil {
		return nil, o.closed
	}
	h := key.PreimageKey()
	if _, err := o.rw.Write(h[:]); err != nil {
		return nil, o.fail(fmt.Errorf("failed to write key %s: %w", RawKey(h), err))
	}

	var lengthPrefix [8]byte
	if _, err := io.ReadFull(o.rw, lengthPrefix[:]); err != nil {
		return nil, o.fail(fmt.Errorf("failed to read length prefix for key %s: %w", RawKey(h), err))
	}
	length := binary.BigEndian.Uint64(lengthPrefix[:])
	if length == notFoundLength {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, RawKey(h))
	}
	if length > o.maxSize {
		return nil, o.fail(fmt.Errorf("preimage of key %s too large: %d > %d", RawKey(h), length, o.maxSize))
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(o.rw, payload); err != nil {
		return nil, o.fail(fmt.Errorf("failed to read %d bytes of key %s: %w", length, RawKey(h), err))
	}
	return payload, nil
}

func (o *OracleClient) fail(err error) error {
	o.closed = fmt.Errorf("%w: %w", ErrChannelClosed, err)
	return o.closed
}

// OracleServer serves the pre-image requests of an OracleClient.
type OracleServer struct {
	rw io.ReadWriter
}

func NewOracleServer(rw io.ReadWriter) *OracleServer {
	return &OracleServer{rw: rw}
}

// PreimageGetter resolves a raw pre-image key. It returns ErrNotFound for unknown keys.
type PreimageGetter func(key [32]byte) ([]byte, error)

// NextPreimageRequest serves a single pre-image request.
// It returns io.EOF when the client closed the channel.
func (o *OracleServer) NextPreimageRequest(getPreimage PreimageGetter) error {
	var key [32]byte
	if _, err := io.ReadFull(o.rw, key[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("failed to read requested pre-image key: %w", err)
	}
	value, err := getPreimage(key)
	if errors.Is(err, ErrNotFound) {
		var lengthPrefix [8]byte
		binary.BigEndian.PutUint64(lengthPrefix[:], notFoundLength)
		if _, err := o.rw.Write(lengthPrefix[:]); err != nil {
			return fmt.Errorf("failed to write not-found marker: %w", err)
		}
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to serve pre-image %s request: %w", RawKey(key), err)
	}

	var lengthPrefix [8]byte
	binary.BigEndian.PutUint64(lengthPrefix[:], uint64(len(value)))
	if _, err := o.rw.Write(lengthPrefix[:]); err != nil {
		return fmt.Errorf("failed to write length-prefix %x: %w", lengthPrefix, err)
	}
	if len(value) == 0 {
		return nil
	}
	if _, err := o.rw.Write(value); err != nil {
		return fmt.Errorf("failed to write pre-image value (%d long): %w", len(value), err)
	}
	return nil
}
