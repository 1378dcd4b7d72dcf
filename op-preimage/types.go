package preimage

import (
	"errors"
)

var (
	// ErrNotFound is returned when the host has no preimage for the requested key.
	ErrNotFound = errors.New("preimage not found")
	// ErrChannelClosed is returned when the oracle channel can no longer be used.
	// The host is either gone or is answering with malformed data; it is never retried.
	ErrChannelClosed = errors.New("preimage channel closed")
	// ErrCorruptData is returned by typed data providers when a pre-image was served,
	// but does not decode into the requested value.
	ErrCorruptData = errors.New("corrupt preimage data")
)

type Key interface {
	// PreimageKey changes the Key commitment into a
	// 32-byte type-prefixed preimage key.
	PreimageKey() [32]byte
}

type Oracle interface {
	// Get the full pre-image of a given pre-image key.
	// This returns ErrNotFound if the host signals it does not know the key,
	// and ErrChannelClosed if the channel failed.
	Get(key Key) ([]byte, error)
}

type OracleFn func(key Key) ([]byte, error)

func (fn OracleFn) Get(key Key) ([]byte, error) {
	return fn(key)
}

// KeyType is the key-type of a pre-image, used to prefix the pre-image key with.
type KeyType byte

const (
	// The zero key type is illegal to use, ensuring all keys are non-zero.
	_ KeyType = 0
	// LocalKeyType is for input-type pre-images, specific to the local program instance.
	LocalKeyType KeyType = 1
	// Keccak256KeyType is for keccak256 pre-images, for any global shared pre-images.
	Keccak256KeyType KeyType = 2
	// GlobalGenericKeyType is a reserved key type for generic global data.
	GlobalGenericKeyType KeyType = 3
	// Sha256KeyType is for sha256 pre-images, for any global shared pre-images.
	Sha256KeyType KeyType = 4
	// BlobKeyType is for blob point pre-images.
	BlobKeyType KeyType = 5
	// PrecompileKeyType is for precompile result pre-images.
	PrecompileKeyType KeyType = 6
)

func (t KeyType) String() string {
	switch t {
	case LocalKeyType:
		return "local"
	case Keccak256KeyType:
		return "keccak256"
	case GlobalGenericKeyType:
		return "global-generic"
	case Sha256KeyType:
		return "sha256"
	case BlobKeyType:
		return "blob"
	case PrecompileKeyType:
		return "precompile"
	default:
		return "unknown"
	}
}

// Hint is an interface to enable any program type to function as a hint,
// when passed to the Hinter interface, returning a string representation
// of what data the host should prepare pre-images for.
type Hint interface {
	Hint() string
}

// Hinter is an interface to write hints to the host.
// This may be implemented as a no-op or logging hinter if the program is executing
// in a read-only environment where the host is expected to have all pre-images ready.
type Hinter interface {
	Hint(v Hint)
}

type HinterFn func(v Hint)

func (fn HinterFn) Hint(v Hint) {
	fn(v)
}

// NoopHinter drops every hint.
type NoopHinter struct{}

func (NoopHinter) Hint(Hint) {}

// RawHint is a hint that is already rendered as its string form.
type RawHint string

func (rh RawHint) Hint() string {
	return string(rh)
}
