package preimage

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// LocalIndexKey is a key local to the program, indexing a special program input.
type LocalIndexKey uint64

func (k LocalIndexKey) PreimageKey() (out [32]byte) {
	out[0] = byte(LocalKeyType)
	binary.BigEndian.PutUint64(out[24:], uint64(k))
	return
}

// Keccak256Key wraps a keccak256 hash to use it as a typed pre-image key.
type Keccak256Key [32]byte

func (k Keccak256Key) PreimageKey() (out [32]byte) {
	out = k                         // copy the keccak hash
	out[0] = byte(Keccak256KeyType) // apply prefix
	return
}

func (k Keccak256Key) String() string {
	return common.Hash(k).String()
}

func (k Keccak256Key) TerminalString() string {
	return common.Hash(k).TerminalString()
}

// Sha256Key wraps a sha256 hash to use it as a typed pre-image key.
type Sha256Key [32]byte

func (k Sha256Key) PreimageKey() (out [32]byte) {
	out = k
	out[0] = byte(Sha256KeyType)
	return
}

func (k Sha256Key) String() string {
	return common.Hash(k).String()
}

// BlobKey is the hash of a blob commitment and `z` value to use as a preimage key for `y`.
type BlobKey [32]byte

func (k BlobKey) PreimageKey() (out [32]byte) {
	out = k
	out[0] = byte(BlobKeyType)
	return
}

func (k BlobKey) String() string {
	return common.Hash(k).String()
}

// PrecompileKey is a hash of precompile address and its input data.
type PrecompileKey [32]byte

func (k PrecompileKey) PreimageKey() (out [32]byte) {
	out = k
	out[0] = byte(PrecompileKeyType)
	return
}

func (k PrecompileKey) String() string {
	return common.Hash(k).String()
}

// GlobalGenericKey is a generic global key, reserved for data that is neither hashed nor local.
type GlobalGenericKey [32]byte

func (k GlobalGenericKey) PreimageKey() (out [32]byte) {
	out = k
	out[0] = byte(GlobalGenericKeyType)
	return
}

// RawKey is an already type-prefixed pre-image key, as received by the host.
type RawKey [32]byte

func (k RawKey) PreimageKey() [32]byte {
	return k
}

// Type returns the key type of the raw key.
func (k RawKey) Type() KeyType {
	return KeyType(k[0])
}

func (k RawKey) String() string {
	return fmt.Sprintf("%s:%x", k.Type(), k[1:])
}
