package preimage

import (
	"encoding/binary"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestPreimageKeyTypes(t *testing.T) {
	t.Run("LocalIndexKey", func(t *testing.T) {
		fuzzKey := LocalIndexKey(0xdead_beef_1234)
		k := fuzzKey.PreimageKey()
		require.Equal(t, byte(LocalKeyType), k[0])
		require.Equal(t, uint64(0xdead_beef_1234), binary.BigEndian.Uint64(k[24:]))
		require.Equal(t, make([]byte, 23), k[1:24])
	})

	hash := crypto.Keccak256Hash([]byte("hello"))
	cases := []struct {
		name string
		key  Key
		typ  KeyType
	}{
		{"Keccak256Key", Keccak256Key(hash), Keccak256KeyType},
		{"Sha256Key", Sha256Key(hash), Sha256KeyType},
		{"BlobKey", BlobKey(hash), BlobKeyType},
		{"PrecompileKey", PrecompileKey(hash), PrecompileKeyType},
		{"GlobalGenericKey", GlobalGenericKey(hash), GlobalGenericKeyType},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			k := c.key.PreimageKey()
			require.Equal(t, byte(c.typ), k[0])
			require.Equal(t, hash[1:], k[1:], "only the type byte replaces the hash")
			require.Equal(t, c.typ, RawKey(k).Type())
		})
	}
}
