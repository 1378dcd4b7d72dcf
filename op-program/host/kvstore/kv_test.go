package kvstore

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	preimage "github.com/mantlenetworkio/mantle-faultproof/op-preimage"
)

func TestMemKV(t *testing.T) {
	kv := NewMemKV()
	key := common.Hash{0xaa}

	_, err := kv.Get(key)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, err, preimage.ErrNotFound)

	value := []byte{1, 2, 3}
	require.NoError(t, kv.Put(key, value))
	value[0] = 9
	got, err := kv.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, got, "stored value is a copy")

	require.NoError(t, kv.Put(key, []byte{1, 2, 3}), "same pre-image twice")
	require.ErrorIs(t, kv.Put(key, []byte{4}), ErrAlreadyExists)
	require.Equal(t, 1, kv.Size())
	require.NoError(t, kv.Close())
}

func TestPreimageSourceSplitter(t *testing.T) {
	localResult := []byte{1}
	globalResult := []byte{2}
	local := func(key common.Hash) ([]byte, error) { return localResult, nil }
	global := func(key common.Hash) ([]byte, error) { return globalResult, nil }
	splitter := NewPreimageSourceSplitter(local, global)

	tests := []struct {
		name      string
		keyPrefix byte
		expected  []byte
	}{
		{"Local", byte(preimage.LocalKeyType), localResult},
		{"Keccak", byte(preimage.Keccak256KeyType), globalResult},
		{"Sha256", byte(preimage.Sha256KeyType), globalResult},
		{"Blob", byte(preimage.BlobKeyType), globalResult},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			key := [32]byte{test.keyPrefix}
			res, err := splitter.Get(key)
			require.NoError(t, err)
			require.Equal(t, test.expected, res)
		})
	}
}
