package mpt

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	preimage "github.com/mantlenetworkio/mantle-faultproof/op-preimage"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/testutils"
)

func nodeStore(nodes []hexutil.Bytes) (map[common.Hash][]byte, PreimageGetter) {
	store := make(map[common.Hash][]byte)
	for _, n := range nodes {
		store[crypto.Keccak256Hash(n)] = n
	}
	return store, func(key common.Hash) ([]byte, error) {
		v, ok := store[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", preimage.ErrNotFound, key)
		}
		return v, nil
	}
}

func TestListRoundTrip(t *testing.T) {
	for _, count := range []int{0, 1, 2, 30, 129, 300} {
		count := count
		t.Run(fmt.Sprintf("count_%d", count), func(t *testing.T) {
			rng := rand.New(rand.NewSource(int64(count)))
			values := make([]hexutil.Bytes, count)
			for i := range values {
				values[i] = testutils.RandomData(rng, 1+rng.Intn(100))
			}
			root, nodes := WriteTrie(values)
			if count == 0 {
				require.Equal(t, types.EmptyRootHash, root)
			}

			_, get := nodeStore(nodes)
			got, err := ReadTrie(root, get)
			require.NoError(t, err)
			require.Equal(t, values, got)
		})
	}
}

func TestListMatchesTxRoot(t *testing.T) {
	rng := rand.New(rand.NewSource(1234))
	block, _ := testutils.RandomBlock(rng, 10)
	var opaque []hexutil.Bytes
	for _, tx := range block.Transactions() {
		data, err := tx.MarshalBinary()
		require.NoError(t, err)
		opaque = append(opaque, data)
	}
	root, _ := WriteTrie(opaque)
	require.Equal(t, block.TxHash(), root)
}

func TestReadTrieMissingNode(t *testing.T) {
	values := []hexutil.Bytes{make([]byte, 64), make([]byte, 64), make([]byte, 64)}
	root, nodes := WriteTrie(values)
	store, get := nodeStore(nodes)
	delete(store, root)
	_, err := ReadTrie(root, get)
	require.ErrorIs(t, err, preimage.ErrNotFound)
	require.NotErrorIs(t, err, preimage.ErrCorruptData)
}

func TestReadTrieCorruptNode(t *testing.T) {
	values := []hexutil.Bytes{make([]byte, 64), make([]byte, 64)}
	root, _ := WriteTrie(values)
	get := func(key common.Hash) ([]byte, error) {
		return []byte{0xc1, 0x80}, nil
	}
	_, err := ReadTrie(root, get)
	require.ErrorIs(t, err, preimage.ErrCorruptData)
}

func TestLookup(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	entries := make(map[common.Hash][]byte)
	for i := 0; i < 50; i++ {
		entries[testutils.RandomHash(rng)] = testutils.RandomData(rng, 1+rng.Intn(80))
	}
	root, nodes, err := WriteKeyedTrie(entries)
	require.NoError(t, err)
	_, get := nodeStore(nodes)

	for k, v := range entries {
		got, err := Lookup(root, k[:], get)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
	missing := testutils.RandomHash(rng)
	got, err := Lookup(root, missing[:], get)
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = Lookup(types.EmptyRootHash, missing[:], get)
	require.NoError(t, err)
	require.Nil(t, got)
}
