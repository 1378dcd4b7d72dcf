package l1

import (
	"context"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	preimage "github.com/mantlenetworkio/mantle-faultproof/op-preimage"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/testlog"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/testutils"
)

func TestBlobFetcher(t *testing.T) {
	rng := rand.New(rand.NewSource(77))
	blob, commitment, err := testutils.RandomBlob(rng)
	require.NoError(t, err)
	ref := testutils.RandomBlockRef(rng)
	hash := eth.IndexedBlobHash{Index: 3, Hash: eth.KZGToVersionedHash(commitment)}

	preimages := blobPreimages(hash, blob, commitment)
	fetcher := NewBlobFetcher(testlog.Logger(t, log.LevelDebug), NewPreimageOracle(mapOracle(preimages), preimage.NoopHinter{}))

	blobs, err := fetcher.GetBlobs(context.Background(), ref, []eth.IndexedBlobHash{hash})
	require.NoError(t, err)
	require.Len(t, blobs, 1)
	require.Equal(t, blob, blobs[0])

	t.Run("CorruptFieldElement", func(t *testing.T) {
		bad := *blob
		bad[100] ^= 0x01
		preimages := blobPreimages(hash, &bad, commitment)
		fetcher := NewBlobFetcher(testlog.Logger(t, log.LevelDebug), NewPreimageOracle(mapOracle(preimages), preimage.NoopHinter{}))
		_, err := fetcher.GetBlobs(context.Background(), ref, []eth.IndexedBlobHash{hash})
		require.ErrorIs(t, err, eth.ErrBlobCommitmentMismatch)
	})

	t.Run("Missing", func(t *testing.T) {
		missing := eth.IndexedBlobHash{Index: 0, Hash: common.Hash{0x01}}
		_, err := fetcher.GetBlobs(context.Background(), ref, []eth.IndexedBlobHash{missing})
		require.ErrorIs(t, err, preimage.ErrNotFound)
	})
}
