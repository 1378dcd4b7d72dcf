package l1

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
)

type BlobFetcher struct {
	logger log.Logger
	oracle Oracle
}

func NewBlobFetcher(logger log.Logger, oracle Oracle) *BlobFetcher {
	return &BlobFetcher{
		logger: logger,
		oracle: oracle,
	}
}

// GetBlobs fetches blobs that were confirmed in the given L1 block with the given indexed blob hashes.
// Every blob is checked against its versioned hash.
func (b *BlobFetcher) GetBlobs(ctx context.Context, ref eth.L1BlockRef, hashes []eth.IndexedBlobHash) ([]*eth.Blob, error) {
	blobs := make([]*eth.Blob, len(hashes))
	for i := 0; i < len(hashes); i++ {
		b.logger.Info("Fetching blob", "l1_ref", ref.Hash, "blob_versioned_hash", hashes[i].Hash, "index", hashes[i].Index)
		blob, err := b.oracle.GetBlob(ref, hashes[i])
		if err != nil {
			return nil, err
		}
		if err := eth.VerifyBlobHash(blob, hashes[i].Hash); err != nil {
			return nil, fmt.Errorf("blob %d of block %s does not match its versioned hash: %w", i, ref, err)
		}
		blobs[i] = blob
	}
	return blobs, nil
}
