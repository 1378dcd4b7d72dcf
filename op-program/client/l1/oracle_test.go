package l1

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/kzg4844"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	preimage "github.com/mantlenetworkio/mantle-faultproof/op-preimage"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/mpt"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/testutils"
)

// blockPreimages returns the pre-images of the header, transactions and receipts of the block.
func blockPreimages(t *testing.T, block *types.Block, receipts []*types.Receipt) map[common.Hash][]byte {
	preimages := make(map[common.Hash][]byte)

	hdrBytes, err := rlp.EncodeToBytes(block.Header())
	require.NoError(t, err)
	preimages[preimage.Keccak256Key(block.Hash()).PreimageKey()] = hdrBytes

	opaqueTxs, err := eth.EncodeTransactions(block.Transactions())
	require.NoError(t, err)
	_, txsNodes := mpt.WriteTrie(opaqueTxs)
	for _, p := range txsNodes {
		preimages[preimage.Keccak256Key(crypto.Keccak256Hash(p)).PreimageKey()] = p
	}

	opaqueReceipts, err := eth.EncodeReceipts(receipts)
	require.NoError(t, err)
	_, receiptNodes := mpt.WriteTrie(opaqueReceipts)
	for _, p := range receiptNodes {
		preimages[preimage.Keccak256Key(crypto.Keccak256Hash(p)).PreimageKey()] = p
	}
	return preimages
}

// testBlock tests that the given block with receipts can be passed through the preimage oracle.
func testBlock(t *testing.T, block *types.Block, receipts []*types.Receipt) {
	po, hints := createTestPreimageOracle(t, blockPreimages(t, block, receipts))

	// Check if block-headers work
	hints.On("hint", BlockHeaderHint(block.Hash()).Hint()).Once().Return()
	gotHeader, err := po.HeaderByBlockHash(block.Hash())
	require.NoError(t, err)
	hints.AssertExpectations(t)

	got, err := gotHeader.HeaderRLP()
	require.NoError(t, err)
	expected, err := rlp.EncodeToBytes(block.Header())
	require.NoError(t, err)
	require.Equal(t, expected, got, "expecting matching headers")

	// Check if blocks with txs work
	hints.On("hint", BlockHeaderHint(block.Hash()).Hint()).Once().Return()
	hints.On("hint", TransactionsHint(block.Hash()).Hint()).Once().Return()
	inf, gotTxs, err := po.TransactionsByBlockHash(block.Hash())
	require.NoError(t, err)
	hints.AssertExpectations(t)

	require.Equal(t, inf.Hash(), block.Hash())
	expectedTxs := block.Transactions()
	require.Equal(t, len(expectedTxs), len(gotTxs), "expecting equal tx list length")
	for i, tx := range gotTxs {
		require.Equalf(t, tx.Hash(), expectedTxs[i].Hash(), "expecting tx %d to match", i)
	}

	// Check if blocks with receipts work
	hints.On("hint", BlockHeaderHint(block.Hash()).Hint()).Once().Return()
	hints.On("hint", TransactionsHint(block.Hash()).Hint()).Once().Return()
	hints.On("hint", ReceiptsHint(block.Hash()).Hint()).Once().Return()
	inf, gotReceipts, err := po.ReceiptsByBlockHash(block.Hash())
	require.NoError(t, err)
	hints.AssertExpectations(t)

	require.Equal(t, inf.Hash(), block.Hash())
	require.Equal(t, len(receipts), len(gotReceipts), "expecting equal tx list length")
	for i, r := range gotReceipts {
		require.Equalf(t, r.TxHash, expectedTxs[i].Hash(), "expecting receipt to match tx %d", i)
	}
}

func TestPreimageOracleBlockByHash(t *testing.T) {
	rng := rand.New(rand.NewSource(123))

	for i := 0; i < 10; i++ {
		block, receipts := testutils.RandomBlock(rng, 10)
		t.Run(fmt.Sprintf("block_%d", i), func(t *testing.T) {
			testBlock(t, block, receipts)
		})
	}
}

func TestPreimageOracleMissingData(t *testing.T) {
	rng := rand.New(rand.NewSource(124))
	block, receipts := testutils.RandomBlock(rng, 3)
	preimages := blockPreimages(t, block, receipts)

	// drop the root node of the receipts trie
	delete(preimages, preimage.Keccak256Key(block.ReceiptHash()).PreimageKey())
	po := &PreimageOracle{oracle: mapOracle(preimages), hint: preimage.NoopHinter{}}

	_, _, err := po.TransactionsByBlockHash(block.Hash())
	require.NoError(t, err)
	_, _, err = po.ReceiptsByBlockHash(block.Hash())
	require.ErrorIs(t, err, preimage.ErrNotFound)
	require.NotErrorIs(t, err, preimage.ErrCorruptData)

	_, err = po.HeaderByBlockHash(common.Hash{0xaa})
	require.ErrorIs(t, err, preimage.ErrNotFound)
}

func TestPreimageOracleCorruptHeader(t *testing.T) {
	hash := common.Hash{0xbb}
	preimages := map[common.Hash][]byte{
		preimage.Keccak256Key(hash).PreimageKey(): {0xc0, 0x01},
	}
	po := &PreimageOracle{oracle: mapOracle(preimages), hint: preimage.NoopHinter{}}
	_, err := po.HeaderByBlockHash(hash)
	require.ErrorIs(t, err, preimage.ErrCorruptData)
}

func TestGetBlob(t *testing.T) {
	testCases := []struct {
		name      string
		blobIndex uint64
	}{
		{"blob index 0", 0},
		{"blob index 1", 1},
		{"blob index 2", 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(567 + int64(tc.blobIndex)))
			blob, blobCommitment, err := testutils.RandomBlob(rng)
			require.NoError(t, err)
			blockRef := testutils.RandomBlockRef(rng)

			indexedBlobHash := eth.IndexedBlobHash{
				Index: tc.blobIndex,
				Hash:  eth.KZGToVersionedHash(blobCommitment),
			}
			preimages := blobPreimages(indexedBlobHash, blob, blobCommitment)

			blobReqMeta := make([]byte, 16)
			binary.BigEndian.PutUint64(blobReqMeta[0:8], indexedBlobHash.Index)
			binary.BigEndian.PutUint64(blobReqMeta[8:16], blockRef.Time)
			expectedBlobHint := BlobHint(append(indexedBlobHash.Hash[:], blobReqMeta...)).Hint()

			po, hints := createTestPreimageOracle(t, preimages)

			hints.On("hint", expectedBlobHint).Once().Return()
			actualBlob, err := po.GetBlob(blockRef, indexedBlobHash)
			require.NoError(t, err)
			hints.AssertExpectations(t)
			require.Equal(t, blob[:], actualBlob[:])
		})
	}
}

func blobPreimages(blobHash eth.IndexedBlobHash, blob *eth.Blob, commitment kzg4844.Commitment) map[common.Hash][]byte {
	preimages := make(map[common.Hash][]byte)
	preimages[preimage.Sha256Key(blobHash.Hash).PreimageKey()] = commitment[:]
	fieldElemKey := make([]byte, 80)
	copy(fieldElemKey[:48], commitment[:])
	for i := 0; i < params.BlobTxFieldElementsPerBlob; i++ {
		rootOfUnity := RootsOfUnity[i].Bytes()
		copy(fieldElemKey[48:], rootOfUnity[:])
		key := preimage.BlobKey(crypto.Keccak256(fieldElemKey)).PreimageKey()
		preimages[key] = blob[i*32 : (i+1)*32]
	}
	return preimages
}

func mapOracle(preimages map[common.Hash][]byte) preimage.OracleFn {
	return func(key preimage.Key) ([]byte, error) {
		v, ok := preimages[key.PreimageKey()]
		if !ok {
			return nil, fmt.Errorf("%w: %x", preimage.ErrNotFound, key.PreimageKey())
		}
		return v, nil
	}
}

func createTestPreimageOracle(t *testing.T, preimages map[common.Hash][]byte) (*PreimageOracle, *mock.Mock) {
	var hints = new(mock.Mock)
	po := &PreimageOracle{
		oracle: preimage.OracleFn(func(key preimage.Key) ([]byte, error) {
			v, ok := preimages[key.PreimageKey()]
			require.True(t, ok, "preimage must exist")
			return v, nil
		}),
		hint: preimage.HinterFn(func(v preimage.Hint) {
			hints.MethodCalled("hint", v.Hint())
		}),
	}
	return po, hints
}

// TestInitRootsOfUnity validates that the roots of unity are constructed and ordered correctly such that the
// root at index i can be used to compute the field element at index i in a blob
func TestInitRootsOfUnity(t *testing.T) {
	require.Equal(t, params.BlobTxFieldElementsPerBlob, len(RootsOfUnity))

	rng := rand.New(rand.NewSource(123))
	blob, blobCommitment, err := testutils.RandomBlob(rng)
	require.NoError(t, err)

	// a full pass evaluates 4096 KZG proofs, a stride keeps the test fast
	for i := 0; i < params.BlobTxFieldElementsPerBlob; i += 97 {
		var targetFieldElement [32]byte
		copy(targetFieldElement[:], blob[i*32:(i+1)*32])

		z := RootsOfUnity[i].Bytes()
		kzgProof, evaluation, err := kzg4844.ComputeProof(blob.KZGBlob(), z)
		require.NoError(t, err)
		require.Equal(t, targetFieldElement[:], evaluation[:])

		err = kzg4844.VerifyProof(blobCommitment, z, targetFieldElement, kzgProof)
		require.NoError(t, err)
	}
}
