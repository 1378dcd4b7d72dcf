package l1

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"math/bits"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rlp"

	preimage "github.com/mantlenetworkio/mantle-faultproof/op-preimage"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/mpt"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
)

// Oracle serves L1 chain data by block hash. Errors are one of preimage.ErrNotFound,
// preimage.ErrChannelClosed or preimage.ErrCorruptData, wrapped with the requested hash.
type Oracle interface {
	// HeaderByBlockHash retrieves the block header with the given hash.
	HeaderByBlockHash(blockHash common.Hash) (eth.BlockInfo, error)

	// TransactionsByBlockHash retrieves the transactions from the block with the given hash.
	TransactionsByBlockHash(blockHash common.Hash) (eth.BlockInfo, types.Transactions, error)

	// ReceiptsByBlockHash retrieves the receipts from the block with the given hash.
	ReceiptsByBlockHash(blockHash common.Hash) (eth.BlockInfo, types.Receipts, error)

	// GetBlob retrieves the blob with the given hash.
	GetBlob(ref eth.L1BlockRef, blobHash eth.IndexedBlobHash) (*eth.Blob, error)
}

// PreimageOracle implements Oracle using by interfacing with the pure preimage.Oracle
// to fetch pre-images to decode into the requested data.
type PreimageOracle struct {
	oracle preimage.Oracle
	hint   preimage.Hinter
}

var _ Oracle = (*PreimageOracle)(nil)

func NewPreimageOracle(raw preimage.Oracle, hint preimage.Hinter) *PreimageOracle {
	return &PreimageOracle{
		oracle: raw,
		hint:   hint,
	}
}

func (p *PreimageOracle) getNode(key common.Hash) ([]byte, error) {
	return p.oracle.Get(preimage.Keccak256Key(key))
}

func (p *PreimageOracle) headerByBlockHash(blockHash common.Hash) (*types.Header, error) {
	p.hint.Hint(BlockHeaderHint(blockHash))
	headerRlp, err := p.oracle.Get(preimage.Keccak256Key(blockHash))
	if err != nil {
		return nil, fmt.Errorf("failed to get block header %s: %w", blockHash, err)
	}
	var header types.Header
	if err := rlp.DecodeBytes(headerRlp, &header); err != nil {
		return nil, fmt.Errorf("%w: invalid block header %s: %w", preimage.ErrCorruptData, blockHash, err)
	}
	return &header, nil
}

func (p *PreimageOracle) HeaderByBlockHash(blockHash common.Hash) (eth.BlockInfo, error) {
	header, err := p.headerByBlockHash(blockHash)
	if err != nil {
		return nil, err
	}
	return eth.HeaderBlockInfoTrusted(blockHash, header), nil
}

func (p *PreimageOracle) TransactionsByBlockHash(blockHash common.Hash) (eth.BlockInfo, types.Transactions, error) {
	header, err := p.headerByBlockHash(blockHash)
	if err != nil {
		return nil, nil, err
	}
	p.hint.Hint(TransactionsHint(blockHash))

	opaqueTxs, err := mpt.ReadTrie(header.TxHash, p.getNode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read transactions of block %s: %w", blockHash, err)
	}
	txs, err := eth.DecodeTransactions(opaqueTxs)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to decode list of txs of block %s: %w", preimage.ErrCorruptData, blockHash, err)
	}
	return eth.HeaderBlockInfoTrusted(blockHash, header), txs, nil
}

func (p *PreimageOracle) ReceiptsByBlockHash(blockHash common.Hash) (eth.BlockInfo, types.Receipts, error) {
	info, txs, err := p.TransactionsByBlockHash(blockHash)
	if err != nil {
		return nil, nil, err
	}
	p.hint.Hint(ReceiptsHint(blockHash))

	opaqueReceipts, err := mpt.ReadTrie(info.ReceiptHash(), p.getNode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read receipts of block %s: %w", blockHash, err)
	}
	txHashes := eth.TransactionsToHashes(txs)
	receipts, err := eth.DecodeRawReceipts(eth.ToBlockID(info), opaqueReceipts, txHashes)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: bad receipts data for block %s: %w", preimage.ErrCorruptData, blockHash, err)
	}
	return info, receipts, nil
}

func (p *PreimageOracle) GetBlob(ref eth.L1BlockRef, blobHash eth.IndexedBlobHash) (*eth.Blob, error) {
	// Send a hint for the blob commitment & blob field elements.
	blobReqMeta := make([]byte, 16)
	binary.BigEndian.PutUint64(blobReqMeta[0:8], blobHash.Index)
	binary.BigEndian.PutUint64(blobReqMeta[8:16], ref.Time)
	p.hint.Hint(BlobHint(append(blobHash.Hash[:], blobReqMeta...)))

	commitment, err := p.oracle.Get(preimage.Sha256Key(blobHash.Hash))
	if err != nil {
		return nil, fmt.Errorf("failed to get commitment of blob %s: %w", blobHash.Hash, err)
	}
	if len(commitment) != 48 {
		return nil, fmt.Errorf("%w: commitment of blob %s has length %d", preimage.ErrCorruptData, blobHash.Hash, len(commitment))
	}

	// Reconstruct the full blob from the 4096 field elements.
	blob := eth.Blob{}
	fieldElemKey := make([]byte, 80)
	copy(fieldElemKey[:48], commitment)
	for i := 0; i < params.BlobTxFieldElementsPerBlob; i++ {
		rootOfUnity := RootsOfUnity[i].Bytes()
		copy(fieldElemKey[48:], rootOfUnity[:])
		fieldElement, err := p.oracle.Get(preimage.BlobKey(crypto.Keccak256(fieldElemKey)))
		if err != nil {
			return nil, fmt.Errorf("failed to get field element %d of blob %s: %w", i, blobHash.Hash, err)
		}
		if len(fieldElement) != 32 {
			return nil, fmt.Errorf("%w: field element %d of blob %s has length %d", preimage.ErrCorruptData, i, blobHash.Hash, len(fieldElement))
		}
		copy(blob[i<<5:(i+1)<<5], fieldElement)
	}
	return &blob, nil
}

var RootsOfUnity *[4096]fr.Element

// generateRootsOfUnity generates the 4096th bit-reversed roots of unity used in EIP-4844 as predefined evaluation points.
// To compute the field element at index i in a blob, the blob polynomial is evaluated at the ith root of unity.
func generateRootsOfUnity() *[4096]fr.Element {
	rootsOfUnity := new([4096]fr.Element)

	const maxOrderRoot uint64 = 32
	var rootOfUnity fr.Element
	if _, err := rootOfUnity.SetString("10238227357739495823651030575849232062558860180284477541189508159991286009131"); err != nil {
		panic("failed to initialize root of unity")
	}
	// The generator of the subgroup of order 4096 is the 2^32-order root raised to 2^(32-12).
	logx := uint64(bits.TrailingZeros64(4096))
	expo := uint64(1 << (maxOrderRoot - logx))

	var generator fr.Element
	generator.Exp(rootOfUnity, big.NewInt(int64(expo)))
	current := fr.One()
	for i := uint64(0); i < 4096; i++ {
		rootsOfUnity[i] = current
		current.Mul(&current, &generator)
	}

	shiftCorrection := uint64(64 - bits.TrailingZeros64(4096))
	for i := uint64(0); i < 4096; i++ {
		irev := bits.Reverse64(i) >> shiftCorrection
		if irev > i {
			rootsOfUnity[i], rootsOfUnity[irev] = rootsOfUnity[irev], rootsOfUnity[i]
		}
	}
	return rootsOfUnity
}

func init() {
	RootsOfUnity = generateRootsOfUnity()
}
