package eth

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
)

type BlockInfo interface {
	Hash() common.Hash
	ParentHash() common.Hash
	Coinbase() common.Address
	Root() common.Hash // state-root
	NumberU64() uint64
	Time() uint64
	// MixDigest field, reused for randomness after The Merge (Bellatrix hardfork)
	MixDigest() common.Hash
	BaseFee() *big.Int
	// BlobBaseFee returns the result of computing the blob fee from excessDataGas, or nil if the
	// block isn't a Dencun (4844 capable) block
	BlobBaseFee() *big.Int
	ExcessBlobGas() *uint64
	ReceiptHash() common.Hash
	GasUsed() uint64
	GasLimit() uint64
	ParentBeaconRoot() *common.Hash // Dencun extension

	// HeaderRLP returns the RLP of the block header as per consensus rules
	// Returns an error if the header RLP could not be written
	HeaderRLP() ([]byte, error)
}

// HeaderBlockInfo returns h as a BlockInfo implementation, computing the block hash on the fly.
func HeaderBlockInfo(h *types.Header) BlockInfo {
	return headerBlockInfo{hash: h.Hash(), header: h}
}

// HeaderBlockInfoTrusted returns a BlockInfo, with trusted pre-computed block hash.
func HeaderBlockInfoTrusted(hash common.Hash, h *types.Header) BlockInfo {
	return headerBlockInfo{hash: hash, header: h}
}

// headerBlockInfo is a conversion type of types.Header turning it into a
// BlockInfo, but using a cached hash value.
type headerBlockInfo struct {
	hash   common.Hash
	header *types.Header
}

var _ BlockInfo = (*headerBlockInfo)(nil)

func (h headerBlockInfo) Hash() common.Hash {
	return h.hash
}

func (h headerBlockInfo) ParentHash() common.Hash {
	return h.header.ParentHash
}

func (h headerBlockInfo) Coinbase() common.Address {
	return h.header.Coinbase
}

func (h headerBlockInfo) Root() common.Hash {
	return h.header.Root
}

func (h headerBlockInfo) NumberU64() uint64 {
	return h.header.Number.Uint64()
}

func (h headerBlockInfo) Time() uint64 {
	return h.header.Time
}

func (h headerBlockInfo) MixDigest() common.Hash {
	return h.header.MixDigest
}

func (h headerBlockInfo) BaseFee() *big.Int {
	return h.header.BaseFee
}

func (h headerBlockInfo) BlobBaseFee() *big.Int {
	if h.header.ExcessBlobGas == nil {
		return nil
	}
	return CalcBlobBaseFee(*h.header.ExcessBlobGas)
}

func (h headerBlockInfo) ExcessBlobGas() *uint64 {
	return h.header.ExcessBlobGas
}

func (h headerBlockInfo) ReceiptHash() common.Hash {
	return h.header.ReceiptHash
}

func (h headerBlockInfo) GasUsed() uint64 {
	return h.header.GasUsed
}

func (h headerBlockInfo) GasLimit() uint64 {
	return h.header.GasLimit
}

func (h headerBlockInfo) ParentBeaconRoot() *common.Hash {
	return h.header.ParentBeaconRoot
}

func (h headerBlockInfo) HeaderRLP() ([]byte, error) {
	return rlp.EncodeToBytes(h.header)
}

const (
	minBlobBaseFee            = 1
	blobBaseFeeUpdateFraction = 3338477
)

// CalcBlobBaseFee computes the blob base fee from the excess blob gas of a header,
// using the Cancun update fraction.
func CalcBlobBaseFee(excessBlobGas uint64) *big.Int {
	return fakeExponential(big.NewInt(minBlobBaseFee), new(big.Int).SetUint64(excessBlobGas), big.NewInt(blobBaseFeeUpdateFraction))
}

// fakeExponential approximates factor * e ** (numerator / denominator) using
// Taylor expansion.
func fakeExponential(factor, numerator, denominator *big.Int) *big.Int {
	var (
		output = new(big.Int)
		accum  = new(big.Int).Mul(factor, denominator)
	)
	for i := 1; accum.Sign() > 0; i++ {
		output.Add(output, accum)

		accum.Mul(accum, numerator)
		accum.Div(accum, denominator)
		accum.Div(accum, big.NewInt(int64(i)))
	}
	return output.Div(output, denominator)
}
