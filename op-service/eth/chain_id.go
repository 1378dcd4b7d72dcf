package eth

import (
	"fmt"
	"math/big"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type ChainID uint256.Int

func ChainIDFromBig(chainID *big.Int) ChainID {
	return ChainID(*uint256.MustFromBig(chainID))
}

func ChainIDFromUInt64(i uint64) ChainID {
	return ChainID(*uint256.NewInt(i))
}

func ChainIDFromBytes32(b [32]byte) ChainID {
	val := new(uint256.Int).SetBytes(b[:])
	return ChainID(*val)
}

// ChainIDFromString parses a decimal or 0x-prefixed hexadecimal chain ID.
// A 0x-prefixed 32-byte value is read as a full-width chain ID.
func ChainIDFromString(id string) (ChainID, error) {
	if strings.HasPrefix(id, "0x") && len(id) == 66 {
		return ChainIDFromBytes32(common.HexToHash(id)), nil
	}
	var v *uint256.Int
	var err error
	if strings.HasPrefix(id, "0x") {
		v, err = uint256.FromHex(id)
	} else {
		v, err = uint256.FromDecimal(id)
	}
	if err != nil {
		return ChainID{}, fmt.Errorf("invalid chain ID %q: %w", id, err)
	}
	return ChainID(*v), nil
}

func (id ChainID) IsUint64() bool {
	return (*uint256.Int)(&id).IsUint64()
}

// EvilChainIDToUInt64 converts a ChainID to a uint64 and panic's if the ChainID is too large for a UInt64
// It is "evil" because 32 byte ChainIDs should be universally supported which this method breaks. It is provided
// for legacy purposes to facilitate a transition to full 32 byte chain ID support and should not be used in new code.
// Existing calls should be replaced with full 32 byte support whenever possible.
func EvilChainIDToUInt64(id ChainID) uint64 {
	v := (*uint256.Int)(&id)
	if !v.IsUint64() {
		panic(fmt.Errorf("ChainID too large for uint64: %v", id))
	}
	return v.Uint64()
}

func (id *ChainID) String() string {
	return ((*uint256.Int)(id)).Dec()
}

func (id ChainID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ChainID) UnmarshalText(data []byte) error {
	parsed, err := ChainIDFromString(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id ChainID) Cmp(other ChainID) int {
	return (*uint256.Int)(&id).Cmp((*uint256.Int)(&other))
}

func (id ChainID) Bytes32() [32]byte {
	return (*uint256.Int)(&id).Bytes32()
}

func (id ChainID) ToBig() *big.Int {
	return (*uint256.Int)(&id).ToBig()
}

func (id ChainID) LogValue() string {
	return id.String()
}

func SortChainID(ids []ChainID) {
	slices.SortFunc(ids, func(a, b ChainID) int {
		return a.Cmp(b)
	})
}
