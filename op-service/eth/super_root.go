package eth

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/crypto"
)

// SuperVersionV1 is the version byte of a super root over chain output roots.
const SuperVersionV1 byte = 1

// A V1 preimage is version ++ uint64 timestamp ++ (chain id ++ output root) per chain.
const (
	superV1HeaderLen = 1 + 8
	superV1ChainLen  = 32 + 32
)

var ErrInvalidSuperRoot = errors.New("invalid super root")

// Super is a super root preimage. The super root is the keccak256 of its marshaled form.
type Super interface {
	Version() byte
	Marshal() []byte
}

func SuperRoot(s Super) Bytes32 {
	return Bytes32(crypto.Keccak256Hash(s.Marshal()))
}

// ChainIDAndOutput is the output root of a chain at the timestamp of the super root.
type ChainIDAndOutput struct {
	ChainID ChainID
	Output  Bytes32
}

type SuperV1 struct {
	Timestamp uint64
	Chains    []ChainIDAndOutput
}

var _ Super = (*SuperV1)(nil)

// NewSuperV1 orders the chains by chain ID, as the preimage requires.
func NewSuperV1(timestamp uint64, chains ...ChainIDAndOutput) *SuperV1 {
	slices.SortFunc(chains, func(a, b ChainIDAndOutput) int {
		return a.ChainID.Cmp(b.ChainID)
	})
	return &SuperV1{Timestamp: timestamp, Chains: chains}
}

func (s *SuperV1) Version() byte {
	return SuperVersionV1
}

func (s *SuperV1) Marshal() []byte {
	out := make([]byte, 0, superV1HeaderLen+len(s.Chains)*superV1ChainLen)
	out = append(out, SuperVersionV1)
	out = binary.BigEndian.AppendUint64(out, s.Timestamp)
	for _, c := range s.Chains {
		id := c.ChainID.Bytes32()
		out = append(out, id[:]...)
		out = append(out, c.Output[:]...)
	}
	return out
}

// UnmarshalSuperRoot decodes a super root preimage. Only V1 is known, and it carries at least one chain.
func UnmarshalSuperRoot(data []byte) (Super, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSuperRoot)
	}
	if data[0] != SuperVersionV1 {
		return nil, fmt.Errorf("%w: unknown version %d", ErrInvalidSuperRoot, data[0])
	}
	body := len(data) - superV1HeaderLen
	if body < superV1ChainLen || body%superV1ChainLen != 0 {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidSuperRoot, len(data))
	}
	s := &SuperV1{Timestamp: binary.BigEndian.Uint64(data[1:superV1HeaderLen])}
	for rest := data[superV1HeaderLen:]; len(rest) > 0; rest = rest[superV1ChainLen:] {
		s.Chains = append(s.Chains, ChainIDAndOutput{
			ChainID: ChainIDFromBytes32([32]byte(rest[:32])),
			Output:  Bytes32(rest[32:superV1ChainLen]),
		})
	}
	return s, nil
}
