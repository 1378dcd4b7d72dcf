package eth

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSuperV1Codec(t *testing.T) {
	chainA := ChainIDAndOutput{ChainID: ChainIDFromUInt64(11), Output: Bytes32{0x01}}
	chainB := ChainIDAndOutput{ChainID: ChainIDFromUInt64(12), Output: Bytes32{0x02}}
	super := &SuperV1{Timestamp: 7000, Chains: []ChainIDAndOutput{chainA, chainB}}

	data := super.Marshal()
	require.Len(t, data, superV1HeaderLen+2*superV1ChainLen)
	decoded, err := UnmarshalSuperRoot(data)
	require.NoError(t, err)
	require.Equal(t, super, decoded)
	require.Equal(t, SuperVersionV1, decoded.Version())
}

func TestUnmarshalSuperRootRejects(t *testing.T) {
	valid := NewSuperV1(7000, ChainIDAndOutput{ChainID: ChainIDFromUInt64(11), Output: Bytes32{0x01}}).Marshal()
	header := binary.BigEndian.AppendUint64([]byte{SuperVersionV1}, 134058)
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"unknown version", append([]byte{0x0a}, valid[1:]...)},
		{"below header", []byte{SuperVersionV1, 0x01}},
		{"no chains", header},
		{"partial chain", append(header, 0x01, 0x02, 0x03)},
		// a truncated output root must not be read as a complete chain entry
		{"missing output", valid[:len(valid)-32]},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := UnmarshalSuperRoot(test.data)
			require.ErrorIs(t, err, ErrInvalidSuperRoot)
		})
	}
}

func TestNewSuperV1SortsChains(t *testing.T) {
	chainA := ChainIDAndOutput{ChainID: ChainIDFromUInt64(900), Output: Bytes32{0xaa}}
	chainB := ChainIDAndOutput{ChainID: ChainIDFromUInt64(10), Output: Bytes32{0xbb}}
	super := NewSuperV1(42, chainA, chainB)
	require.Equal(t, []ChainIDAndOutput{chainB, chainA}, super.Chains)

	data := super.Marshal()
	require.Equal(t, SuperVersionV1, data[0])
	require.Equal(t, uint64(42), binary.BigEndian.Uint64(data[1:9]))
	require.Equal(t, byte(10), data[9+31])
	require.Equal(t, byte(0xbb), data[9+32])
	require.NotEqual(t, SuperRoot(super), SuperRoot(NewSuperV1(43, chainA, chainB)))
}
