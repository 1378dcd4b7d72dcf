package depset

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/mantle-faultproof/op-node/params"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
)

func TestDependencySet(t *testing.T) {
	t.Run("JSON serialization", func(t *testing.T) {
		testDependencySetSerialization(t,
			func(depSet *StaticConfigDependencySet) ([]byte, error) { return json.Marshal(depSet) },
			func(data []byte) (DependencySet, error) {
				return ParseJSONDependencySet(bytes.NewReader(data))
			},
		)
	})

	t.Run("TOML serialization", func(t *testing.T) {
		testDependencySetSerialization(t,
			func(depSet *StaticConfigDependencySet) ([]byte, error) {
				var buf bytes.Buffer
				if err := toml.NewEncoder(&buf).Encode(depSet); err != nil {
					return nil, err
				}
				return buf.Bytes(), nil
			},
			func(data []byte) (DependencySet, error) {
				var out StaticConfigDependencySet
				_, err := toml.Decode(string(data), &out)
				return &out, err
			},
		)
	})

	t.Run("invalid TOML", func(t *testing.T) {
		bad := []byte(`dependencies = { bad = 1 }`)
		var ds StaticConfigDependencySet
		_, err := toml.Decode(string(bad), &ds)
		require.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := DependencySetOf()
		require.ErrorIs(t, err, ErrEmptyDependencySet)
		_, err = ParseJSONDependencySet(strings.NewReader(`{"dependencies":{}}`))
		require.ErrorIs(t, err, ErrEmptyDependencySet)
	})

	t.Run("hex chain ID", func(t *testing.T) {
		ds, err := ParseJSONDependencySet(strings.NewReader(`{"dependencies":{"0x384":{},"901":{}}}`))
		require.NoError(t, err)
		require.Equal(t, []eth.ChainID{eth.ChainIDFromUInt64(900), eth.ChainIDFromUInt64(901)}, ds.Chains())
	})
}

func testDependencySetSerialization(
	t *testing.T,
	marshal func(*StaticConfigDependencySet) ([]byte, error),
	unmarshal func([]byte) (DependencySet, error),
) {
	depSet, err := DependencySetOf(eth.ChainIDFromUInt64(901), eth.ChainIDFromUInt64(900))
	require.NoError(t, err)

	t.Run("DefaultExpiryWindow", func(t *testing.T) {
		data, err := marshal(depSet)
		require.NoError(t, err)
		result, err := unmarshal(data)
		require.NoError(t, err)

		// sorted by chain ID
		require.Equal(t, []eth.ChainID{
			eth.ChainIDFromUInt64(900),
			eth.ChainIDFromUInt64(901),
		}, result.Chains())
		require.Equal(t, uint64(params.MessageExpiryTimeSecondsInterop), result.MessageExpiryWindow())
	})

	t.Run("CustomExpiryWindow", func(t *testing.T) {
		custom, err := NewStaticConfigDependencySetWithMessageExpiryOverride(map[eth.ChainID]*StaticConfigDependency{
			eth.ChainIDFromUInt64(900): {},
		}, 15)
		require.NoError(t, err)
		data, err := marshal(custom)
		require.NoError(t, err)
		result, err := unmarshal(data)
		require.NoError(t, err)
		require.Equal(t, uint64(15), result.MessageExpiryWindow())
	})

	t.Run("HasChain", func(t *testing.T) {
		require.True(t, depSet.HasChain(eth.ChainIDFromUInt64(900)))
		require.False(t, depSet.HasChain(eth.ChainIDFromUInt64(902)))
	})
}

func TestJSONDependencySetLoader(t *testing.T) {
	p := path.Join(t.TempDir(), "depset.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"dependencies":{"900":{}}}`), 0o644))
	loader := &JSONDependencySetLoader{Path: p}
	ds, err := loader.LoadDependencySet(context.Background())
	require.NoError(t, err)
	require.True(t, ds.HasChain(eth.ChainIDFromUInt64(900)))

	_, err = (&JSONDependencySetLoader{Path: p + ".missing"}).LoadDependencySet(context.Background())
	require.ErrorContains(t, err, "failed to open")
}
