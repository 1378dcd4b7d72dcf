// Package mpt reads and writes the Merkle Patricia Tries of Ethereum block data through
// a pre-image getter: the ordered-list tries (transactions, receipts) and key lookups in
// the secure state and storage tries.
package mpt

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"

	preimage "github.com/mantlenetworkio/mantle-faultproof/op-preimage"
)

// PreimageGetter returns the trie node with the given hash.
type PreimageGetter func(key common.Hash) ([]byte, error)

const terminator = 16

var errInvalidNode = errors.New("invalid trie node")

// ReadTrie takes the root of a "DerivableList" trie, and traverses the implied MPT to collect
// all values in index order. Nodes that do not decode, or a list with gaps in the indices,
// are reported as preimage.ErrCorruptData.
func ReadTrie(root common.Hash, getPreimage PreimageGetter) ([]hexutil.Bytes, error) {
	if root == types.EmptyRootHash {
		return []hexutil.Bytes{}, nil
	}
	values := make(map[uint64]hexutil.Bytes)
	visit := func(path []byte, value []byte) error {
		key, err := hexToKeybytes(path)
		if err != nil {
			return err
		}
		var index uint64
		if err := rlp.DecodeBytes(key, &index); err != nil {
			return fmt.Errorf("invalid list index key %x: %w", key, err)
		}
		if _, ok := values[index]; ok {
			return fmt.Errorf("duplicate list index %d", index)
		}
		values[index] = common.CopyBytes(value)
		return nil
	}
	if err := walkRef(root[:], nil, getPreimage, visit); err != nil {
		return nil, corrupt(root, err)
	}
	out := make([]hexutil.Bytes, len(values))
	for i := range out {
		v, ok := values[uint64(i)]
		if !ok {
			return nil, corrupt(root, fmt.Errorf("missing list index %d of %d", i, len(values)))
		}
		out[i] = v
	}
	return out, nil
}

// Lookup returns the value stored under the given key of the trie, or nil if the key is not
// in the trie. The key is used as-is: callers of secure tries must hash it first.
func Lookup(root common.Hash, key []byte, getPreimage PreimageGetter) ([]byte, error) {
	if root == types.EmptyRootHash {
		return nil, nil
	}
	path := keybytesToHex(key)
	ref := root[:]
	for {
		elems, err := resolve(ref, getPreimage)
		if err != nil {
			return nil, corrupt(root, err)
		}
		switch len(elems) {
		case 2:
			nodeKey := compactToHex(elems[0])
			if len(nodeKey) > len(path) || !bytes.Equal(nodeKey, path[:len(nodeKey)]) {
				return nil, nil
			}
			path = path[len(nodeKey):]
			if hasTerm(nodeKey) {
				return contentOf(elems[1])
			}
			ref = elems[1]
		case 17:
			if path[0] == terminator {
				return contentOf(elems[16])
			}
			ref = elems[path[0]]
			path = path[1:]
			if isEmpty(ref) {
				return nil, nil
			}
		default:
			return nil, corrupt(root, fmt.Errorf("%w: %d elements", errInvalidNode, len(elems)))
		}
	}
}

// WriteTrie takes a list of values, and merkleizes them as a "DerivableList":
// a trie of index->value mappings. It returns the root and all nodes that are
// referenced by hash, including the root.
func WriteTrie(values []hexutil.Bytes) (common.Hash, []hexutil.Bytes) {
	var nodes []hexutil.Bytes
	st := trie.NewStackTrie(func(path []byte, hash common.Hash, blob []byte) {
		nodes = append(nodes, common.CopyBytes(blob))
	})
	root := types.DeriveSha(rawList(values), st)
	return root, nodes
}

// WriteKeyedTrie merkleizes the given key-value pairs, for example the hashed accounts of a
// state trie. It returns the root and all nodes that are referenced by hash.
func WriteKeyedTrie(entries map[common.Hash][]byte) (common.Hash, []hexutil.Bytes, error) {
	keys := make([]common.Hash, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i][:], keys[j][:]) < 0
	})
	var nodes []hexutil.Bytes
	st := trie.NewStackTrie(func(path []byte, hash common.Hash, blob []byte) {
		nodes = append(nodes, common.CopyBytes(blob))
	})
	for _, k := range keys {
		if err := st.Update(k[:], entries[k]); err != nil {
			return common.Hash{}, nil, fmt.Errorf("failed to insert key %s: %w", k, err)
		}
	}
	return st.Hash(), nodes, nil
}

type rawList []hexutil.Bytes

func (r rawList) Len() int {
	return len(r)
}

func (r rawList) EncodeIndex(i int, buf *bytes.Buffer) {
	buf.Write(r[i])
}

var _ types.DerivableList = rawList(nil)

// walkRef visits all leaves below the node reference, in key order.
func walkRef(ref []byte, path []byte, getPreimage PreimageGetter, visit func(path, value []byte) error) error {
	elems, err := resolve(ref, getPreimage)
	if err != nil {
		return err
	}
	switch len(elems) {
	case 2:
		nodeKey := compactToHex(elems[0])
		childPath := append(append([]byte{}, path...), nodeKey...)
		if hasTerm(nodeKey) {
			value, err := contentOf(elems[1])
			if err != nil {
				return err
			}
			return visit(childPath, value)
		}
		return walkRef(elems[1], childPath, getPreimage, visit)
	case 17:
		if !isEmpty(elems[16]) {
			value, err := contentOf(elems[16])
			if err != nil {
				return err
			}
			if err := visit(append(append([]byte{}, path...), terminator), value); err != nil {
				return err
			}
		}
		for i := 0; i < 16; i++ {
			if isEmpty(elems[i]) {
				continue
			}
			childPath := append(append([]byte{}, path...), byte(i))
			if err := walkRef(elems[i], childPath, getPreimage, visit); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %d elements", errInvalidNode, len(elems))
	}
}

// resolve turns a node reference into the raw RLP items of the node. A reference is either
// an RLP string holding a 32 byte hash, a raw 32 byte hash (the root), or an embedded node.
func resolve(ref []byte, getPreimage PreimageGetter) ([][]byte, error) {
	var nodeData []byte
	if len(ref) == common.HashLength {
		h := common.BytesToHash(ref)
		data, err := getPreimage(h)
		if err != nil {
			return nil, err
		}
		if crypto.Keccak256Hash(data) != h {
			return nil, fmt.Errorf("node %s does not match its hash", h)
		}
		nodeData = data
	} else {
		kind, content, _, err := rlp.Split(ref)
		if err != nil {
			return nil, err
		}
		switch {
		case kind == rlp.String && len(content) == common.HashLength:
			return resolve(content, getPreimage)
		case kind == rlp.List:
			nodeData = ref
		default:
			return nil, fmt.Errorf("%w: unexpected reference %x", errInvalidNode, ref)
		}
	}
	content, rest, err := rlp.SplitList(nodeData)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: trailing data", errInvalidNode)
	}
	var elems [][]byte
	for len(content) > 0 {
		_, _, next, err := rlp.Split(content)
		if err != nil {
			return nil, err
		}
		elems = append(elems, content[:len(content)-len(next)])
		content = next
	}
	if len(elems) != 2 && len(elems) != 17 {
		return nil, fmt.Errorf("%w: %d elements", errInvalidNode, len(elems))
	}
	// the compact key of a short node is read as string content
	if len(elems) == 2 {
		key, err := contentOf(elems[0])
		if err != nil {
			return nil, err
		}
		elems[0] = key
	}
	return elems, nil
}

func contentOf(item []byte) ([]byte, error) {
	kind, content, _, err := rlp.Split(item)
	if err != nil {
		return nil, err
	}
	if kind == rlp.List {
		return nil, fmt.Errorf("%w: expected value, got list", errInvalidNode)
	}
	return content, nil
}

func isEmpty(item []byte) bool {
	return len(item) == 0 || (len(item) == 1 && item[0] == 0x80)
}

func corrupt(root common.Hash, err error) error {
	if errors.Is(err, preimage.ErrNotFound) || errors.Is(err, preimage.ErrChannelClosed) {
		return fmt.Errorf("failed to read trie %s: %w", root, err)
	}
	return fmt.Errorf("%w: trie %s: %w", preimage.ErrCorruptData, root, err)
}

func keybytesToHex(str []byte) []byte {
	l := len(str)*2 + 1
	nibbles := make([]byte, l)
	for i, b := range str {
		nibbles[i*2] = b / 16
		nibbles[i*2+1] = b % 16
	}
	nibbles[l-1] = terminator
	return nibbles
}

func hexToKeybytes(hex []byte) ([]byte, error) {
	if hasTerm(hex) {
		hex = hex[:len(hex)-1]
	}
	if len(hex)&1 != 0 {
		return nil, fmt.Errorf("%w: odd length key path", errInvalidNode)
	}
	key := make([]byte, len(hex)/2)
	for bi, ni := 0, 0; ni < len(hex); bi, ni = bi+1, ni+2 {
		key[bi] = hex[ni]<<4 | hex[ni+1]
	}
	return key, nil
}

func compactToHex(compact []byte) []byte {
	if len(compact) == 0 {
		return compact
	}
	base := keybytesToHex(compact)
	// delete terminator flag
	if base[0] < 2 {
		base = base[:len(base)-1]
	}
	// apply odd flag
	chop := 2 - base[0]&1
	return base[chop:]
}

func hasTerm(s []byte) bool {
	return len(s) > 0 && s[len(s)-1] == terminator
}
