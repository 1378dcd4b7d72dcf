package test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/mpt"
)

// Account describes an account of a test state.
type Account struct {
	Nonce   uint64
	Balance *uint256.Int
	Code    []byte
	Storage map[common.Hash]common.Hash
}

// EncodeState merkleizes the accounts into a secure state trie, and returns the state root,
// every trie node and the contract codes by hash.
func EncodeState(accounts map[common.Address]Account) (common.Hash, []hexutil.Bytes, map[common.Hash][]byte, error) {
	var allNodes []hexutil.Bytes
	codes := make(map[common.Hash][]byte)
	entries := make(map[common.Hash][]byte, len(accounts))
	for addr, acc := range accounts {
		storageRoot := gethTypes.EmptyRootHash
		if len(acc.Storage) > 0 {
			slots := make(map[common.Hash][]byte, len(acc.Storage))
			for k, v := range acc.Storage {
				enc, err := rlp.EncodeToBytes(common.TrimLeftZeroes(v[:]))
				if err != nil {
					return common.Hash{}, nil, nil, err
				}
				slots[crypto.Keccak256Hash(k[:])] = enc
			}
			root, nodes, err := mpt.WriteKeyedTrie(slots)
			if err != nil {
				return common.Hash{}, nil, nil, err
			}
			allNodes = append(allNodes, nodes...)
			storageRoot = root
		}
		codeHash := gethTypes.EmptyCodeHash
		if len(acc.Code) > 0 {
			codeHash = crypto.Keccak256Hash(acc.Code)
			codes[codeHash] = acc.Code
		}
		balance := acc.Balance
		if balance == nil {
			balance = new(uint256.Int)
		}
		enc, err := rlp.EncodeToBytes(&gethTypes.StateAccount{
			Nonce:    acc.Nonce,
			Balance:  balance,
			Root:     storageRoot,
			CodeHash: codeHash[:],
		})
		if err != nil {
			return common.Hash{}, nil, nil, err
		}
		entries[crypto.Keccak256Hash(addr[:])] = enc
	}
	root, nodes, err := mpt.WriteKeyedTrie(entries)
	if err != nil {
		return common.Hash{}, nil, nil, err
	}
	return root, append(allNodes, nodes...), codes, nil
}

// BuildState encodes the accounts with EncodeState, adds the trie nodes and codes to the
// state oracle, and returns the state root.
func BuildState(t *testing.T, o *StubStateOracle, accounts map[common.Address]Account) common.Hash {
	root, nodes, codes, err := EncodeState(accounts)
	require.NoError(t, err)
	for _, n := range nodes {
		o.Data[crypto.Keccak256Hash(n)] = n
	}
	for h, code := range codes {
		o.Code[h] = code
	}
	return root
}
