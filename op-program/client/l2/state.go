package l2

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	preimage "github.com/mantlenetworkio/mantle-faultproof/op-preimage"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/mpt"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
)

// StateTrie reads accounts, storage and code of one L2 state root. Every trie node is
// requested by hash through the StateOracle, which hints the node before fetching it.
type StateTrie struct {
	root    common.Hash
	chainID eth.ChainID
	oracle  StateOracle
}

func NewStateTrie(root common.Hash, chainID eth.ChainID, oracle StateOracle) *StateTrie {
	return &StateTrie{root: root, chainID: chainID, oracle: oracle}
}

func (s *StateTrie) Root() common.Hash {
	return s.root
}

func (s *StateTrie) getNode(key common.Hash) ([]byte, error) {
	return s.oracle.NodeByHash(key, s.chainID)
}

// GetAccount returns the account at the given address, or nil if the account does not exist.
func (s *StateTrie) GetAccount(addr common.Address) (*types.StateAccount, error) {
	data, err := mpt.Lookup(s.root, crypto.Keccak256(addr[:]), s.getNode)
	if err != nil {
		return nil, fmt.Errorf("failed to read account %s: %w", addr, err)
	}
	if data == nil {
		return nil, nil
	}
	var acc types.StateAccount
	if err := rlp.DecodeBytes(data, &acc); err != nil {
		return nil, fmt.Errorf("%w: invalid account %s: %w", preimage.ErrCorruptData, addr, err)
	}
	return &acc, nil
}

// StorageRoot returns the storage root of the account, the empty root for accounts that do not exist.
func (s *StateTrie) StorageRoot(addr common.Address) (common.Hash, error) {
	acc, err := s.GetAccount(addr)
	if err != nil {
		return common.Hash{}, err
	}
	if acc == nil {
		return types.EmptyRootHash, nil
	}
	return acc.Root, nil
}

// GetStorage returns the value of the storage slot of the account. Unset slots read as zero.
func (s *StateTrie) GetStorage(addr common.Address, slot common.Hash) (common.Hash, error) {
	root, err := s.StorageRoot(addr)
	if err != nil {
		return common.Hash{}, err
	}
	data, err := mpt.Lookup(root, crypto.Keccak256(slot[:]), s.getNode)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to read slot %s of %s: %w", slot, addr, err)
	}
	if data == nil {
		return common.Hash{}, nil
	}
	_, content, _, err := rlp.Split(data)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: invalid slot %s of %s: %w", preimage.ErrCorruptData, slot, addr, err)
	}
	if len(content) > common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: slot %s of %s holds %d bytes", preimage.ErrCorruptData, slot, addr, len(content))
	}
	return common.BytesToHash(content), nil
}

var errCodeMismatch = errors.New("code does not match its hash")

// GetCode returns the contract code with the given hash.
func (s *StateTrie) GetCode(codeHash common.Hash) ([]byte, error) {
	if codeHash == types.EmptyCodeHash {
		return nil, nil
	}
	code, err := s.oracle.CodeByHash(codeHash, s.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to get code %s: %w", codeHash, err)
	}
	if crypto.Keccak256Hash(code) != codeHash {
		return nil, fmt.Errorf("%w: %w: %s", preimage.ErrCorruptData, errCodeMismatch, codeHash)
	}
	return code, nil
}
