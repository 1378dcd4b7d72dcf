package l2

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	preimage "github.com/mantlenetworkio/mantle-faultproof/op-preimage"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/l2/test"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
)

func TestStateTrie(t *testing.T) {
	chainID := eth.ChainIDFromUInt64(5000)
	contract := common.Address{0xcc}
	eoa := common.Address{0xee}
	code := []byte{0x60, 0x00, 0x60, 0x00, 0xf3}

	_, stateStub := test.NewStubOracle(t)
	root := test.BuildState(t, stateStub, map[common.Address]test.Account{
		contract: {
			Nonce: 1,
			Code:  code,
			Storage: map[common.Hash]common.Hash{
				{0x01}:  {0xff},
				{31: 2}: {31: 7},
			},
		},
		eoa: {Nonce: 12, Balance: uint256.NewInt(1_000_000)},
	})
	state := NewStateTrie(root, chainID, stateStub)

	t.Run("Account", func(t *testing.T) {
		acc, err := state.GetAccount(eoa)
		require.NoError(t, err)
		require.Equal(t, uint64(12), acc.Nonce)
		require.Equal(t, uint256.NewInt(1_000_000), acc.Balance)
		require.Equal(t, types.EmptyRootHash, acc.Root)
	})

	t.Run("MissingAccount", func(t *testing.T) {
		acc, err := state.GetAccount(common.Address{0x01})
		require.NoError(t, err)
		require.Nil(t, acc)
		root, err := state.StorageRoot(common.Address{0x01})
		require.NoError(t, err)
		require.Equal(t, types.EmptyRootHash, root)
	})

	t.Run("Storage", func(t *testing.T) {
		v, err := state.GetStorage(contract, common.Hash{0x01})
		require.NoError(t, err)
		require.Equal(t, common.Hash{0xff}, v)
		v, err = state.GetStorage(contract, common.Hash{31: 2})
		require.NoError(t, err)
		require.Equal(t, common.Hash{31: 7}, v)
		v, err = state.GetStorage(contract, common.Hash{0x03})
		require.NoError(t, err)
		require.Equal(t, common.Hash{}, v)
	})

	t.Run("Code", func(t *testing.T) {
		acc, err := state.GetAccount(contract)
		require.NoError(t, err)
		got, err := state.GetCode(common.BytesToHash(acc.CodeHash))
		require.NoError(t, err)
		require.Equal(t, code, got)
	})

	t.Run("CorruptCode", func(t *testing.T) {
		hash := crypto.Keccak256Hash([]byte{0x01})
		stateStub.Code[hash] = []byte{0x02}
		_, err := state.GetCode(hash)
		require.ErrorIs(t, err, preimage.ErrCorruptData)
	})

	t.Run("MissingNode", func(t *testing.T) {
		missing := NewStateTrie(common.Hash{0xde, 0xad}, chainID, stateStub)
		_, err := missing.GetAccount(eoa)
		require.ErrorIs(t, err, preimage.ErrNotFound)
	})
}
