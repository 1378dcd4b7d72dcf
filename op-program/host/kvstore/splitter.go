package kvstore

import (
	"github.com/ethereum/go-ethereum/common"

	preimage "github.com/mantlenetworkio/mantle-faultproof/op-preimage"
)

type PreimageSource func(key common.Hash) ([]byte, error)

// PreimageSourceSplitter serves local keys from the local source and all other keys from the global one.
type PreimageSourceSplitter struct {
	local  PreimageSource
	global PreimageSource
}

func NewPreimageSourceSplitter(local PreimageSource, global PreimageSource) *PreimageSourceSplitter {
	return &PreimageSourceSplitter{
		local:  local,
		global: global,
	}
}

func (s *PreimageSourceSplitter) Get(key [32]byte) ([]byte, error) {
	keyType := preimage.KeyType(key[0])
	if keyType == preimage.LocalKeyType {
		return s.local(key)
	}
	return s.global(key)
}
