package boot

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	preimage "github.com/mantlenetworkio/mantle-faultproof/op-preimage"
)

const (
	L1HeadLocalIndex preimage.LocalIndexKey = iota + 1
	L2OutputRootLocalIndex
	L2ClaimLocalIndex
	// L2ClaimBlockNumberLocalIndex holds the claimed block number, or the game timestamp for interop.
	L2ClaimBlockNumberLocalIndex
	L2ChainIDLocalIndex

	L2ChainConfigLocalIndex
	RollupConfigLocalIndex
	DependencySetLocalIndex
)

type oracleClient interface {
	Get(key preimage.Key) ([]byte, error)
}

func readHash(r oracleClient, key preimage.LocalIndexKey) (common.Hash, error) {
	data, err := r.Get(key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to read local key %d: %w", key, err)
	}
	if len(data) != common.HashLength {
		return common.Hash{}, fmt.Errorf("local key %d has %d bytes, expected a hash", key, len(data))
	}
	return common.Hash(data), nil
}

func readUint64(r oracleClient, key preimage.LocalIndexKey) (uint64, error) {
	data, err := r.Get(key)
	if err != nil {
		return 0, fmt.Errorf("failed to read local key %d: %w", key, err)
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("local key %d has %d bytes, expected a uint64", key, len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

func readJSON(r oracleClient, key preimage.LocalIndexKey, dest any) error {
	data, err := r.Get(key)
	if err != nil {
		return fmt.Errorf("failed to read local key %d: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode local key %d: %w", key, err)
	}
	return nil
}
