// Package boot reads the inputs of a fault proof program run from the local keys of the preimage oracle.
package boot

import (
	"errors"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"

	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
)

// CustomChainIDIndicator is used to detect when the program should load custom chain configuration
var CustomChainIDIndicator = eth.ChainIDFromUInt64(uint64(math.MaxUint64))

var ErrChainIDMismatch = errors.New("chain ID mismatch")

type BootInfo struct {
	L1Head             common.Hash
	L2OutputRoot       common.Hash
	L2Claim            common.Hash
	L2ClaimBlockNumber uint64
	L2ChainID          eth.ChainID

	L2ChainConfig *params.ChainConfig
	RollupConfig  *rollup.Config
}

type BootstrapClient struct {
	r oracleClient
}

func NewBootstrapClient(r oracleClient) *BootstrapClient {
	return &BootstrapClient{r: r}
}

// BootInfo reads the claim inputs and the chain configuration. Configuration is always served by
// the host; the L2 chain ID local key is either the custom chain indicator or the ID the rollup
// config must carry.
func (br *BootstrapClient) BootInfo() (*BootInfo, error) {
	l1Head, err := readHash(br.r, L1HeadLocalIndex)
	if err != nil {
		return nil, err
	}
	l2OutputRoot, err := readHash(br.r, L2OutputRootLocalIndex)
	if err != nil {
		return nil, err
	}
	l2Claim, err := readHash(br.r, L2ClaimLocalIndex)
	if err != nil {
		return nil, err
	}
	l2ClaimBlockNumber, err := readUint64(br.r, L2ClaimBlockNumberLocalIndex)
	if err != nil {
		return nil, err
	}
	rawChainID, err := readUint64(br.r, L2ChainIDLocalIndex)
	if err != nil {
		return nil, err
	}
	l2ChainID := eth.ChainIDFromUInt64(rawChainID)

	l2ChainConfig := new(params.ChainConfig)
	if err := readJSON(br.r, L2ChainConfigLocalIndex, l2ChainConfig); err != nil {
		return nil, fmt.Errorf("failed to bootstrap l2 chain config: %w", err)
	}
	rollupConfig := new(rollup.Config)
	if err := readJSON(br.r, RollupConfigLocalIndex, rollupConfig); err != nil {
		return nil, fmt.Errorf("failed to bootstrap rollup config: %w", err)
	}
	if rollupConfig.L2ChainID == nil || l2ChainConfig.ChainID == nil {
		return nil, fmt.Errorf("%w: configuration without a chain ID", ErrChainIDMismatch)
	}
	cfgChainID := eth.ChainIDFromBig(rollupConfig.L2ChainID)
	if l2ChainConfig.ChainID.Cmp(rollupConfig.L2ChainID) != 0 {
		return nil, fmt.Errorf("%w: chain config %v, rollup config %v", ErrChainIDMismatch, l2ChainConfig.ChainID, rollupConfig.L2ChainID)
	}
	if l2ChainID == CustomChainIDIndicator {
		l2ChainID = cfgChainID
	} else if l2ChainID != cfgChainID {
		return nil, fmt.Errorf("%w: boot info %v, rollup config %v", ErrChainIDMismatch, &l2ChainID, &cfgChainID)
	}

	return &BootInfo{
		L1Head:             l1Head,
		L2OutputRoot:       l2OutputRoot,
		L2Claim:            l2Claim,
		L2ClaimBlockNumber: l2ClaimBlockNumber,
		L2ChainID:          l2ChainID,
		L2ChainConfig:      l2ChainConfig,
		RollupConfig:       rollupConfig,
	}, nil
}
