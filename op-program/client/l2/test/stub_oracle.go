package test

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethTypes "github.com/ethereum/go-ethereum/core/types"

	preimage "github.com/mantlenetworkio/mantle-faultproof/op-preimage"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
)

// StubBlockOracle serves L2 data from in-memory maps, and counts the requests it answered.
// Unknown keys are reported as preimage.ErrNotFound.
type StubBlockOracle struct {
	t        *testing.T
	Blocks   map[common.Hash]*gethTypes.Block
	Receipts map[common.Hash]gethTypes.Receipts
	Outputs  map[common.Hash]eth.Output
	Calls    map[string]int
	*StubStateOracle
}

func NewStubOracle(t *testing.T) (*StubBlockOracle, *StubStateOracle) {
	stateOracle := NewStubStateOracle(t)
	blockOracle := StubBlockOracle{
		t:               t,
		Blocks:          make(map[common.Hash]*gethTypes.Block),
		Outputs:         make(map[common.Hash]eth.Output),
		Receipts:        make(map[common.Hash]gethTypes.Receipts),
		Calls:           stateOracle.Calls,
		StubStateOracle: stateOracle,
	}
	return &blockOracle, stateOracle
}

// NewStubOracleWithBlocks serves the given chain and outputs.
func NewStubOracleWithBlocks(t *testing.T, chain []*gethTypes.Block, outputs []eth.Output) *StubBlockOracle {
	o, _ := NewStubOracle(t)
	for _, block := range chain {
		o.Blocks[block.Hash()] = block
	}
	for _, output := range outputs {
		o.Outputs[common.Hash(eth.OutputRoot(output))] = output
	}
	return o
}

func (o *StubBlockOracle) BlockByHash(blockHash common.Hash, chainID eth.ChainID) (*gethTypes.Block, error) {
	o.Calls["BlockByHash"]++
	block, ok := o.Blocks[blockHash]
	if !ok {
		return nil, fmt.Errorf("%w: block %s", preimage.ErrNotFound, blockHash)
	}
	return block, nil
}

func (o *StubBlockOracle) OutputByRoot(root common.Hash, chainID eth.ChainID) (eth.Output, error) {
	o.Calls["OutputByRoot"]++
	output, ok := o.Outputs[root]
	if !ok {
		return nil, fmt.Errorf("%w: output root %s", preimage.ErrNotFound, root)
	}
	return output, nil
}

func (o *StubBlockOracle) ReceiptsByBlockHash(blockHash common.Hash, chainID eth.ChainID) (*gethTypes.Block, gethTypes.Receipts, error) {
	o.Calls["ReceiptsByBlockHash"]++
	block, ok := o.Blocks[blockHash]
	if !ok {
		return nil, nil, fmt.Errorf("%w: block %s", preimage.ErrNotFound, blockHash)
	}
	receipts, ok := o.Receipts[blockHash]
	if !ok {
		return nil, nil, fmt.Errorf("%w: receipts of block %s", preimage.ErrNotFound, blockHash)
	}
	return block, receipts, nil
}

type StubStateOracle struct {
	t     *testing.T
	Data  map[common.Hash][]byte
	Code  map[common.Hash][]byte
	Calls map[string]int
}

func NewStubStateOracle(t *testing.T) *StubStateOracle {
	return &StubStateOracle{
		t:     t,
		Data:  make(map[common.Hash][]byte),
		Code:  make(map[common.Hash][]byte),
		Calls: make(map[string]int),
	}
}

func (o *StubStateOracle) NodeByHash(nodeHash common.Hash, chainID eth.ChainID) ([]byte, error) {
	o.Calls["NodeByHash"]++
	data, ok := o.Data[nodeHash]
	if !ok {
		return nil, fmt.Errorf("%w: node %s", preimage.ErrNotFound, nodeHash)
	}
	return data, nil
}

func (o *StubStateOracle) CodeByHash(hash common.Hash, chainID eth.ChainID) ([]byte, error) {
	o.Calls["CodeByHash"]++
	data, ok := o.Code[hash]
	if !ok {
		return nil, fmt.Errorf("%w: code %s", preimage.ErrNotFound, hash)
	}
	return data, nil
}
