package engine

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
)

// BlockInput is everything needed to execute one L2 block on top of its parent.
type BlockInput struct {
	ChainID          eth.ChainID
	Parent           *types.Header
	Timestamp        uint64
	FeeRecipient     common.Address
	PrevRandao       common.Hash
	GasLimit         uint64
	Transactions     types.Transactions
	Withdrawals      types.Withdrawals
	ParentBeaconRoot *common.Hash
}

// TransitionResult is the outcome of executing a BlockInput.
type TransitionResult struct {
	StateRoot common.Hash
	// Receipts has one receipt per transaction, in transaction order.
	Receipts types.Receipts
	GasUsed  uint64
	BaseFee  *big.Int
	// StateNodes are the trie nodes written by the transition. Reads of the post state
	// are served from these before the oracle is asked.
	StateNodes []hexutil.Bytes
}

// StateTransition executes blocks. It is supplied by the embedding environment; an error
// means the block could not be executed and is never retried.
type StateTransition interface {
	ApplyBlock(ctx context.Context, input *BlockInput) (*TransitionResult, error)
}

// Commitment is the result of applying attributes: the assembled block and what it commits to.
type Commitment struct {
	Block        *types.Block
	Receipts     types.Receipts
	BlockHash    common.Hash
	StateRoot    common.Hash
	ReceiptsRoot common.Hash
	Output       *eth.OutputV0
}

func (c *Commitment) OutputRoot() eth.Bytes32 {
	return eth.OutputRoot(c.Output)
}
