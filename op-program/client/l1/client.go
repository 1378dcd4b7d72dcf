package l1

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
)

// ErrNotFound is returned for L1 block numbers past the L1 head. The derivation pipeline
// reads it as the end of the available L1 chain.
var ErrNotFound = ethereum.NotFound

// OracleL1Client serves the L1 chain ending at the trusted L1 head, as seen by the derivation pipeline.
type OracleL1Client struct {
	logger log.Logger
	oracle Oracle
	head   eth.L1BlockRef

	hashByNum            map[uint64]common.Hash
	earliestIndexedBlock eth.L1BlockRef
}

func NewOracleL1Client(logger log.Logger, oracle Oracle, l1Head common.Hash) (*OracleL1Client, error) {
	info, err := oracle.HeaderByBlockHash(l1Head)
	if err != nil {
		return nil, fmt.Errorf("failed to load L1 head %s: %w", l1Head, err)
	}
	head := eth.InfoToL1BlockRef(info)
	logger.Info("Loaded L1 head", "hash", head.Hash, "number", head.Number)
	return &OracleL1Client{
		logger:               logger,
		oracle:               oracle,
		head:                 head,
		hashByNum:            map[uint64]common.Hash{head.Number: head.Hash},
		earliestIndexedBlock: head,
	}, nil
}

func (o *OracleL1Client) Head() eth.L1BlockRef {
	return o.head
}

// L1BlockRefByNumber walks back from the L1 head by parent hash. There is no other way to
// find a block by number without trusting the host.
func (o *OracleL1Client) L1BlockRefByNumber(ctx context.Context, number uint64) (eth.L1BlockRef, error) {
	if number > o.head.Number {
		return eth.L1BlockRef{}, fmt.Errorf("%w: block number %d is past L1 head %s", ErrNotFound, number, o.head)
	}
	if hash, ok := o.hashByNum[number]; ok {
		return o.L1BlockRefByHash(ctx, hash)
	}
	block := o.earliestIndexedBlock
	for block.Number > number {
		info, err := o.oracle.HeaderByBlockHash(block.ParentHash)
		if err != nil {
			return eth.L1BlockRef{}, fmt.Errorf("failed to walk back to L1 block %d: %w", number, err)
		}
		block = eth.InfoToL1BlockRef(info)
		o.hashByNum[block.Number] = block.Hash
		o.earliestIndexedBlock = block
	}
	return block, nil
}

func (o *OracleL1Client) L1BlockRefByHash(ctx context.Context, hash common.Hash) (eth.L1BlockRef, error) {
	info, err := o.InfoByHash(ctx, hash)
	if err != nil {
		return eth.L1BlockRef{}, err
	}
	return eth.InfoToL1BlockRef(info), nil
}

func (o *OracleL1Client) InfoByHash(ctx context.Context, hash common.Hash) (eth.BlockInfo, error) {
	return o.oracle.HeaderByBlockHash(hash)
}

func (o *OracleL1Client) FetchReceipts(ctx context.Context, blockHash common.Hash) (eth.BlockInfo, types.Receipts, error) {
	return o.oracle.ReceiptsByBlockHash(blockHash)
}

func (o *OracleL1Client) InfoAndTxsByHash(ctx context.Context, hash common.Hash) (eth.BlockInfo, types.Transactions, error) {
	return o.oracle.TransactionsByBlockHash(hash)
}
