// Package test provides a deterministic StateTransition for tests of the execution adapter,
// the driver and the program.
package test

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/engine"
	l2test "github.com/mantlenetworkio/mantle-faultproof/op-program/client/l2/test"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/predeploys"
)

const TxGas = 21_000

var DefaultBaseFee = big.NewInt(1_000_000_000)

// Transition keeps a two-slot state in the L2ToL1MessagePasser: slot 0 holds the block
// number, slot 1 a hash chain over the parent state root and the transactions of the block.
//
// User transactions with calldata emit one log at their recipient. The calldata is read as a
// topic count byte, the topics, and the log data.
type Transition struct {
	// Err is returned by every ApplyBlock when set.
	Err   error
	Calls int
}

var _ engine.StateTransition = (*Transition)(nil)

func (s *Transition) ApplyBlock(ctx context.Context, input *engine.BlockInput) (*engine.TransitionResult, error) {
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	number := input.Parent.Number.Uint64() + 1
	root, nodes, err := State(number, input.Parent.Root, input.Transactions)
	if err != nil {
		return nil, err
	}
	receipts := make(types.Receipts, 0, len(input.Transactions))
	var gasUsed uint64
	for i, tx := range input.Transactions {
		gasUsed += TxGas
		receipt := &types.Receipt{
			Type:              tx.Type(),
			Status:            types.ReceiptStatusSuccessful,
			CumulativeGasUsed: gasUsed,
			TxHash:            tx.Hash(),
			GasUsed:           TxGas,
			TransactionIndex:  uint(i),
			BlockNumber:       new(big.Int).SetUint64(number),
			Logs:              []*types.Log{},
		}
		if tx.Type() != types.DepositTxType && tx.To() != nil && len(tx.Data()) > 0 {
			l, err := DecodeLog(*tx.To(), tx.Data())
			if err != nil {
				return nil, fmt.Errorf("tx %d: %w", i, err)
			}
			l.TxHash = tx.Hash()
			l.TxIndex = uint(i)
			l.BlockNumber = number
			receipt.Logs = append(receipt.Logs, l)
		}
		for _, l := range receipt.Logs {
			receipt.Bloom.Add(l.Address.Bytes())
			for _, topic := range l.Topics {
				receipt.Bloom.Add(topic[:])
			}
		}
		receipts = append(receipts, receipt)
	}
	baseFee := DefaultBaseFee
	if input.Parent.BaseFee != nil {
		baseFee = input.Parent.BaseFee
	}
	return &engine.TransitionResult{
		StateRoot:  root,
		Receipts:   receipts,
		GasUsed:    gasUsed,
		BaseFee:    baseFee,
		StateNodes: nodes,
	}, nil
}

// State returns the state root and trie nodes the transition produces for a block.
func State(number uint64, parentRoot common.Hash, txs types.Transactions) (common.Hash, []hexutil.Bytes, error) {
	acc := crypto.NewKeccakState()
	acc.Write(parentRoot[:])
	for _, tx := range txs {
		h := tx.Hash()
		acc.Write(h[:])
	}
	var chain common.Hash
	acc.Read(chain[:])
	root, nodes, _, err := l2test.EncodeState(map[common.Address]l2test.Account{
		predeploys.L2ToL1MessagePasserAddr: {
			Nonce: 1,
			Storage: map[common.Hash]common.Hash{
				{}:      common.BigToHash(new(big.Int).SetUint64(number)),
				{31: 1}: chain,
			},
		},
	})
	return root, nodes, err
}

// EncodeLog encodes the calldata of a user transaction that makes the Transition emit the log.
func EncodeLog(topics []common.Hash, data []byte) []byte {
	out := []byte{byte(len(topics))}
	for _, t := range topics {
		out = append(out, t[:]...)
	}
	return append(out, data...)
}

var errBadLogData = errors.New("calldata does not encode a log")

func DecodeLog(addr common.Address, calldata []byte) (*types.Log, error) {
	if len(calldata) == 0 {
		return nil, errBadLogData
	}
	n := int(calldata[0])
	if len(calldata) < 1+n*32 {
		return nil, errBadLogData
	}
	l := &types.Log{Address: addr, Data: calldata[1+n*32:]}
	for i := 0; i < n; i++ {
		l.Topics = append(l.Topics, common.BytesToHash(calldata[1+i*32:1+(i+1)*32]))
	}
	return l, nil
}
