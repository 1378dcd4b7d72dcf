package interop

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
	supervisortypes "github.com/mantlenetworkio/mantle-faultproof/op-supervisor/supervisor/types"
)

// CanonicalChain is the canonical L2 chain of a source chain, from which blocks at or before
// the agreed head are loaded.
type CanonicalChain interface {
	HeadBlock() *types.Block
	BlockByNumber(number uint64) (*types.Block, error)
}

type ReceiptsSource interface {
	ReceiptsByBlockHash(blockHash common.Hash, chainID eth.ChainID) (*types.Block, types.Receipts, error)
}

type indexedBlock struct {
	number uint64
	time   uint64
	logs   []*types.Log
}

func newIndexedBlock(block *types.Block, receipts types.Receipts) *indexedBlock {
	b := &Block{Receipts: receipts}
	return &indexedBlock{
		number: block.NumberU64(),
		time:   block.Time(),
		logs:   b.Logs(),
	}
}

type chainLogs struct {
	chainID  eth.ChainID
	chain    CanonicalChain
	receipts ReceiptsSource

	headNum  uint64
	headTime uint64
	sealed   bool
	blocks   map[uint64]*indexedBlock
}

// LogIndex is the in-memory initiating-message index of the chains of one run. It serves blocks
// accepted during the run from memory, and loads older blocks from the canonical chain on demand.
type LogIndex struct {
	chains map[eth.ChainID]*chainLogs
}

var _ LogQuerier = (*LogIndex)(nil)

func NewLogIndex() *LogIndex {
	return &LogIndex{chains: make(map[eth.ChainID]*chainLogs)}
}

// AddChain starts indexing a chain at the head of its canonical chain.
func (li *LogIndex) AddChain(chainID eth.ChainID, chain CanonicalChain, receipts ReceiptsSource) {
	head := chain.HeadBlock()
	li.chains[chainID] = &chainLogs{
		chainID:  chainID,
		chain:    chain,
		receipts: receipts,
		headNum:  head.NumberU64(),
		headTime: head.Time(),
		blocks:   make(map[uint64]*indexedBlock),
	}
}

// Accept records the logs of a block that was appended to the canonical chain.
func (li *LogIndex) Accept(chainID eth.ChainID, block *types.Block, receipts types.Receipts) error {
	c, ok := li.chains[chainID]
	if !ok {
		return fmt.Errorf("%w: %s", supervisortypes.ErrUnknownChain, &chainID)
	}
	if block.NumberU64() != c.headNum+1 {
		return fmt.Errorf("%w: block %d accepted on head %d of chain %s", supervisortypes.ErrConflict,
			block.NumberU64(), c.headNum, &chainID)
	}
	if c.sealed {
		return fmt.Errorf("chain %s is sealed at block %d", &chainID, c.headNum)
	}
	c.blocks[block.NumberU64()] = newIndexedBlock(block, receipts)
	c.headNum = block.NumberU64()
	c.headTime = block.Time()
	return nil
}

// Seal marks the chain as fully derived: logs past its head are conclusively absent.
func (li *LogIndex) Seal(chainID eth.ChainID) {
	if c, ok := li.chains[chainID]; ok {
		c.sealed = true
	}
}

func (li *LogIndex) Query(chainID eth.ChainID, id LogID) (LogQueryResult, error) {
	c, ok := li.chains[chainID]
	if !ok {
		return LogQueryResult{}, fmt.Errorf("%w: %s", supervisortypes.ErrUnknownChain, &chainID)
	}
	if id.BlockNumber > c.headNum {
		// Blocks past the head have a timestamp past the head's, so a log claimed at or before the
		// head's timestamp can no longer appear there.
		if c.sealed || id.Timestamp <= c.headTime {
			return LogQueryResult{Status: ConclusivelyAbsent}, nil
		}
		return LogQueryResult{Status: NotFoundYet}, nil
	}
	block, err := c.block(id.BlockNumber)
	if err != nil {
		return LogQueryResult{}, err
	}
	if uint64(id.LogIndex) >= uint64(len(block.logs)) {
		return LogQueryResult{Status: ConclusivelyAbsent}, nil
	}
	return foundLog(block.logs[id.LogIndex], block.time), nil
}

func (c *chainLogs) block(number uint64) (*indexedBlock, error) {
	if b, ok := c.blocks[number]; ok {
		return b, nil
	}
	header, err := c.chain.BlockByNumber(number)
	if err != nil {
		return nil, fmt.Errorf("failed to load block %d of chain %s: %w", number, &c.chainID, err)
	}
	block, receipts, err := c.receipts.ReceiptsByBlockHash(header.Hash(), c.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to load receipts of block %d of chain %s: %w", number, &c.chainID, err)
	}
	b := newIndexedBlock(block, receipts)
	c.blocks[number] = b
	return b, nil
}
