package l2

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"

	preimage "github.com/mantlenetworkio/mantle-faultproof/op-preimage"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/mpt"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/predeploys"
)

// StateOracle defines the high-level API used to retrieve L2 state data pre-images
// The returned data is always the preimage of the requested hash.
type StateOracle interface {
	// NodeByHash retrieves the merkle-patricia trie node pre-image for a given hash.
	// Trie nodes may be from the world state trie or any account storage trie.
	// Contract code is not stored as part of the trie and must be retrieved via CodeByHash
	NodeByHash(nodeHash common.Hash, chainID eth.ChainID) ([]byte, error)

	// CodeByHash retrieves the contract code pre-image for a given hash.
	// codeHash should be retrieved from the world state account for a contract.
	CodeByHash(codeHash common.Hash, chainID eth.ChainID) ([]byte, error)
}

// Oracle defines the high-level API used to retrieve L2 data.
// The returned data is always the preimage of the requested hash.
type Oracle interface {
	StateOracle

	// BlockByHash retrieves the block with the given hash.
	BlockByHash(blockHash common.Hash, chainID eth.ChainID) (*types.Block, error)

	OutputByRoot(root common.Hash, chainID eth.ChainID) (eth.Output, error)

	ReceiptsByBlockHash(blockHash common.Hash, chainID eth.ChainID) (*types.Block, types.Receipts, error)
}

// OracleHinter sends the hints that prepare the host for a batch of lookups.
type OracleHinter interface {
	HintBlockExecution(parentBlockHash common.Hash, attr eth.PayloadAttributes, chainID eth.ChainID)
	HintWithdrawalsRoot(blockHash common.Hash, chainID eth.ChainID)
}

type PreimageOracleHinter struct {
	hint preimage.Hinter
}

func NewPreimageHinter(hint preimage.Hinter) *PreimageOracleHinter {
	return &PreimageOracleHinter{hint: hint}
}

func (p *PreimageOracleHinter) HintBlockExecution(parentBlockHash common.Hash, attr eth.PayloadAttributes, chainID eth.ChainID) {
	p.hint.Hint(PayloadWitnessHint{
		ParentBlockHash:   parentBlockHash,
		PayloadAttributes: &attr,
		ChainID:           &chainID,
	})
}

// HintWithdrawalsRoot hints that we're about to fetch the storage root of the L2ToL1MessagePasser contract.
func (p *PreimageOracleHinter) HintWithdrawalsRoot(blockHash common.Hash, chainID eth.ChainID) {
	p.hint.Hint(AccountProofHint{BlockHash: blockHash, Address: predeploys.L2ToL1MessagePasserAddr, ChainID: chainID})
}

// PreimageOracle implements Oracle using by interfacing with the pure preimage.Oracle
// to fetch pre-images to decode into the requested data.
type PreimageOracle struct {
	oracle         preimage.Oracle
	hint           preimage.Hinter
	hintL2ChainIDs bool

	oracleHinter OracleHinter
}

var _ Oracle = (*PreimageOracle)(nil)

// NewPreimageOracle creates the oracle. With hintL2ChainIDs set, every hint carries the chain id,
// so that a single host can serve multiple L2 chains.
func NewPreimageOracle(raw preimage.Oracle, hint preimage.Hinter, hintL2ChainIDs bool) *PreimageOracle {
	return &PreimageOracle{
		oracle:         raw,
		hint:           hint,
		hintL2ChainIDs: hintL2ChainIDs,
	}
}

// Hinter returns the proactive hints of this oracle, sent over the same hint channel.
func (p *PreimageOracle) Hinter() OracleHinter {
	if p.oracleHinter == nil {
		p.oracleHinter = NewPreimageHinter(p.hint)
	}
	return p.oracleHinter
}

func (p *PreimageOracle) getNode(key common.Hash) ([]byte, error) {
	return p.oracle.Get(preimage.Keccak256Key(key))
}

func (p *PreimageOracle) headerByBlockHash(blockHash common.Hash, chainID eth.ChainID) (*types.Header, error) {
	if p.hintL2ChainIDs {
		p.hint.Hint(BlockHeaderHint{Hash: blockHash, ChainID: chainID})
	} else {
		p.hint.Hint(LegacyBlockHeaderHint(blockHash))
	}
	headerRlp, err := p.oracle.Get(preimage.Keccak256Key(blockHash))
	if err != nil {
		return nil, fmt.Errorf("failed to get L2 block header %s: %w", blockHash, err)
	}
	var header types.Header
	if err := rlp.DecodeBytes(headerRlp, &header); err != nil {
		return nil, fmt.Errorf("%w: invalid L2 block header %s: %w", preimage.ErrCorruptData, blockHash, err)
	}
	return &header, nil
}

func (p *PreimageOracle) BlockByHash(blockHash common.Hash, chainID eth.ChainID) (*types.Block, error) {
	header, err := p.headerByBlockHash(blockHash, chainID)
	if err != nil {
		return nil, err
	}
	txs, err := p.LoadTransactions(blockHash, header.TxHash, chainID)
	if err != nil {
		return nil, err
	}
	return types.NewBlockWithHeader(header).WithBody(types.Body{Transactions: txs}), nil
}

func (p *PreimageOracle) LoadTransactions(blockHash common.Hash, txHash common.Hash, chainID eth.ChainID) ([]*types.Transaction, error) {
	if p.hintL2ChainIDs {
		p.hint.Hint(TransactionsHint{Hash: blockHash, ChainID: chainID})
	} else {
		p.hint.Hint(LegacyTransactionsHint(blockHash))
	}

	opaqueTxs, err := mpt.ReadTrie(txHash, p.getNode)
	if err != nil {
		return nil, fmt.Errorf("failed to read transactions of L2 block %s: %w", blockHash, err)
	}
	txs, err := eth.DecodeTransactions(opaqueTxs)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode list of txs of L2 block %s: %w", preimage.ErrCorruptData, blockHash, err)
	}
	return txs, nil
}

func (p *PreimageOracle) NodeByHash(nodeHash common.Hash, chainID eth.ChainID) ([]byte, error) {
	if p.hintL2ChainIDs {
		p.hint.Hint(StateNodeHint{Hash: nodeHash, ChainID: chainID})
	} else {
		p.hint.Hint(LegacyStateNodeHint(nodeHash))
	}
	return p.oracle.Get(preimage.Keccak256Key(nodeHash))
}

func (p *PreimageOracle) CodeByHash(codeHash common.Hash, chainID eth.ChainID) ([]byte, error) {
	if p.hintL2ChainIDs {
		p.hint.Hint(CodeHint{Hash: codeHash, ChainID: chainID})
	} else {
		p.hint.Hint(LegacyCodeHint(codeHash))
	}
	return p.oracle.Get(preimage.Keccak256Key(codeHash))
}

func (p *PreimageOracle) OutputByRoot(l2OutputRoot common.Hash, chainID eth.ChainID) (eth.Output, error) {
	if p.hintL2ChainIDs {
		p.hint.Hint(L2OutputHint{Hash: l2OutputRoot, ChainID: chainID})
	} else {
		p.hint.Hint(LegacyL2OutputHint(l2OutputRoot))
	}
	data, err := p.oracle.Get(preimage.Keccak256Key(l2OutputRoot))
	if err != nil {
		return nil, fmt.Errorf("failed to get L2 output %s: %w", l2OutputRoot, err)
	}
	output, err := eth.UnmarshalOutput(data)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid L2 output data for root %s: %w", preimage.ErrCorruptData, l2OutputRoot, err)
	}
	return output, nil
}

// SuperRootByHash loads the super root preimage committed to by root.
func (p *PreimageOracle) SuperRootByHash(root common.Hash) (eth.Super, error) {
	p.hint.Hint(AgreedPrestateHint(root))
	data, err := p.oracle.Get(preimage.Keccak256Key(root))
	if err != nil {
		return nil, fmt.Errorf("failed to get super root %s: %w", root, err)
	}
	super, err := eth.UnmarshalSuperRoot(data)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid super root %s: %w", preimage.ErrCorruptData, root, err)
	}
	return super, nil
}

func (p *PreimageOracle) ReceiptsByBlockHash(blockHash common.Hash, chainID eth.ChainID) (*types.Block, types.Receipts, error) {
	block, err := p.BlockByHash(blockHash, chainID)
	if err != nil {
		return nil, nil, err
	}
	p.hint.Hint(ReceiptsHint{Hash: blockHash, ChainID: chainID})
	opaqueReceipts, err := mpt.ReadTrie(block.ReceiptHash(), p.getNode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read receipts of L2 block %s: %w", blockHash, err)
	}
	txHashes := eth.TransactionsToHashes(block.Transactions())
	receipts, err := eth.DecodeRawReceipts(eth.ToBlockID(block), opaqueReceipts, txHashes)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to decode receipts for L2 block %s: %w", preimage.ErrCorruptData, block.Hash(), err)
	}
	return block, receipts, nil
}
