package interop

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
	"github.com/mantlenetworkio/mantle-faultproof/op-supervisor/supervisor/backend/depset"
	supervisortypes "github.com/mantlenetworkio/mantle-faultproof/op-supervisor/supervisor/types"
)

type Verdict uint8

const (
	Valid Verdict = iota
	Invalid
	// Indeterminate: the block cannot be judged yet. It must be held, not rejected.
	Indeterminate
)

func (v Verdict) String() string {
	switch v {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	case Indeterminate:
		return "indeterminate"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(v))
	}
}

// worse returns the verdict that dominates: Invalid over Indeterminate over Valid.
func (v Verdict) worse(other Verdict) Verdict {
	rank := func(v Verdict) int {
		switch v {
		case Invalid:
			return 2
		case Indeterminate:
			return 1
		default:
			return 0
		}
	}
	if rank(other) > rank(v) {
		return other
	}
	return v
}

// Block is a candidate block, with the receipts produced by executing it.
type Block struct {
	ChainID   eth.ChainID
	Number    uint64
	Timestamp uint64
	Receipts  types.Receipts
}

// Logs returns the logs of the block in log-index order.
func (b *Block) Logs() []*types.Log {
	var out []*types.Log
	for _, r := range b.Receipts {
		out = append(out, r.Logs...)
	}
	return out
}

// Checker validates the executing messages of candidate blocks against the initiating
// messages of the chains in the dependency set.
type Checker struct {
	logger log.Logger
	deps   depset.DependencySet
	links  LinkRules
	logs   LogQuerier
}

func NewChecker(logger log.Logger, deps depset.DependencySet, links LinkRules, logs LogQuerier) *Checker {
	return &Checker{
		logger: logger,
		deps:   deps,
		links:  links,
		logs:   logs,
	}
}

// Validate judges every executing message of the block. Any Invalid message makes the block
// Invalid. Otherwise any Indeterminate message makes it Indeterminate. A block without
// executing messages is Valid. Errors are only returned when a query failed.
func (c *Checker) Validate(block *Block) (Verdict, error) {
	logs := block.Logs()
	verdict := Valid
	for execIdx, l := range logs {
		msg, err := supervisortypes.MessageFromLog(l)
		if err != nil {
			c.logger.Warn("Malformed executing message", "chain", block.ChainID, "block", block.Number, "log", execIdx, "err", err)
			return Invalid, nil
		}
		if msg == nil {
			continue
		}
		v, reason, err := c.checkMessage(block, logs, uint32(execIdx), msg)
		if err != nil {
			return Invalid, fmt.Errorf("failed to check executing message %d of block %d on chain %s: %w",
				execIdx, block.Number, &block.ChainID, err)
		}
		if v != Valid {
			c.logger.Info("Executing message not valid", "chain", block.ChainID, "block", block.Number,
				"log", execIdx, "verdict", v, "reason", reason, "initChain", msg.Identifier.ChainID,
				"initBlock", msg.Identifier.BlockNumber, "initLog", msg.Identifier.LogIndex)
		}
		verdict = verdict.worse(v)
		if verdict == Invalid {
			return Invalid, nil
		}
	}
	return verdict, nil
}

func (c *Checker) checkMessage(block *Block, blockLogs []*types.Log, execIdx uint32, msg *supervisortypes.Message) (Verdict, string, error) {
	id := msg.Identifier
	if !c.deps.HasChain(id.ChainID) {
		return Invalid, "initiating chain not in dependency set", nil
	}
	if !c.links.CanExecute(block.ChainID, block.Timestamp, id.ChainID, id.Timestamp) {
		return Invalid, "link constraints violated", nil
	}
	if id.ChainID == block.ChainID && id.BlockNumber > block.Number {
		// a block can only execute messages of itself or its ancestors
		return Invalid, "initiating message after the executing block", nil
	}
	var res LogQueryResult
	if id.ChainID == block.ChainID && id.BlockNumber == block.Number {
		// the initiating message lives in the candidate itself, before the executing log
		res = intraBlockLog(block, blockLogs, execIdx, id.LogIndex)
	} else {
		var err error
		res, err = c.logs.Query(id.ChainID, LogID{BlockNumber: id.BlockNumber, LogIndex: id.LogIndex, Timestamp: id.Timestamp})
		if errors.Is(err, supervisortypes.ErrUnknownChain) {
			return Invalid, "initiating chain not indexed", nil
		} else if err != nil {
			return Invalid, "", err
		}
	}
	switch res.Status {
	case NotFoundYet:
		return Indeterminate, "initiating message not derived yet", nil
	case ConclusivelyAbsent:
		return Invalid, "initiating message does not exist", nil
	case Found:
		if res.Timestamp != id.Timestamp {
			return Invalid, fmt.Sprintf("timestamp mismatch: log at %d", res.Timestamp), nil
		}
		found := supervisortypes.Message{
			Identifier: supervisortypes.Identifier{
				Origin:      res.Origin,
				BlockNumber: id.BlockNumber,
				LogIndex:    id.LogIndex,
				Timestamp:   res.Timestamp,
				ChainID:     id.ChainID,
			},
			PayloadHash: res.PayloadHash,
		}
		if found.Checksum() != msg.Checksum() {
			return Invalid, "checksum mismatch", nil
		}
		return Valid, "", nil
	default:
		return Invalid, "", fmt.Errorf("unexpected log status %s", res.Status)
	}
}

func intraBlockLog(block *Block, logs []*types.Log, execIdx uint32, logIdx uint32) LogQueryResult {
	if logIdx >= execIdx {
		return LogQueryResult{Status: ConclusivelyAbsent}
	}
	return foundLog(logs[logIdx], block.Timestamp)
}

func foundLog(l *types.Log, timestamp uint64) LogQueryResult {
	return LogQueryResult{
		Status:      Found,
		Origin:      l.Address,
		PayloadHash: crypto.Keccak256Hash(supervisortypes.LogToMessagePayload(l)),
		Timestamp:   timestamp,
	}
}
