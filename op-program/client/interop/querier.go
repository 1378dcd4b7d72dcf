package interop

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
)

// LogID identifies a log of a source chain by block and index within that block.
// Timestamp is the claimed timestamp of the block, used to bound how long the log can still appear.
type LogID struct {
	BlockNumber uint64
	LogIndex    uint32
	Timestamp   uint64
}

func (id LogID) String() string {
	return fmt.Sprintf("log %d of block %d (time %d)", id.LogIndex, id.BlockNumber, id.Timestamp)
}

type LogStatus uint8

const (
	// NotFoundYet: the source chain has not been derived far enough to contain the log.
	NotFoundYet LogStatus = iota
	// Found: the log exists in the canonical source chain.
	Found
	// ConclusivelyAbsent: the source chain is derived past the log position and the log does not exist.
	ConclusivelyAbsent
)

func (s LogStatus) String() string {
	switch s {
	case NotFoundYet:
		return "not-found-yet"
	case Found:
		return "found"
	case ConclusivelyAbsent:
		return "conclusively-absent"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// LogQueryResult is the answer to a log query. Origin, PayloadHash and Timestamp are only set when Found.
type LogQueryResult struct {
	Status      LogStatus
	Origin      common.Address
	PayloadHash common.Hash
	Timestamp   uint64
}

// LogQuerier looks up initiating messages in the canonical log of a chain.
type LogQuerier interface {
	Query(chainID eth.ChainID, id LogID) (LogQueryResult, error)
}
