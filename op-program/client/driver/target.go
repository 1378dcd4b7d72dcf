package driver

import (
	"fmt"

	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup"
)

// Target is the L2 point derivation stops at: a block number, or the last block at or
// before a timestamp.
type Target struct {
	value       uint64
	byTimestamp bool
}

func BlockTarget(number uint64) Target {
	return Target{value: number}
}

func TimestampTarget(timestamp uint64) Target {
	return Target{value: timestamp, byTimestamp: true}
}

// BlockNumber resolves the target to an L2 block number.
func (t Target) BlockNumber(cfg *rollup.Config) (uint64, error) {
	if !t.byTimestamp {
		return t.value, nil
	}
	return cfg.TargetBlockNumber(t.value)
}

func (t Target) String() string {
	if t.byTimestamp {
		return fmt.Sprintf("timestamp %d", t.value)
	}
	return fmt.Sprintf("block %d", t.value)
}
