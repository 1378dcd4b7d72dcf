package types

import "errors"

var (
	// ErrUnknownChain is returned for a chain outside the dependency set.
	ErrUnknownChain = errors.New("unknown chain")
	// ErrConflict is returned when different data was already accepted at the same height.
	ErrConflict = errors.New("conflicting data")
)
