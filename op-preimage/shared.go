package preimage

import "sync"

// SharedOracle serializes access to an Oracle, so several providers
// can be handed the same underlying channel.
type SharedOracle struct {
	mu     sync.Mutex
	oracle Oracle
}

var _ Oracle = (*SharedOracle)(nil)

func NewSharedOracle(oracle Oracle) *SharedOracle {
	return &SharedOracle{oracle: oracle}
}

func (s *SharedOracle) Get(key Key) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.oracle.Get(key)
}

// SharedHinter serializes access to a Hinter.
type SharedHinter struct {
	mu     sync.Mutex
	hinter Hinter
}

var _ Hinter = (*SharedHinter)(nil)

func NewSharedHinter(hinter Hinter) *SharedHinter {
	return &SharedHinter{hinter: hinter}
}

func (s *SharedHinter) Hint(v Hint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hinter.Hint(v)
}
