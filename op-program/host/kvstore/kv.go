package kvstore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	preimage "github.com/mantlenetworkio/mantle-faultproof/op-preimage"
)

// ErrNotFound is returned when a pre-image cannot be found in the KV store.
var ErrNotFound = fmt.Errorf("kvstore: %w", preimage.ErrNotFound)

// ErrAlreadyExists is returned when a different pre-image is stored under an existing key.
var ErrAlreadyExists = errors.New("conflicting pre-image already exists")

// KV is a Key-Value store interface for pre-image data.
type KV interface {
	// Put puts the pre-image value v in the key-value store with key k.
	// KV store implementations may return additional errors specific to the KV storage.
	Put(k common.Hash, v []byte) error

	// Get retrieves the pre-image with key k from the key-value store.
	// It returns ErrNotFound when the pre-image cannot be found.
	// KV store implementations may return additional errors specific to the KV storage.
	Get(k common.Hash) ([]byte, error)

	// Close closes the KV store.
	Close() error
}

// MemKV implements the KV store interface in memory, backed by a regular Go map.
// This should only be used in testing, as large programs may require more pre-image data than available memory.
// MemKV is safe for concurrent use.
type MemKV struct {
	sync.RWMutex
	m map[common.Hash][]byte
}

var _ KV = (*MemKV)(nil)

func NewMemKV() *MemKV {
	return &MemKV{m: make(map[common.Hash][]byte)}
}

func (m *MemKV) Put(k common.Hash, v []byte) error {
	m.Lock()
	defer m.Unlock()
	if existing, ok := m.m[k]; ok {
		if string(existing) != string(v) {
			return fmt.Errorf("%w: key %s", ErrAlreadyExists, k)
		}
		return nil
	}
	m.m[k] = append([]byte(nil), v...)
	return nil
}

func (m *MemKV) Get(k common.Hash) ([]byte, error) {
	m.RLock()
	defer m.RUnlock()
	v, ok := m.m[k]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemKV) Close() error {
	return nil
}

// Size returns the number of pre-images stored.
func (m *MemKV) Size() int {
	m.RLock()
	defer m.RUnlock()
	return len(m.m)
}
