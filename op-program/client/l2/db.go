package l2

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"

	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
)

var codePrefixedKeyLength = common.HashLength + len(rawdb.CodePrefix)

var (
	ErrInvalidKeyLength = errors.New("pre-images must be identified by 32-byte hash keys")
	errNotSupported     = errors.New("not supported")
)

// KeyValueStore is a subset of the ethdb.KeyValueStore interface that's required for block processing.
type KeyValueStore interface {
	ethdb.KeyValueReader
	ethdb.Batcher
	// Put inserts the given value into the key-value data store.
	Put(key []byte, value []byte) error
}

// OracleKeyValueStore is the key-value store of the state database seen by the EVM. Reads fall
// through to the oracle when the entry was not written during this run. Trie nodes written
// through it are recorded until taken.
type OracleKeyValueStore struct {
	db      KeyValueStore
	oracle  StateOracle
	chainID eth.ChainID

	written []hexutil.Bytes
}

var _ ethdb.KeyValueStore = (*OracleKeyValueStore)(nil)

func NewOracleBackedDB(kv KeyValueStore, oracle StateOracle, chainID eth.ChainID) *OracleKeyValueStore {
	return &OracleKeyValueStore{
		db:      kv,
		oracle:  oracle,
		chainID: chainID,
	}
}

func (o *OracleKeyValueStore) Get(key []byte) ([]byte, error) {
	has, err := o.db.Has(key)
	if err != nil {
		return nil, fmt.Errorf("checking in-memory db: %w", err)
	}
	if has {
		return o.db.Get(key)
	}

	if len(key) == codePrefixedKeyLength && bytes.HasPrefix(key, rawdb.CodePrefix) {
		key = key[len(rawdb.CodePrefix):]
		return o.oracle.CodeByHash(common.Hash(key), o.chainID)
	}
	if len(key) != common.HashLength {
		return nil, ErrInvalidKeyLength
	}
	return o.oracle.NodeByHash(common.Hash(key), o.chainID)
}

// TakeWritten returns the trie nodes written since the last call.
func (o *OracleKeyValueStore) TakeWritten() []hexutil.Bytes {
	out := o.written
	o.written = nil
	return out
}

func (o *OracleKeyValueStore) record(key []byte, value []byte) {
	if len(key) == common.HashLength {
		o.written = append(o.written, bytes.Clone(value))
	}
}

func (o *OracleKeyValueStore) NewBatch() ethdb.Batch {
	return &recordingBatch{Batch: o.db.NewBatch(), store: o}
}

func (o *OracleKeyValueStore) NewBatchWithSize(size int) ethdb.Batch {
	return &recordingBatch{Batch: o.db.NewBatchWithSize(size), store: o}
}

func (o *OracleKeyValueStore) Put(key []byte, value []byte) error {
	o.record(key, value)
	return o.db.Put(key, value)
}

func (o *OracleKeyValueStore) Has(key []byte) (bool, error) {
	return o.db.Has(key)
}

func (o *OracleKeyValueStore) Close() error {
	return nil
}

// Remaining methods are unused when accessing the state for block processing.

func (o *OracleKeyValueStore) SyncKeyValue() error {
	return errNotSupported
}

func (o *OracleKeyValueStore) Delete(key []byte) error {
	return errNotSupported
}

func (o *OracleKeyValueStore) DeleteRange(start, end []byte) error {
	return errNotSupported
}

func (o *OracleKeyValueStore) Stat() (string, error) {
	return "", errNotSupported
}

func (o *OracleKeyValueStore) NewIterator(prefix []byte, start []byte) ethdb.Iterator {
	panic("not supported")
}

func (o *OracleKeyValueStore) Compact(start []byte, limit []byte) error {
	return errNotSupported
}

// recordingBatch records the trie nodes of a batch as they are written.
type recordingBatch struct {
	ethdb.Batch
	store *OracleKeyValueStore
}

func (b *recordingBatch) Put(key []byte, value []byte) error {
	b.store.record(key, value)
	return b.Batch.Put(key, value)
}
