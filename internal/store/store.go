package store

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/itzTheMeow/Modular-Storage-System-sub002/internal/keyValStore"
)

// ErrNotFound is returned for point lookups of records that do not exist.
var ErrNotFound = errors.New("store: record not found")

// Key prefixes, one per record family. The relational schema of the engine
// (markers, networks, membership, slots, disks, cells) maps onto these
// prefixes; every multi-row mutation runs inside one transaction.
const (
	prefixMarker  = "marker/"
	prefixNetwork = "network/"
	prefixMember  = "member/"
	prefixNetLoc  = "netloc/"
	prefixSlot    = "slot/"
	prefixNetSlot = "netslot/"
	prefixSeated  = "seated/"
	prefixDisk    = "disk/"
	prefixCell    = "cell/"
	prefixCellRef = "cellref/"
	prefixBlob    = "blob/"
	prefixChunk   = "chunk/"
)

// Store owns the persistent record families of the engine. All methods take
// the transaction they run in; the caller decides the transaction scope.
type Store struct {
	kv  *keyValStore.KeyValStore
	log *logrus.Logger
}

func NewStore(kv *keyValStore.KeyValStore, log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.New()
	}
	return &Store{kv: kv, log: log}
}

// KV exposes the underlying transactional store so callers can open the one
// transaction an operation runs in.
func (s *Store) KV() *keyValStore.KeyValStore {
	return s.kv
}

func encodeRecord(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("error encoding record: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeRecord(data []byte, v interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("error decoding record: %w", err)
	}
	return nil
}

func getValue(txn *badger.Txn, key string) ([]byte, error) {
	item, err := txn.Get([]byte(key))
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// keysWithPrefix collects all keys under a prefix. Keys are collected before
// the caller mutates, so deleting while walking is safe.
func keysWithPrefix(txn *badger.Txn, prefix string) ([]string, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys []string
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, string(it.Item().KeyCopy(nil)))
	}
	return keys, nil
}

func countKeysWithPrefix(txn *badger.Txn, prefix string) (int, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	count := 0
	for it.Rewind(); it.Valid(); it.Next() {
		count++
	}
	return count, nil
}

// itemsWithPrefix returns key/value pairs under a prefix in key order.
func itemsWithPrefix(txn *badger.Txn, prefix string) ([][2][]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	var out [][2][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		k := item.KeyCopy(nil)
		v, err := item.ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		out = append(out, [2][]byte{k, v})
	}
	return out, nil
}
