package store

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/dgraph-io/badger"
	"github.com/lholznagel/carina/src/block"
	cm "github.com/lholznagel/carina/src/common"
)

const (
	blockPrefix  = "block"
	lastBlockKey = "last_block"
)

// BadgerStore persists blocks in a badger database. Each block is stored as
// JSON under block_<index>, and the highest index under last_block.
type BadgerStore struct {
	db   *badger.DB
	path string
}

// NewBadgerStore opens the database at path, creating it if needed.
func NewBadgerStore(path string) (*BadgerStore, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false
	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &BadgerStore{
		db:   handle,
		path: path,
	}, nil
}

func blockKey(index uint64) []byte {
	return []byte(fmt.Sprintf("%s_%020d", blockPrefix, index))
}

// Persist implements BlockStore.
func (s *BadgerStore) Persist(b *block.Block) error {
	val, err := b.Marshal()
	if err != nil {
		return err
	}

	key := blockKey(b.Index)

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return cm.NewStoreErr("Block", cm.KeyAlreadyExists, string(key))
		} else if !isDBKeyNotFound(err) {
			return err
		}

		// insert [block_index] => [block bytes]
		if err := txn.Set(key, val); err != nil {
			return err
		}

		last, err := getLastIndex(txn)
		if err == nil && last >= b.Index {
			return nil
		}
		if err != nil && !isDBKeyNotFound(err) {
			return err
		}

		var idx [8]byte
		binary.BigEndian.PutUint64(idx[:], b.Index)
		return txn.Set([]byte(lastBlockKey), idx[:])
	})
}

// Get implements BlockStore.
func (s *BadgerStore) Get(index uint64) (*block.Block, error) {
	var blockBytes []byte
	key := blockKey(index)

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		blockBytes, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, mapError(err, "Block", string(key))
	}

	b := new(block.Block)
	if err := b.Unmarshal(blockBytes); err != nil {
		return nil, err
	}

	return b, nil
}

// Last implements BlockStore.
func (s *BadgerStore) Last() (*block.Block, error) {
	var last uint64
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		last, err = getLastIndex(txn)
		return err
	})
	if err != nil {
		if isDBKeyNotFound(err) {
			return nil, cm.NewStoreErr("Block", cm.Empty, lastBlockKey)
		}
		return nil, err
	}

	return s.Get(last)
}

// Len implements BlockStore.
func (s *BadgerStore) Len() int {
	count := 0
	prefix := []byte(blockPrefix + "_")

	s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})

	return count
}

// Close implements BlockStore.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// StorePath returns the database directory.
func (s *BadgerStore) StorePath() string {
	return s.path
}

func getLastIndex(txn *badger.Txn) (uint64, error) {
	item, err := txn.Get([]byte(lastBlockKey))
	if err != nil {
		return 0, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return 0, err
	}
	if len(val) != 8 {
		return 0, fmt.Errorf("corrupt %s value of %d bytes", lastBlockKey, len(val))
	}
	return binary.BigEndian.Uint64(val), nil
}

func isDBKeyNotFound(err error) bool {
	return err == badger.ErrKeyNotFound
}

func mapError(err error, name, key string) error {
	if err != nil {
		if isDBKeyNotFound(err) {
			return cm.NewStoreErr(name, cm.KeyNotFound, key)
		}
	}
	return err
}
