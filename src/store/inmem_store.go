package store

import (
	"strconv"
	"sync"

	"github.com/lholznagel/carina/src/block"
	cm "github.com/lholznagel/carina/src/common"
)

// InmemStore keeps blocks in a map. It is used by tests and by nodes started
// without --store.
type InmemStore struct {
	sync.RWMutex
	blocks    map[uint64]*block.Block
	lastIndex uint64
	closed    bool
}

// NewInmemStore ...
func NewInmemStore() *InmemStore {
	return &InmemStore{
		blocks: make(map[uint64]*block.Block),
	}
}

// Persist implements BlockStore.
func (s *InmemStore) Persist(b *block.Block) error {
	s.Lock()
	defer s.Unlock()

	key := strconv.FormatUint(b.Index, 10)
	if s.closed {
		return cm.NewStoreErr("Block", cm.Closed, key)
	}
	if _, ok := s.blocks[b.Index]; ok {
		return cm.NewStoreErr("Block", cm.KeyAlreadyExists, key)
	}

	cp := *b
	s.blocks[b.Index] = &cp
	if len(s.blocks) == 1 || b.Index > s.lastIndex {
		s.lastIndex = b.Index
	}

	return nil
}

// Get implements BlockStore.
func (s *InmemStore) Get(index uint64) (*block.Block, error) {
	s.RLock()
	defer s.RUnlock()

	b, ok := s.blocks[index]
	if !ok {
		return nil, cm.NewStoreErr("Block", cm.KeyNotFound, strconv.FormatUint(index, 10))
	}
	cp := *b
	return &cp, nil
}

// Last implements BlockStore.
func (s *InmemStore) Last() (*block.Block, error) {
	s.RLock()
	empty := len(s.blocks) == 0
	last := s.lastIndex
	s.RUnlock()

	if empty {
		return nil, cm.NewStoreErr("Block", cm.Empty, "last")
	}
	return s.Get(last)
}

// Len implements BlockStore.
func (s *InmemStore) Len() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.blocks)
}

// Close implements BlockStore.
func (s *InmemStore) Close() error {
	s.Lock()
	defer s.Unlock()
	s.closed = true
	return nil
}
