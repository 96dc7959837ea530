package store

import (
	"github.com/lholznagel/carina/src/block"
)

// BlockStore persists finalised blocks. Persist is called from a background
// goroutine; callers do not wait for it.
type BlockStore interface {
	// Persist stores b under its index. An index is written once; storing it
	// again returns a KeyAlreadyExists StoreErr.
	Persist(b *block.Block) error
	// Get returns the block with the given index.
	Get(index uint64) (*block.Block, error)
	// Last returns the block with the highest index, or an Empty StoreErr.
	Last() (*block.Block, error)
	// Len returns the number of stored blocks.
	Len() int
	Close() error
}
