package state

import (
	"sync"
	"sync/atomic"
)

// State captures the state of a carina node: Registering, Running or
// Shutdown.
type State uint32

const (
	// Registering is the state in which a peer has sent its registration to
	// the hole puncher and waits for the acknowledgement.
	Registering State = iota

	// Running is the state in which a node processes datagrams and takes part
	// in hash votes.
	Running

	// Shutdown is the state in which a node stops responding to external events
	// and closes its transport.
	Shutdown
)

// WGLIMIT is the maximum number of goroutines that can be launched through
// state.GoFunc
const WGLIMIT = 20

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case Registering:
		return "Registering"
	case Running:
		return "Running"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// Manager wraps a State with get and set methods. It is also used to limit the
// number of background goroutines launched by the node, and to wait for all of
// them to complete.
type Manager struct {
	state   State
	wg      sync.WaitGroup
	wgCount int32
}

// GetState returns the current state.
func (b *Manager) GetState() State {
	stateAddr := (*uint32)(&b.state)
	return State(atomic.LoadUint32(stateAddr))
}

// SetState sets the state.
func (b *Manager) SetState(s State) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}

// GoFunc launches a goroutine for f if fewer than WGLIMIT are running, and
// reports whether it did. Callers run f themselves when it returns false.
func (b *Manager) GoFunc(f func()) bool {
	if atomic.AddInt32(&b.wgCount, 1) > WGLIMIT {
		atomic.AddInt32(&b.wgCount, -1)
		return false
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer atomic.AddInt32(&b.wgCount, -1)
		f()
	}()
	return true
}

// WaitRoutines waits for all the goroutines in the waitgroup.
func (b *Manager) WaitRoutines() {
	b.wg.Wait()
}
