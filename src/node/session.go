package node

import (
	"sync"
	"time"

	"github.com/lholznagel/carina/src/block"
	"github.com/lholznagel/carina/src/crypto"
)

// PeerRecord is what a node knows about another node, keyed by address.
type PeerRecord struct {
	Addr      string
	PublicKey *[crypto.KeySize]byte
	Moniker   string
	Weight    uint64
	Reachable bool
}

type vote struct {
	voter string
	hash  string
}

// Session is the mutable state shared by all handlers of a node. Every field
// is guarded by the embedded mutex. Handlers hold it only while reading or
// updating state, never across a send.
type Session struct {
	sync.Mutex

	// known peers, unique by address, in first-seen order
	peers map[string]*PeerRecord
	order []string

	// current is the index of the latest adopted candidate or block.
	// finalized is set once that index has a winning hash.
	candidate  *block.Block
	current    uint64
	hasCurrent bool
	finalized  bool

	voting     bool
	votes      []vote
	roundGen   uint64
	roundTimer *time.Timer

	// hole puncher only: the last registered peer, the addresses registered
	// since startup and the genesis latch
	slot        *PeerRecord
	registered  map[string]struct{}
	genesisSent bool
}

func newSession() *Session {
	return &Session{
		peers:      make(map[string]*PeerRecord),
		registered: make(map[string]struct{}),
	}
}

// upsertPeer adds rec or supersedes the record with the same address. A
// known key is kept when rec carries none. Caller holds the lock.
func (s *Session) upsertPeer(rec PeerRecord) *PeerRecord {
	old, ok := s.peers[rec.Addr]
	if !ok {
		s.order = append(s.order, rec.Addr)
	} else {
		if rec.PublicKey == nil {
			rec.PublicKey = old.PublicKey
		}
		if rec.Weight == 0 {
			rec.Weight = old.Weight
		}
		rec.Reachable = rec.Reachable || old.Reachable
	}
	cp := rec
	s.peers[rec.Addr] = &cp
	return &cp
}

// peerList returns copies of the known peers. Caller holds the lock.
func (s *Session) peerList() []PeerRecord {
	res := make([]PeerRecord, 0, len(s.order))
	for _, addr := range s.order {
		res = append(res, *s.peers[addr])
	}
	return res
}

// Peer returns a copy of the record for addr.
func (s *Session) Peer(addr string) (PeerRecord, bool) {
	s.Lock()
	defer s.Unlock()

	p, ok := s.peers[addr]
	if !ok {
		return PeerRecord{}, false
	}
	return *p, true
}

// Peers returns copies of all known peers.
func (s *Session) Peers() []PeerRecord {
	s.Lock()
	defer s.Unlock()
	return s.peerList()
}

// SessionStats is a point in time view of a Session.
type SessionStats struct {
	Peers      int
	Current    uint64
	HasCurrent bool
	Finalized  bool
	Voting     bool
	Votes      int
	Slot       string
	Registered int
}

// Stats returns a consistent view of the session.
func (s *Session) Stats() SessionStats {
	s.Lock()
	defer s.Unlock()

	st := SessionStats{
		Peers:      len(s.peers),
		Current:    s.current,
		HasCurrent: s.hasCurrent,
		Finalized:  s.finalized,
		Voting:     s.voting,
		Votes:      len(s.votes),
		Registered: len(s.registered),
	}
	if s.slot != nil {
		st.Slot = s.slot.Addr
	}
	return st
}

// Candidate returns a copy of the current candidate, if any.
func (s *Session) Candidate() (block.Block, bool) {
	s.Lock()
	defer s.Unlock()

	if s.candidate == nil {
		return block.Block{}, false
	}
	return *s.candidate, true
}

// endRound leaves the Voting phase and invalidates the round timer. Caller
// holds the lock.
func (s *Session) endRound() {
	s.voting = false
	s.votes = nil
	s.roundGen++
	if s.roundTimer != nil {
		s.roundTimer.Stop()
		s.roundTimer = nil
	}
}
