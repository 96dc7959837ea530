package node

import (
	"github.com/lholznagel/carina/src/block"
)

// admission is the outcome of offering a candidate to the session.
type admission int

const (
	// admitStarted opened a new voting round for the candidate.
	admitStarted admission = iota
	// admitStale means the candidate is older than the current index. Any
	// round in progress was reset.
	admitStale
	// admitIgnored means a round for the same index is in progress or
	// already concluded.
	admitIgnored
	// admitNoPeers means there is nobody to ask for a vote.
	admitNoPeers
)

func (a admission) String() string {
	switch a {
	case admitStarted:
		return "started"
	case admitStale:
		return "stale"
	case admitIgnored:
		return "ignored"
	case admitNoPeers:
		return "no_peers"
	default:
		return "unknown"
	}
}

// admitCandidate decides what to do with a new candidate and, when a round
// opens, installs it as the current candidate. Caller holds the lock.
func (s *Session) admitCandidate(c *block.Block) admission {
	if s.hasCurrent && c.Index < s.current {
		if s.voting {
			s.endRound()
		}
		return admitStale
	}

	if s.hasCurrent && c.Index == s.current && (s.voting || s.finalized) {
		return admitIgnored
	}

	if len(s.peers) == 0 {
		return admitNoPeers
	}

	// a higher index supersedes the round in progress
	if s.voting {
		s.endRound()
	}

	cp := *c
	s.candidate = &cp
	s.current = c.Index
	s.hasCurrent = true
	s.finalized = false
	s.voting = true
	s.votes = nil
	s.roundGen++

	return admitStarted
}

// addVote records the hash reported by voter. It returns the finalized
// candidate once every known peer has voted. Votes outside a round, from
// unknown addresses, or repeated by the same voter are dropped. Caller holds
// the lock.
func (s *Session) addVote(voter, hash string) (*block.Block, bool, error) {
	if !s.voting {
		return nil, false, errNotVoting
	}

	if _, ok := s.peers[voter]; !ok {
		return nil, false, errUnknownVoter
	}

	for _, v := range s.votes {
		if v.voter == voter {
			return nil, false, errDuplicateVote
		}
	}

	s.votes = append(s.votes, vote{voter: voter, hash: hash})

	if len(s.votes) < len(s.peers) {
		return nil, false, nil
	}

	return s.concludeRound(), true, nil
}

// expireRound ends the round numbered gen if it is still open. Partial votes
// are tallied; without any vote the candidate is dropped and the same index
// may be proposed again. Caller holds the lock.
func (s *Session) expireRound(gen uint64) (*block.Block, bool) {
	if !s.voting || s.roundGen != gen {
		return nil, false
	}

	if len(s.votes) > 0 {
		return s.concludeRound(), true
	}

	s.candidate = nil
	s.finalized = false
	s.endRound()

	return nil, false
}

// concludeRound stamps the winning hash on the candidate and closes the
// round. Caller holds the lock.
func (s *Session) concludeRound() *block.Block {
	s.candidate.Hash = s.tally()
	s.finalized = true
	s.endRound()

	res := *s.candidate
	return &res
}

// tally returns the hash with the greatest total weight. A peer without a
// weight counts once. Ties go to the hash that was received first.
func (s *Session) tally() string {
	weights := make(map[string]uint64)
	order := []string{}

	for _, v := range s.votes {
		if _, ok := weights[v.hash]; !ok {
			order = append(order, v.hash)
		}

		w := uint64(1)
		if p, ok := s.peers[v.voter]; ok && p.Weight > 0 {
			w = p.Weight
		}
		weights[v.hash] += w
	}

	var best string
	var bestWeight uint64
	for _, h := range order {
		if weights[h] > bestWeight {
			best = h
			bestWeight = weights[h]
		}
	}

	return best
}

// adoptBlock installs a block announced by another node. Blocks older than
// the current index are not adopted. Caller holds the lock.
func (s *Session) adoptBlock(b *block.Block) bool {
	if s.hasCurrent && b.Index < s.current {
		return false
	}

	if s.voting {
		s.endRound()
	}

	cp := *b
	s.candidate = &cp
	s.current = b.Index
	s.hasCurrent = true
	s.finalized = true

	return true
}

// registration is the outcome of a Register at the hole puncher.
type registration struct {
	// prev is the peer that held the slot, nil if the slot was empty or held
	// by the registering address itself.
	prev *PeerRecord

	// genesis is set the one time the registration count reaches the
	// threshold. targets are the peers to announce it to.
	genesis bool
	targets []PeerRecord
}

// register records rec as the newest registration. Caller holds the lock.
func (s *Session) register(rec PeerRecord, threshold int) registration {
	res := registration{}

	if s.slot != nil && s.slot.Addr != rec.Addr {
		prev := *s.slot
		res.prev = &prev
	}

	stored := s.upsertPeer(rec)
	slot := *stored
	s.slot = &slot
	s.registered[rec.Addr] = struct{}{}

	if threshold > 0 &&
		!s.genesisSent &&
		len(s.registered) >= threshold &&
		(!s.hasCurrent || s.current == 0) {

		s.genesisSent = true

		g := block.Genesis()
		s.candidate = g
		s.current = g.Index
		s.hasCurrent = true
		s.finalized = true

		res.genesis = true
		res.targets = s.peerList()
	}

	return res
}
