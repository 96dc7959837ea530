package node

import (
	"time"

	"github.com/lholznagel/carina/src/block"
	"github.com/lholznagel/carina/src/protocol"
	"github.com/sirupsen/logrus"
)

// SubmitCandidate runs a locally produced candidate through the same path as
// a BlockGen received from the network.
func (n *Node) SubmitCandidate(c *block.Block) {
	n.onPossibleBlock(c)
}

// onPossibleBlock opens a voting round for c and asks every known peer to
// hash it.
func (n *Node) onPossibleBlock(c *block.Block) {
	n.session.Lock()
	adm := n.session.admitCandidate(c)
	var targets []PeerRecord
	if adm == admitStarted {
		n.armRoundTimer()
		targets = n.session.peerList()
	}
	n.session.Unlock()

	logger := n.logger.WithFields(logrus.Fields{
		"index":     c.Index,
		"admission": adm.String(),
	})

	switch adm {
	case admitStarted:
		logger.WithField("peers", len(targets)).Debug("Voting round opened")
		n.metrics.observeRound("opened")
	case admitNoPeers:
		logger.Warn("No peers to vote on candidate")
		n.metrics.observeRound("no_peers")
		return
	case admitStale:
		logger.Debug("Stale candidate")
		n.metrics.observeRound("stale")
		return
	default:
		logger.Debug("Candidate ignored")
		return
	}

	req := &protocol.ValidateHashPayload{
		Index:     c.Index,
		Timestamp: c.Timestamp,
		Nonce:     c.Nonce,
		Prev:      c.Prev,
		Content:   c.Content,
	}
	n.broadcast(targets, protocol.HashVal, req)
}

// onValidateHash answers a hash request with this node's vote.
func (n *Node) onValidateHash(req *protocol.ValidateHashPayload, source string) error {
	hash := block.ComputeHash(req.Index, req.Content, req.Timestamp, req.Nonce, req.Prev)

	n.logger.WithFields(logrus.Fields{
		"index":  req.Index,
		"source": source,
	}).Debug("Validating hash")

	return n.Send(source, protocol.HashValAck, protocol.Ok, &protocol.ValidatedHashPayload{Hash: hash})
}

// onValidatedHash records a vote and finalizes the candidate once every known
// peer has voted.
func (n *Node) onValidatedHash(hash, source string) {
	n.session.Lock()
	found, done, err := n.session.addVote(source, hash)
	var targets []PeerRecord
	if done {
		targets = n.session.peerList()
	}
	n.session.Unlock()

	if err != nil {
		n.logger.WithError(err).WithField("source", source).Debug("Vote dropped")
		return
	}

	if done {
		n.metrics.observeRound("found")
		n.finalize(found, targets)
	}
}

// armRoundTimer starts the timeout of the round just opened. Caller holds the
// session lock.
func (n *Node) armRoundTimer() {
	if n.conf.RoundTimeout <= 0 {
		return
	}

	gen := n.session.roundGen
	n.session.roundTimer = time.AfterFunc(n.conf.RoundTimeout, func() {
		n.onRoundTimeout(gen)
	})
}

func (n *Node) onRoundTimeout(gen uint64) {
	n.session.Lock()
	found, ok := n.session.expireRound(gen)
	var targets []PeerRecord
	if ok {
		targets = n.session.peerList()
	}
	n.session.Unlock()

	if !ok {
		n.logger.WithField("round", gen).Debug("Round expired without votes")
		n.metrics.observeRound("expired")
		return
	}

	n.logger.WithField("index", found.Index).Debug("Round expired with partial votes")
	n.metrics.observeRound("timeout")
	n.finalize(found, targets)
}

// finalize announces b to targets and persists it.
func (n *Node) finalize(b *block.Block, targets []PeerRecord) {
	n.logger.WithFields(logrus.Fields{
		"index": b.Index,
		"hash":  b.Hash,
	}).Info("Block found")

	n.broadcast(targets, protocol.BlockFound, foundPayload(b))
	n.persist(b)
}

// onFoundBlock adopts a block announced by another node and stores it.
func (n *Node) onFoundBlock(b *block.Block) {
	n.session.Lock()
	adopted := n.session.adoptBlock(b)
	n.session.Unlock()

	n.logger.WithFields(logrus.Fields{
		"index":   b.Index,
		"adopted": adopted,
	}).Debug("Found block")

	n.persist(b)
}

// persist stores b in the background. Blocks already present are left alone.
func (n *Node) persist(b *block.Block) {
	job := func() {
		if err := n.store.Persist(b); err != nil {
			n.logger.WithError(err).WithField("index", b.Index).Debug("Persist block")
		}
	}

	if !n.GoFunc(job) {
		job()
	}
}

// broadcast sends the same payload to every target and returns how many
// sends succeeded.
func (n *Node) broadcast(targets []PeerRecord, event protocol.EventCode, p protocol.Payload) int {
	sent := 0
	for _, t := range targets {
		if err := n.Send(t.Addr, event, protocol.Ok, p); err != nil {
			n.logger.WithError(err).WithFields(logrus.Fields{
				"event":  event.String(),
				"target": t.Addr,
			}).Debug("Broadcast")
			continue
		}
		sent++
	}
	return sent
}

func foundPayload(b *block.Block) *protocol.FoundBlockPayload {
	return &protocol.FoundBlockPayload{
		Index:     b.Index,
		Timestamp: b.Timestamp,
		Nonce:     b.Nonce,
		Prev:      b.Prev,
		Hash:      b.Hash,
		Content:   b.Content,
	}
}

func blockFromFound(p *protocol.FoundBlockPayload) *block.Block {
	return &block.Block{
		Index:     p.Index,
		Timestamp: p.Timestamp,
		Nonce:     p.Nonce,
		Prev:      p.Prev,
		Hash:      p.Hash,
		Content:   p.Content,
	}
}

func blockFromPossible(p *protocol.PossibleBlockPayload) *block.Block {
	return &block.Block{
		Index:     p.Index,
		Timestamp: p.Timestamp,
		Nonce:     p.Nonce,
		Prev:      p.Prev,
		Hash:      p.Hash,
		Content:   p.Content,
	}
}
