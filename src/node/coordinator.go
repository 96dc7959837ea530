package node

import (
	"fmt"

	"github.com/lholznagel/carina/src/block"
	"github.com/lholznagel/carina/src/crypto"
	"github.com/lholznagel/carina/src/peers"
	"github.com/lholznagel/carina/src/protocol"
	"github.com/sirupsen/logrus"
)

// onRegister pairs the registering peer with the previous registrant. The
// previous registrant learns about the new peer first, then the new peer is
// told who came before it.
func (n *Node) onRegister(req *protocol.RegisterPayload, source string) error {
	rec := PeerRecord{
		Addr:      source,
		Moniker:   req.Name,
		Reachable: true,
	}
	if req.PublicKey != nil {
		k, err := crypto.ToKey(req.PublicKey)
		if err != nil {
			return err
		}
		rec.PublicKey = k
	}

	n.session.Lock()
	reg := n.session.register(rec, n.conf.GenesisThreshold)
	n.session.Unlock()

	n.logger.WithFields(logrus.Fields{
		"source":  source,
		"name":    req.Name,
		"paired":  reg.prev != nil,
		"genesis": reg.genesis,
	}).Info("Register")

	n.remember(rec)

	if reg.prev == nil {
		ack := &protocol.RegisterAckPayload{Rendezvous: n.keys.Public[:]}
		if err := n.Send(source, protocol.RegisterAck, protocol.NoPeer, ack); err != nil {
			return err
		}
	} else {
		notice := &protocol.PeerRegisteringPayload{
			Addr:      source,
			PublicKey: req.PublicKey,
		}
		if err := n.Send(reg.prev.Addr, protocol.PeerRegistering, protocol.Ok, notice); err != nil {
			n.logger.WithError(err).WithField("target", reg.prev.Addr).Warn("Notify previous peer")
		}

		ack := &protocol.RegisterAckPayload{
			Addr:       reg.prev.Addr,
			PublicKey:  keyBytes(reg.prev.PublicKey),
			Rendezvous: n.keys.Public[:],
		}
		if err := n.Send(source, protocol.RegisterAck, protocol.Ok, ack); err != nil {
			return err
		}
	}

	if reg.genesis {
		g := block.Genesis()
		n.logger.WithField("peers", len(reg.targets)).Info("Announcing genesis block")
		n.finalize(g, reg.targets)
	}

	return nil
}

// onHolePuncherConn introduces the requester and the target to each other so
// that both open a mapping in their NAT towards the other.
func (n *Node) onHolePuncherConn(req *protocol.HolePuncherConnPayload, source string) error {
	if req.Addr == source {
		return nil
	}

	requester, ok := n.session.Peer(source)
	if !ok {
		return fmt.Errorf("requester %s: %w", source, errUnknownPeer)
	}

	target, ok := n.session.Peer(req.Addr)
	if !ok {
		return fmt.Errorf("target %s: %w", req.Addr, errUnknownPeer)
	}

	n.logger.WithFields(logrus.Fields{
		"source": source,
		"target": target.Addr,
	}).Debug("Hole punch")

	toTarget := &protocol.PeerRegisteringPayload{
		Addr:      requester.Addr,
		PublicKey: keyBytes(requester.PublicKey),
	}
	if err := n.Send(target.Addr, protocol.PeerRegistering, protocol.Ok, toTarget); err != nil {
		return err
	}

	toRequester := &protocol.PeerRegisteringPayload{
		Addr:      target.Addr,
		PublicKey: keyBytes(target.PublicKey),
	}
	return n.Send(source, protocol.PeerRegistering, protocol.Ok, toRequester)
}

// remember writes rec to the peer directory.
func (n *Node) remember(rec PeerRecord) {
	p := peers.NewPeer(rec.Addr, "", rec.Moniker)
	if rec.PublicKey != nil {
		p.PubKey = crypto.EncodeKey(rec.PublicKey[:])
	}
	p.Weight = rec.Weight

	if err := n.directory.Upsert(p); err != nil {
		n.logger.WithError(err).WithField("peer", rec.Addr).Warn("Saving peer")
	}
}

func keyBytes(k *[crypto.KeySize]byte) []byte {
	if k == nil {
		return nil
	}
	return k[:]
}
