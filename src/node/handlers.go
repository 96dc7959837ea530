package node

import (
	"github.com/lholznagel/carina/src/crypto"
	"github.com/lholznagel/carina/src/hooks"
	"github.com/lholznagel/carina/src/node/state"
	"github.com/lholznagel/carina/src/peers"
	"github.com/lholznagel/carina/src/protocol"
	"github.com/sirupsen/logrus"
)

// registerHandlers fills the hook table with the handlers of the node's role.
func (n *Node) registerHandlers() {
	t := n.table

	t.RegisterFunc(protocol.Ping, handlePing)
	t.RegisterFunc(protocol.Pong, handlePong)
	t.RegisterFunc(protocol.GetPeers, handleGetPeers)
	t.RegisterFunc(protocol.ExploreNetwork, handleGetPeers)

	switch n.conf.Role {
	case RoleHolePuncher:
		t.RegisterFunc(protocol.Register, handleRegister)
		t.RegisterFunc(protocol.HolePuncherConn, handleHolePuncherConn)
	default:
		t.RegisterFunc(protocol.RegisterAck, handleRegisterAck)
		t.RegisterFunc(protocol.PeerRegistering, handlePeerRegistering)
		t.RegisterFunc(protocol.GetPeersAck, handleGetPeersAck)
		t.RegisterFunc(protocol.BlockGen, handleBlockGen)
		t.RegisterFunc(protocol.HashVal, handleHashVal)
		t.RegisterFunc(protocol.HashValAck, handleHashValAck)
		t.RegisterFunc(protocol.BlockFound, handleBlockFound)
		t.RegisterFunc(protocol.GetBlock, handleGetBlock)
	}
}

func handlePing(n *Node, m *hooks.Message) error {
	n.markReachable(m.Source)
	return m.Reply(protocol.Pong, protocol.Ok, nil)
}

func handlePong(n *Node, m *hooks.Message) error {
	n.markReachable(m.Source)
	return nil
}

func handleGetPeers(n *Node, m *hooks.Message) error {
	_, others := peers.ExcludePeer(n.GetPeers(), m.Source)

	addrs := make([]string, 0, len(others))
	for _, p := range others {
		addrs = append(addrs, p.NetAddr)
	}
	return m.Reply(protocol.GetPeersAck, protocol.Ok, &protocol.PeerListPayload{Addrs: addrs})
}

func handleRegister(n *Node, m *hooks.Message) error {
	req := &protocol.RegisterPayload{}
	if err := m.Decode(req); err != nil {
		return err
	}
	return n.onRegister(req, m.Source)
}

func handleHolePuncherConn(n *Node, m *hooks.Message) error {
	req := &protocol.HolePuncherConnPayload{}
	if err := m.Decode(req); err != nil {
		return err
	}
	return n.onHolePuncherConn(req, m.Source)
}

func handleRegisterAck(n *Node, m *hooks.Message) error {
	ack := &protocol.RegisterAckPayload{}
	if err := m.Decode(ack); err != nil {
		return err
	}

	if m.Source == n.conf.HolePuncherAddr && ack.Rendezvous != nil {
		n.learnHolePuncherKey(ack.Rendezvous)
	}

	if n.GetState() == state.Registering {
		n.SetState(state.Running)
	}

	if m.Status() == protocol.Ok {
		if err := n.introduce(ack.Addr, ack.PublicKey, ""); err != nil {
			n.logger.WithError(err).WithField("peer", ack.Addr).Warn("Introduce previous peer")
		}
	} else {
		n.logger.WithField("status", m.Status().String()).Info("Registered without peer")
	}

	return m.Reply(protocol.GetPeers, protocol.Ok, nil)
}

// learnHolePuncherKey records the key announced by the hole puncher unless
// one was configured.
func (n *Node) learnHolePuncherKey(raw []byte) {
	k, err := crypto.ToKey(raw)
	if err != nil {
		n.logger.WithError(err).Warn("Bad hole puncher key")
		return
	}

	if n.holePuncherKey.CompareAndSwap(nil, k) {
		n.logger.WithField("public_key", crypto.EncodeKey(raw)).Debug("Learned hole puncher key")
		return
	}

	if *n.holePuncherKey.Load() != *k {
		n.logger.Warn("Hole puncher announced a key different from the configured one")
	}
}

func handlePeerRegistering(n *Node, m *hooks.Message) error {
	req := &protocol.PeerRegisteringPayload{}
	if err := m.Decode(req); err != nil {
		return err
	}
	return n.introduce(req.Addr, req.PublicKey, "")
}

func handleGetPeersAck(n *Node, m *hooks.Message) error {
	list := &protocol.PeerListPayload{}
	if err := m.Decode(list); err != nil {
		return err
	}

	for _, addr := range list.Addrs {
		if addr == "" || addr == n.LocalAddr() || addr == n.conf.HolePuncherAddr {
			continue
		}
		if _, ok := n.session.Peer(addr); ok {
			continue
		}
		if n.conf.HolePuncherAddr == "" {
			n.logger.WithField("peer", addr).Debug("No hole puncher to reach peer")
			continue
		}

		req := &protocol.HolePuncherConnPayload{Addr: addr}
		if err := n.Send(n.conf.HolePuncherAddr, protocol.HolePuncherConn, protocol.Ok, req); err != nil {
			n.logger.WithError(err).WithField("peer", addr).Debug("HolePuncherConn")
		}
	}
	return nil
}

func handleBlockGen(n *Node, m *hooks.Message) error {
	req := &protocol.PossibleBlockPayload{}
	if err := m.Decode(req); err != nil {
		return err
	}
	n.onPossibleBlock(blockFromPossible(req))
	return nil
}

func handleHashVal(n *Node, m *hooks.Message) error {
	req := &protocol.ValidateHashPayload{}
	if err := m.Decode(req); err != nil {
		return err
	}
	return n.onValidateHash(req, m.Source)
}

func handleHashValAck(n *Node, m *hooks.Message) error {
	res := &protocol.ValidatedHashPayload{}
	if err := m.Decode(res); err != nil {
		return err
	}
	n.onValidatedHash(res.Hash, m.Source)
	return nil
}

func handleBlockFound(n *Node, m *hooks.Message) error {
	res := &protocol.FoundBlockPayload{}
	if err := m.Decode(res); err != nil {
		return err
	}
	n.onFoundBlock(blockFromFound(res))
	return nil
}

func handleGetBlock(n *Node, m *hooks.Message) error {
	req := &protocol.GetBlockPayload{}
	if err := m.Decode(req); err != nil {
		return err
	}

	b, err := n.store.Get(req.Index)
	if err != nil {
		n.logger.WithError(err).WithField("index", req.Index).Debug("GetBlock")
		return m.Reply(protocol.GetBlockAck, protocol.NotFound, &protocol.FoundBlockPayload{Index: req.Index})
	}

	return m.Reply(protocol.GetBlockAck, protocol.Ok, foundPayload(b))
}

// introduce records a peer learned from the hole puncher and pings it, which
// opens the NAT mapping on this side.
func (n *Node) introduce(addr string, key []byte, moniker string) error {
	if addr == "" || addr == n.LocalAddr() {
		return nil
	}

	rec := PeerRecord{
		Addr:    addr,
		Moniker: moniker,
	}
	if key != nil {
		k, err := crypto.ToKey(key)
		if err != nil {
			return err
		}
		rec.PublicKey = k
	}

	n.session.Lock()
	stored := *n.session.upsertPeer(rec)
	n.session.Unlock()

	n.logger.WithFields(logrus.Fields{
		"peer":    addr,
		"has_key": stored.PublicKey != nil,
	}).Debug("New peer")

	n.remember(stored)

	return n.Send(addr, protocol.Ping, protocol.Ok, nil)
}

func (n *Node) markReachable(addr string) {
	n.session.Lock()
	defer n.session.Unlock()

	if p, ok := n.session.peers[addr]; ok {
		p.Reachable = true
	}
}
