package node

import (
	"context"
	"testing"
	"time"

	"github.com/lholznagel/carina/src/block"
	"github.com/lholznagel/carina/src/crypto"
	"github.com/lholznagel/carina/src/net"
	"github.com/lholznagel/carina/src/node/state"
	"github.com/lholznagel/carina/src/peers"
	"github.com/lholznagel/carina/src/protocol"
	"github.com/lholznagel/carina/src/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

// probe is a bare transport with a key pair, used to drive a node one
// datagram at a time.
type probe struct {
	t     *testing.T
	trans *net.InmemTransport
	keys  *crypto.KeyPair
}

func newProbe(t *testing.T) *probe {
	keys, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	_, trans := net.NewInmemTransport("")
	return &probe{t: t, trans: trans, keys: keys}
}

func (p *probe) addr() string {
	return p.trans.LocalAddr()
}

func (p *probe) asPeer() *peers.Peer {
	return peers.NewPeer(p.addr(), p.keys.PublicBase64(), "probe")
}

func (p *probe) send(n *Node, event protocol.EventCode, status protocol.StatusCode, payload protocol.Payload) {
	keys := &protocol.Keys{Local: p.keys.Secret, Remote: n.keys.Public}
	data, err := protocol.Encode(protocol.LegacyVersion, event, status, payload, keys)
	require.NoError(p.t, err)
	require.NoError(p.t, p.trans.SendTo(data, n.LocalAddr()))
}

// expect waits for the next datagram, checks its event and decodes it into
// out.
func (p *probe) expect(n *Node, event protocol.EventCode, out protocol.Payload) *protocol.Envelope {
	p.t.Helper()

	select {
	case d := <-p.trans.Consumer():
		keys := &protocol.Keys{Local: p.keys.Secret, Remote: n.keys.Public}
		env, err := protocol.Unpack(d.Data, keys)
		require.NoError(p.t, err)
		require.Equal(p.t, event, env.Event, "unexpected event from %s", d.Source)
		require.Equal(p.t, n.LocalAddr(), d.Source)
		if out != nil {
			require.NoError(p.t, env.Unmarshal(out))
		}
		return env
	case <-time.After(waitFor):
		p.t.Fatalf("%s: timeout waiting for %s", p.addr(), event)
	}
	return nil
}

func (p *probe) expectNothing() {
	p.t.Helper()

	select {
	case d := <-p.trans.Consumer():
		env, _ := protocol.Unpack(d.Data, nil)
		if env != nil {
			p.t.Fatalf("%s: unexpected %s", p.addr(), env.Event)
		}
		p.t.Fatalf("%s: unexpected datagram", p.addr())
	case <-time.After(200 * time.Millisecond):
	}
}

func newTestNode(t *testing.T, conf *Config, known ...*peers.Peer) (*Node, *net.InmemTransport) {
	keys, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	_, trans := net.NewInmemTransport("")

	node := NewNode(conf, keys, peers.NewInmemDirectory(known...), store.NewInmemStore(), trans)
	require.NoError(t, node.Init())

	return node, trans
}

func startNode(t *testing.T, node *Node) {
	ctx, cancel := context.WithCancel(context.Background())
	node.RunAsync(ctx)
	t.Cleanup(func() {
		node.Shutdown()
		cancel()
	})
}

func connect(node *Node, trans *net.InmemTransport, probes ...*probe) {
	all := []*net.InmemTransport{trans}
	for _, p := range probes {
		all = append(all, p.trans)
	}
	net.ConnectMesh(all...)
}

func holePuncherConfig(t *testing.T, threshold int) *Config {
	conf := TestConfig(t)
	conf.Role = RoleHolePuncher
	conf.Workers = 1
	conf.GenesisThreshold = threshold
	return conf
}

func peerConfig(t *testing.T) *Config {
	conf := TestConfig(t)
	conf.Workers = 1
	return conf
}

func TestHolePunchSequence(t *testing.T) {
	hp, trans := newTestNode(t, holePuncherConfig(t, 0))
	a, b, c := newProbe(t), newProbe(t), newProbe(t)
	connect(hp, trans, a, b, c)
	startNode(t, hp)

	a.send(hp, protocol.Register, protocol.Ok, &protocol.RegisterPayload{PublicKey: a.keys.Public[:], Name: "a"})
	env := a.expect(hp, protocol.RegisterAck, nil)
	assert.Equal(t, protocol.NoPeer, env.Status)

	b.send(hp, protocol.Register, protocol.Ok, &protocol.RegisterPayload{PublicKey: b.keys.Public[:], Name: "b"})

	notice := &protocol.PeerRegisteringPayload{}
	a.expect(hp, protocol.PeerRegistering, notice)
	assert.Equal(t, b.addr(), notice.Addr)
	assert.Equal(t, b.keys.Public[:], notice.PublicKey)

	ack := &protocol.RegisterAckPayload{}
	env = b.expect(hp, protocol.RegisterAck, ack)
	assert.Equal(t, protocol.Ok, env.Status)
	assert.Equal(t, a.addr(), ack.Addr)
	assert.Equal(t, a.keys.Public[:], ack.PublicKey)
	assert.Equal(t, hp.keys.Public[:], ack.Rendezvous)

	c.send(hp, protocol.Register, protocol.Ok, &protocol.RegisterPayload{PublicKey: c.keys.Public[:], Name: "c"})

	b.expect(hp, protocol.PeerRegistering, notice)
	assert.Equal(t, c.addr(), notice.Addr)

	c.expect(hp, protocol.RegisterAck, ack)
	assert.Equal(t, b.addr(), ack.Addr)

	a.expectNothing()

	stats := hp.GetStats()
	assert.Equal(t, c.addr(), stats["slot"])
	assert.Equal(t, "3", stats["num_peers"])
}

func TestReRegistrationFromSlot(t *testing.T) {
	hp, trans := newTestNode(t, holePuncherConfig(t, 0))
	a := newProbe(t)
	connect(hp, trans, a)
	startNode(t, hp)

	reg := &protocol.RegisterPayload{PublicKey: a.keys.Public[:]}

	a.send(hp, protocol.Register, protocol.Ok, reg)
	env := a.expect(hp, protocol.RegisterAck, nil)
	assert.Equal(t, protocol.NoPeer, env.Status)

	a.send(hp, protocol.Register, protocol.Ok, reg)
	env = a.expect(hp, protocol.RegisterAck, nil)
	assert.Equal(t, protocol.NoPeer, env.Status)
	a.expectNothing()
}

func TestGenesisOnce(t *testing.T) {
	hp, trans := newTestNode(t, holePuncherConfig(t, 3))
	probes := []*probe{newProbe(t), newProbe(t), newProbe(t), newProbe(t), newProbe(t)}
	connect(hp, trans, probes...)
	startNode(t, hp)

	for i, p := range probes {
		p.send(hp, protocol.Register, protocol.Ok, &protocol.RegisterPayload{PublicKey: p.keys.Public[:]})
		p.expect(hp, protocol.RegisterAck, nil)
		if i > 0 {
			probes[i-1].expect(hp, protocol.PeerRegistering, nil)
		}

		if i == 2 {
			for _, q := range probes[:3] {
				found := &protocol.FoundBlockPayload{}
				q.expect(hp, protocol.BlockFound, found)
				assert.Equal(t, uint64(0), found.Index)
				assert.Equal(t, block.GenesisContent, found.Content)
				assert.Equal(t, block.Genesis().Hash, found.Hash)
			}
		}
	}

	// the fourth and fifth registrations did not repeat it
	probes[4].expectNothing()
	for _, p := range probes[:4] {
		p.expectNothing()
	}

	assert.Eventually(t, func() bool {
		b, err := hp.GetBlock(0)
		return err == nil && b.Hash == block.Genesis().Hash
	}, waitFor, 10*time.Millisecond)
}

func TestHolePuncherConn(t *testing.T) {
	hp, trans := newTestNode(t, holePuncherConfig(t, 0))
	a, b := newProbe(t), newProbe(t)
	connect(hp, trans, a, b)
	startNode(t, hp)

	a.send(hp, protocol.Register, protocol.Ok, &protocol.RegisterPayload{PublicKey: a.keys.Public[:]})
	a.expect(hp, protocol.RegisterAck, nil)
	b.send(hp, protocol.Register, protocol.Ok, &protocol.RegisterPayload{PublicKey: b.keys.Public[:]})
	a.expect(hp, protocol.PeerRegistering, nil)
	b.expect(hp, protocol.RegisterAck, nil)

	list := &protocol.PeerListPayload{}
	b.send(hp, protocol.GetPeers, protocol.Ok, nil)
	b.expect(hp, protocol.GetPeersAck, list)
	assert.Equal(t, []string{a.addr()}, list.Addrs)

	b.send(hp, protocol.HolePuncherConn, protocol.Ok, &protocol.HolePuncherConnPayload{Addr: a.addr()})

	intro := &protocol.PeerRegisteringPayload{}
	a.expect(hp, protocol.PeerRegistering, intro)
	assert.Equal(t, b.addr(), intro.Addr)
	assert.Equal(t, b.keys.Public[:], intro.PublicKey)

	b.expect(hp, protocol.PeerRegistering, intro)
	assert.Equal(t, a.addr(), intro.Addr)
	assert.Equal(t, a.keys.Public[:], intro.PublicKey)

	// unknown targets are not introduced
	b.send(hp, protocol.HolePuncherConn, protocol.Ok, &protocol.HolePuncherConnPayload{Addr: "nowhere"})
	b.expectNothing()
}

func TestVoteQuorum(t *testing.T) {
	probes := []*probe{newProbe(t), newProbe(t), newProbe(t)}
	known := []*peers.Peer{}
	for _, p := range probes {
		known = append(known, p.asPeer())
	}

	node, trans := newTestNode(t, peerConfig(t), known...)
	connect(node, trans, probes...)
	startNode(t, node)

	c := candidate(5)
	probes[0].send(node, protocol.BlockGen, protocol.Ok, &protocol.PossibleBlockPayload{
		Index:     c.Index,
		Timestamp: c.Timestamp,
		Prev:      c.Prev,
		Content:   c.Content,
	})

	for _, p := range probes {
		req := &protocol.ValidateHashPayload{}
		p.expect(node, protocol.HashVal, req)
		assert.Equal(t, c.Index, req.Index)
		assert.Equal(t, c.Content, req.Content)
	}

	h1 := c.ComputeHash()
	h2 := block.ComputeHash(5, "forged", 0, 0, "")

	probes[0].send(node, protocol.HashValAck, protocol.Ok, &protocol.ValidatedHashPayload{Hash: h1})
	probes[1].send(node, protocol.HashValAck, protocol.Ok, &protocol.ValidatedHashPayload{Hash: h1})
	probes[2].send(node, protocol.HashValAck, protocol.Ok, &protocol.ValidatedHashPayload{Hash: h2})

	for _, p := range probes {
		found := &protocol.FoundBlockPayload{}
		p.expect(node, protocol.BlockFound, found)
		assert.Equal(t, h1, found.Hash)
		assert.Equal(t, uint64(5), found.Index)
	}

	st := node.Session().Stats()
	assert.False(t, st.Voting)
	assert.True(t, st.Finalized)
	assert.Equal(t, 0, st.Votes)

	assert.Eventually(t, func() bool {
		b, err := node.GetBlock(5)
		return err == nil && b.Hash == h1
	}, waitFor, 10*time.Millisecond)

	// a late vote does not produce a second announcement
	probes[2].send(node, protocol.HashValAck, protocol.Ok, &protocol.ValidatedHashPayload{Hash: h2})
	for _, p := range probes {
		p.expectNothing()
	}
}

func TestStaleCandidate(t *testing.T) {
	p := newProbe(t)
	node, trans := newTestNode(t, peerConfig(t), p.asPeer())
	connect(node, trans, p)
	startNode(t, node)

	node.SubmitCandidate(candidate(5))
	p.expect(node, protocol.HashVal, nil)
	require.True(t, node.Session().Stats().Voting)

	node.SubmitCandidate(candidate(3))
	p.expectNothing()

	node.SubmitCandidate(candidate(3))
	p.expectNothing()

	st := node.Session().Stats()
	assert.False(t, st.Voting)
	assert.Equal(t, uint64(5), st.Current)

	// the reset round no longer counts votes
	p.send(node, protocol.HashValAck, protocol.Ok, &protocol.ValidatedHashPayload{Hash: "h"})
	p.expectNothing()
}

func TestCandidateWithoutPeers(t *testing.T) {
	node, _ := newTestNode(t, peerConfig(t))

	node.SubmitCandidate(candidate(1))

	st := node.Session().Stats()
	assert.False(t, st.Voting)
	assert.False(t, st.HasCurrent)
}

func TestRoundTimeout(t *testing.T) {
	a, b := newProbe(t), newProbe(t)
	conf := peerConfig(t)
	conf.RoundTimeout = 100 * time.Millisecond

	node, trans := newTestNode(t, conf, a.asPeer(), b.asPeer())
	connect(node, trans, a, b)
	startNode(t, node)

	c := candidate(2)
	node.SubmitCandidate(c)
	a.expect(node, protocol.HashVal, nil)
	b.expect(node, protocol.HashVal, nil)

	a.send(node, protocol.HashValAck, protocol.Ok, &protocol.ValidatedHashPayload{Hash: c.ComputeHash()})

	for _, p := range []*probe{a, b} {
		found := &protocol.FoundBlockPayload{}
		p.expect(node, protocol.BlockFound, found)
		assert.Equal(t, c.ComputeHash(), found.Hash)
	}

	// without any vote the candidate is dropped and may be proposed again
	node.SubmitCandidate(candidate(3))
	a.expect(node, protocol.HashVal, nil)
	b.expect(node, protocol.HashVal, nil)

	assert.Eventually(t, func() bool {
		return !node.Session().Stats().Voting
	}, waitFor, 10*time.Millisecond)
	a.expectNothing()

	node.SubmitCandidate(candidate(3))
	a.expect(node, protocol.HashVal, nil)
	b.expect(node, protocol.HashVal, nil)
}

func TestValidateHash(t *testing.T) {
	p := newProbe(t)
	node, trans := newTestNode(t, peerConfig(t), p.asPeer())
	connect(node, trans, p)
	startNode(t, node)

	c := candidate(7)
	p.send(node, protocol.HashVal, protocol.Ok, &protocol.ValidateHashPayload{
		Index:     c.Index,
		Timestamp: c.Timestamp,
		Nonce:     c.Nonce,
		Prev:      c.Prev,
		Content:   c.Content,
	})

	res := &protocol.ValidatedHashPayload{}
	env := p.expect(node, protocol.HashValAck, res)
	assert.Equal(t, protocol.Ok, env.Status)
	assert.Equal(t, c.ComputeHash(), res.Hash)
}

func TestFoundBlockAndGetBlock(t *testing.T) {
	p := newProbe(t)
	node, trans := newTestNode(t, peerConfig(t), p.asPeer())
	connect(node, trans, p)
	startNode(t, node)

	g := block.Genesis()
	p.send(node, protocol.BlockFound, protocol.Ok, foundPayload(g))

	assert.Eventually(t, func() bool {
		_, err := node.GetBlock(0)
		return err == nil
	}, waitFor, 10*time.Millisecond)

	res := &protocol.FoundBlockPayload{}
	p.send(node, protocol.GetBlock, protocol.Ok, &protocol.GetBlockPayload{Index: 0})
	env := p.expect(node, protocol.GetBlockAck, res)
	assert.Equal(t, protocol.Ok, env.Status)
	assert.Equal(t, g.Hash, res.Hash)
	assert.Equal(t, g.Content, res.Content)

	p.send(node, protocol.GetBlock, protocol.Ok, &protocol.GetBlockPayload{Index: 9})
	env = p.expect(node, protocol.GetBlockAck, res)
	assert.Equal(t, protocol.NotFound, env.Status)

	st := node.Session().Stats()
	assert.True(t, st.Finalized)
	assert.Equal(t, uint64(0), st.Current)
}

func TestDropsBadDatagrams(t *testing.T) {
	p := newProbe(t)
	node, trans := newTestNode(t, peerConfig(t), p.asPeer())
	stranger := newProbe(t)
	connect(node, trans, p, stranger)
	startNode(t, node)

	require.NoError(t, p.trans.SendTo([]byte{}, node.LocalAddr()))
	require.NoError(t, p.trans.SendTo([]byte{200, 1, 2}, node.LocalAddr()))
	require.NoError(t, p.trans.SendTo([]byte{protocol.Ping.AsNumber(), 1, 2, 3}, node.LocalAddr()))

	// sealed for the node, but from an address it holds no key for
	stranger.send(node, protocol.Ping, protocol.Ok, nil)
	stranger.expectNothing()

	p.send(node, protocol.Ping, protocol.Ok, nil)
	p.expect(node, protocol.Pong, nil)

	assert.Eventually(t, func() bool {
		rec, ok := node.Session().Peer(p.addr())
		return ok && rec.Reachable
	}, waitFor, 10*time.Millisecond)

	assert.Equal(t, 4.0, droppedTotal(t, node, ""))
}

// droppedTotal sums the drop counter of node for reason, or for every reason
// when reason is empty.
func droppedTotal(t *testing.T, node *Node, reason string) float64 {
	families, err := node.Metrics().Registry().Gather()
	require.NoError(t, err)

	dropped := 0.0
	for _, mf := range families {
		if mf.GetName() != "carina_datagrams_dropped_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			if reason != "" {
				match := false
				for _, l := range m.GetLabel() {
					if l.GetName() == "reason" && l.GetValue() == reason {
						match = true
					}
				}
				if !match {
					continue
				}
			}
			dropped += m.GetCounter().GetValue()
		}
	}
	return dropped
}

func TestRateLimit(t *testing.T) {
	p := newProbe(t)
	conf := peerConfig(t)
	conf.RateLimit = 10
	conf.RateBurst = 2
	node, trans := newTestNode(t, conf, p.asPeer())
	connect(node, trans, p)
	startNode(t, node)

	for i := 0; i < 5; i++ {
		p.send(node, protocol.Ping, protocol.Ok, nil)
	}

	p.expect(node, protocol.Pong, nil)
	p.expect(node, protocol.Pong, nil)
	p.expectNothing()

	assert.Equal(t, 3.0, droppedTotal(t, node, "rate_limited"))

	// the bucket refilled while nothing was sent
	p.send(node, protocol.Ping, protocol.Ok, nil)
	p.expect(node, protocol.Pong, nil)

	assert.Equal(t, 3.0, droppedTotal(t, node, "rate_limited"))
}

func TestPeersIntroducedThroughHolePuncher(t *testing.T) {
	hp, hpTrans := newTestNode(t, holePuncherConfig(t, 0))

	peerConf := func() *Config {
		conf := peerConfig(t)
		conf.HolePuncherAddr = hp.LocalAddr()
		conf.HolePuncherKey = hp.keys.PublicBase64()
		return conf
	}

	a, aTrans := newTestNode(t, peerConf())
	b, bTrans := newTestNode(t, peerConf())
	net.ConnectMesh(hpTrans, aTrans, bTrans)

	assert.Equal(t, state.Registering, a.GetState())

	startNode(t, hp)
	startNode(t, a)

	assert.Eventually(t, func() bool {
		return a.GetState() == state.Running && hp.Session().Stats().Slot == a.LocalAddr()
	}, waitFor, 10*time.Millisecond)

	startNode(t, b)

	reachable := func(n *Node, addr string) func() bool {
		return func() bool {
			rec, ok := n.Session().Peer(addr)
			return ok && rec.Reachable && rec.PublicKey != nil
		}
	}

	assert.Eventually(t, reachable(a, b.LocalAddr()), waitFor, 10*time.Millisecond)
	assert.Eventually(t, reachable(b, a.LocalAddr()), waitFor, 10*time.Millisecond)
	assert.Equal(t, state.Running, b.GetState())
}

func TestGenesisReachesPeerWithoutHolePuncherKey(t *testing.T) {
	hp, hpTrans := newTestNode(t, holePuncherConfig(t, 1))

	conf := peerConfig(t)
	conf.HolePuncherAddr = hp.LocalAddr()
	a, aTrans := newTestNode(t, conf)
	net.ConnectMesh(hpTrans, aTrans)

	startNode(t, hp)
	startNode(t, a)

	assert.Eventually(t, func() bool {
		b, err := a.GetBlock(0)
		return err == nil && b.Hash == block.Genesis().Hash
	}, waitFor, 10*time.Millisecond)

	assert.Equal(t, hp.keys.Public, a.holePuncherKey.Load())
}

func TestRegisterAckFromKeylessPeer(t *testing.T) {
	hp := newProbe(t)
	conf := peerConfig(t)
	conf.HolePuncherAddr = hp.addr()
	node, trans := newTestNode(t, conf)
	connect(node, trans, hp)
	startNode(t, node)

	hp.expect(node, protocol.Register, nil)

	// the previous registrant sent no key, so it cannot be pinged
	ack := &protocol.RegisterAckPayload{Addr: "10.0.0.9:45000", Rendezvous: hp.keys.Public[:]}
	hp.send(node, protocol.RegisterAck, protocol.Ok, ack)

	hp.expect(node, protocol.GetPeers, nil)

	_, ok := node.Session().Peer("10.0.0.9:45000")
	assert.True(t, ok)
	assert.Equal(t, state.Running, node.GetState())
}
