package node

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lholznagel/carina/src/block"
	"github.com/lholznagel/carina/src/crypto"
	"github.com/lholznagel/carina/src/hooks"
	"github.com/lholznagel/carina/src/net"
	"github.com/lholznagel/carina/src/node/state"
	"github.com/lholznagel/carina/src/peers"
	"github.com/lholznagel/carina/src/protocol"
	"github.com/lholznagel/carina/src/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Node defines a carina node
type Node struct {
	state.Manager

	conf   *Config
	logger *logrus.Entry

	keys           *crypto.KeyPair
	holePuncherKey atomic.Pointer[[crypto.KeySize]byte]

	session   *Session
	table     *hooks.Table[*Node]
	directory peers.Directory
	store     store.BlockStore

	trans net.Transport
	netCh <-chan net.Datagram

	limiter *sourceLimiter
	metrics *Metrics

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	runWG        sync.WaitGroup

	start time.Time
}

// NewNode is a factory method that returns a Node instance
func NewNode(conf *Config,
	keys *crypto.KeyPair,
	directory peers.Directory,
	store store.BlockStore,
	trans net.Transport,
) *Node {
	logger := conf.Logger.WithFields(logrus.Fields{
		"prefix": string(conf.Role),
		"addr":   trans.LocalAddr(),
	})

	session := newSession()

	node := Node{
		conf:       conf,
		logger:     logger,
		keys:       keys,
		session:    session,
		table:      hooks.NewTable[*Node](logger),
		directory:  directory,
		store:      store,
		trans:      trans,
		netCh:      trans.Consumer(),
		metrics:    NewMetrics(session),
		shutdownCh: make(chan struct{}),
		start:      time.Now(),
	}

	if conf.RateLimit > 0 {
		node.limiter = newSourceLimiter(conf.RateLimit, conf.RateBurst)
	}

	return &node
}

// Init loads known peers and the last block, and registers the handlers of
// the node's role.
func (n *Node) Init() error {
	if n.conf.HolePuncherKey != "" {
		k, err := crypto.DecodeKey(n.conf.HolePuncherKey)
		if err != nil {
			return fmt.Errorf("hole puncher key: %v", err)
		}
		n.holePuncherKey.Store(k)
	}

	n.session.Lock()
	for _, p := range n.directory.Peers() {
		if p.NetAddr == n.LocalAddr() || p.NetAddr == n.conf.HolePuncherAddr {
			continue
		}
		rec := PeerRecord{
			Addr:    p.NetAddr,
			Moniker: p.Moniker,
			Weight:  p.Weight,
		}
		if p.HasKey() {
			if k, err := p.Key(); err == nil {
				rec.PublicKey = k
			} else {
				n.logger.WithError(err).WithField("peer", p.NetAddr).Warn("Bad peer key")
			}
		}
		n.session.upsertPeer(rec)
	}
	if n.conf.Role == RoleHolePuncher {
		if latest, ok := n.directory.Latest(); ok {
			if rec, ok := n.session.peers[latest.NetAddr]; ok {
				slot := *rec
				n.session.slot = &slot
			}
		}
	}
	if last, err := n.store.Last(); err == nil {
		n.session.candidate = last
		n.session.current = last.Index
		n.session.hasCurrent = true
		n.session.finalized = true
	}
	n.session.Unlock()

	n.registerHandlers()

	if n.conf.Role == RoleHolePuncher || n.conf.HolePuncherAddr == "" {
		n.logger.Debug("Nothing to register with => Running")
		n.SetState(state.Running)
	} else {
		n.logger.Debug("Registering")
		n.SetState(state.Registering)
	}

	return nil
}

// RunAsync calls Run as a separate thread
func (n *Node) RunAsync(ctx context.Context) {
	n.logger.Debug("runasync")

	n.runWG.Add(1)
	go func() {
		defer n.runWG.Done()
		n.run(ctx)
	}()
}

// Run invokes the main loop of the node. It returns when ctx is cancelled or
// the node is shut down.
func (n *Node) Run(ctx context.Context) error {
	n.runWG.Add(1)
	defer n.runWG.Done()
	return n.run(ctx)
}

func (n *Node) run(ctx context.Context) error {
	n.trans.Listen()

	g, ctx := errgroup.WithContext(ctx)

	workers := n.conf.Workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			n.work(ctx)
			return nil
		})
	}

	if n.conf.KeepAlive > 0 {
		g.Go(func() error {
			n.keepAlive(ctx)
			return nil
		})
	}

	if n.GetState() == state.Registering {
		n.register()
	}

	return g.Wait()
}

func (n *Node) work(ctx context.Context) {
	for {
		select {
		case d, ok := <-n.netCh:
			if !ok {
				return
			}
			n.processDatagram(d)
		case <-ctx.Done():
			return
		case <-n.shutdownCh:
			return
		}
	}
}

// keepAlive pings every known peer and the hole puncher at a fixed interval,
// keeping NAT mappings open. While registering it repeats the registration.
func (n *Node) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(n.conf.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n.GetState() == state.Registering {
				n.register()
			}
			targets := n.session.Peers()
			if n.conf.HolePuncherAddr != "" && n.holePuncherKey.Load() != nil {
				targets = append(targets, PeerRecord{Addr: n.conf.HolePuncherAddr})
			}
			n.broadcast(targets, protocol.Ping, nil)
		case <-ctx.Done():
			return
		case <-n.shutdownCh:
			return
		}
	}
}

func (n *Node) register() {
	req := &protocol.RegisterPayload{
		PublicKey: n.keys.Public[:],
		Name:      n.conf.Moniker,
	}

	if err := n.Send(n.conf.HolePuncherAddr, protocol.Register, protocol.Ok, req); err != nil {
		n.logger.WithError(err).Error("Register")
	}
}

// processDatagram decodes one datagram and runs the hooks of its event.
// Frames that fail to decode are logged and dropped.
func (n *Node) processDatagram(d net.Datagram) {
	if n.limiter != nil && !n.limiter.allow(d.Source) {
		n.metrics.observeDrop("rate_limited")
		return
	}

	h, err := protocol.ReadHeader(d.Data)
	if err != nil {
		n.dropped(d.Source, err)
		return
	}

	var keys *protocol.Keys
	if h.Event.Sealed() {
		keys = n.keysFor(d.Source)
	}

	env, err := protocol.Unpack(d.Data, keys)
	if err != nil {
		n.dropped(d.Source, err)
		return
	}

	start := time.Now()

	n.table.Dispatch(n, &hooks.Message{
		Envelope: env,
		Source:   d.Source,
		Sender:   n,
	})

	n.metrics.observeDispatch(env.Event, start)
}

func (n *Node) dropped(source string, err error) {
	reason := "malformed"
	var pe protocol.ParseError
	if errors.As(err, &pe) {
		reason = pe.Type().String()
	}

	n.logger.WithError(err).WithField("source", source).Debug("Dropping datagram")
	n.metrics.observeDrop(reason)
}

// Send encodes and sends one event to target, sealing it when the event
// requires it. It implements hooks.Sender.
func (n *Node) Send(target string, event protocol.EventCode, status protocol.StatusCode, p protocol.Payload) error {
	env, err := protocol.NewEnvelope(n.conf.ProtocolVersion, event, status, p)
	if err != nil {
		return err
	}

	var keys *protocol.Keys
	if event.Sealed() {
		keys = n.keysFor(target)
		if keys == nil {
			return fmt.Errorf("%s to %s: %w", event, target, errNoKey)
		}
	}

	data, err := env.Marshal(keys)
	if err != nil {
		return err
	}

	if err := n.trans.SendTo(data, target); err != nil {
		return err
	}

	n.metrics.observeSend(event)

	return nil
}

// keysFor returns the key pair used to talk to addr, or nil when the remote
// key is unknown.
func (n *Node) keysFor(addr string) *protocol.Keys {
	var remote *[crypto.KeySize]byte

	if rec, ok := n.session.Peer(addr); ok && rec.PublicKey != nil {
		remote = rec.PublicKey
	} else if p, ok := n.directory.Lookup(addr); ok && p.HasKey() {
		if k, err := p.Key(); err == nil {
			remote = k
		}
	} else if addr == n.conf.HolePuncherAddr {
		remote = n.holePuncherKey.Load()
	}

	if remote == nil {
		return nil
	}

	return &protocol.Keys{
		Local:  n.keys.Secret,
		Remote: remote,
	}
}

// Shutdown shuts down the node
func (n *Node) Shutdown() {
	n.shutdownOnce.Do(func() {
		n.logger.Debug("Shutdown")

		n.SetState(state.Shutdown)

		close(n.shutdownCh)

		n.runWG.Wait()

		n.session.Lock()
		n.session.endRound()
		n.session.Unlock()

		n.WaitRoutines()

		// transport and store are closed once all background persists are done
		n.trans.Close()

		n.store.Close()
	})
}

// GetStats returns stats
func (n *Node) GetStats() map[string]string {
	st := n.session.Stats()

	timeElapsed := time.Since(n.start)

	s := map[string]string{
		"state":       n.GetState().String(),
		"role":        string(n.conf.Role),
		"moniker":     n.conf.Moniker,
		"addr":        n.LocalAddr(),
		"public_key":  n.keys.PublicBase64(),
		"num_peers":   strconv.Itoa(st.Peers),
		"current":     strconv.FormatUint(st.Current, 10),
		"has_current": strconv.FormatBool(st.HasCurrent),
		"finalized":   strconv.FormatBool(st.Finalized),
		"voting":      strconv.FormatBool(st.Voting),
		"votes":       strconv.Itoa(st.Votes),
		"blocks":      strconv.Itoa(n.store.Len()),
		"uptime":      timeElapsed.Truncate(time.Second).String(),
	}

	if n.conf.Role == RoleHolePuncher {
		s["slot"] = st.Slot
		s["registered"] = strconv.Itoa(st.Registered)
	}

	return s
}

// GetBlock returns a stored block
func (n *Node) GetBlock(index uint64) (*block.Block, error) {
	return n.store.Get(index)
}

// GetPeers returns the peers known to the node
func (n *Node) GetPeers() []*peers.Peer {
	res := []*peers.Peer{}
	for _, rec := range n.session.Peers() {
		p := peers.NewPeer(rec.Addr, "", rec.Moniker)
		if rec.PublicKey != nil {
			p.PubKey = crypto.EncodeKey(rec.PublicKey[:])
		}
		p.Weight = rec.Weight
		res = append(res, p)
	}
	return res
}

// LocalAddr returns the address the node's transport is bound to
func (n *Node) LocalAddr() string {
	return n.trans.LocalAddr()
}

// Session returns the node's shared state
func (n *Node) Session() *Session {
	return n.session
}

// Metrics returns the node's collectors
func (n *Node) Metrics() *Metrics {
	return n.metrics
}
