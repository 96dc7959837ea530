package explore

import (
	"context"
	"errors"
	gonet "net"
	"sort"
	"sync"
	"time"

	"github.com/lholznagel/carina/src/hooks"
	"github.com/lholznagel/carina/src/net"
	"github.com/lholznagel/carina/src/protocol"
	"github.com/sirupsen/logrus"
)

// ErrNoAnswer is returned when the hole puncher does not send its peer list
// in time.
var ErrNoAnswer = errors.New("hole puncher did not answer")

// PeerView is what one peer reported about the network.
type PeerView struct {
	Addr     string
	Answered bool
	Known    []string
	Missing  []string
}

// Report is the result of a crawl.
type Report struct {
	Network []string
	Peers   []PeerView
}

// Complete reports whether every peer answered and knows every other peer.
func (r *Report) Complete() bool {
	for _, p := range r.Peers {
		if !p.Answered || len(p.Missing) > 0 {
			return false
		}
	}
	return true
}

// Explorer crawls a network from the outside. It only speaks the plain
// discovery events and therefore needs no key.
type Explorer struct {
	sync.Mutex

	trans       net.Transport
	holePuncher string
	version     uint8
	table       *hooks.Table[*Explorer]
	logger      *logrus.Entry

	network   []string
	networkCh chan struct{}
	views     map[string][]string
}

// NewExplorer ...
func NewExplorer(trans net.Transport, holePuncher string, version uint8, logger *logrus.Entry) *Explorer {
	e := &Explorer{
		trans:       trans,
		holePuncher: resolveTarget(holePuncher, logger),
		version:     version,
		table:       hooks.NewTable[*Explorer](logger),
		logger:      logger,
		networkCh:   make(chan struct{}),
		views:       make(map[string][]string),
	}

	e.table.RegisterFunc(protocol.GetPeersAck, handlePeerList)

	return e
}

// resolveTarget returns addr in the form datagram sources take, so that a
// hostname matches the address the answer comes from. Addresses that are not
// UDP addresses, such as in-memory ones, are kept as they are.
func resolveTarget(addr string, logger *logrus.Entry) string {
	udpAddr, err := gonet.ResolveUDPAddr("udp", addr)
	if err != nil {
		logger.WithError(err).WithField("addr", addr).Debug("Keeping unresolved hole puncher address")
		return addr
	}
	return udpAddr.String()
}

// Send implements hooks.Sender.
func (e *Explorer) Send(target string, event protocol.EventCode, status protocol.StatusCode, p protocol.Payload) error {
	data, err := protocol.Encode(e.version, event, status, p, nil)
	if err != nil {
		return err
	}
	return e.trans.SendTo(data, target)
}

// Explore asks the hole puncher for the network, then asks every peer for
// the peers it knows and waits for their answers during wait.
func (e *Explorer) Explore(ctx context.Context, wait time.Duration) (*Report, error) {
	ctx, cancel := context.WithCancel(ctx)

	e.trans.Listen()
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.listen(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	if err := e.Send(e.holePuncher, protocol.ExploreNetwork, protocol.Ok, nil); err != nil {
		return nil, err
	}

	select {
	case <-e.networkCh:
	case <-time.After(wait):
		return nil, ErrNoAnswer
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	e.Lock()
	network := append([]string{}, e.network...)
	e.Unlock()

	e.logger.WithField("peers", len(network)).Info("Crawling network")

	for _, addr := range network {
		if err := e.Send(addr, protocol.GetPeers, protocol.Ok, nil); err != nil {
			e.logger.WithError(err).WithField("peer", addr).Warn("GetPeers")
		}
	}

	select {
	case <-time.After(wait):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return e.report(network), nil
}

func (e *Explorer) listen(ctx context.Context) {
	for {
		select {
		case d, ok := <-e.trans.Consumer():
			if !ok {
				return
			}
			env, err := protocol.Unpack(d.Data, nil)
			if err != nil {
				e.logger.WithError(err).WithField("source", d.Source).Debug("Dropping datagram")
				continue
			}
			e.table.Dispatch(e, &hooks.Message{
				Envelope: env,
				Source:   d.Source,
				Sender:   e,
			})
		case <-ctx.Done():
			return
		}
	}
}

func handlePeerList(e *Explorer, m *hooks.Message) error {
	list := &protocol.PeerListPayload{}
	if err := m.Decode(list); err != nil {
		return err
	}

	e.Lock()
	defer e.Unlock()

	if m.Source == e.holePuncher {
		if e.network == nil {
			e.network = list.Addrs
			if e.network == nil {
				e.network = []string{}
			}
			close(e.networkCh)
		}
		return nil
	}

	e.views[m.Source] = list.Addrs

	return nil
}

// report compares what each peer knows with the network seen by the hole
// puncher.
func (e *Explorer) report(network []string) *Report {
	e.Lock()
	defer e.Unlock()

	r := &Report{Network: network}

	for _, addr := range network {
		view := PeerView{Addr: addr}

		known, ok := e.views[addr]
		if ok {
			view.Answered = true
			view.Known = append([]string{}, known...)
			sort.Strings(view.Known)

			set := make(map[string]bool, len(known))
			for _, k := range known {
				set[k] = true
			}
			for _, other := range network {
				if other != addr && !set[other] {
					view.Missing = append(view.Missing, other)
				}
			}
		}

		r.Peers = append(r.Peers, view)
	}

	return r
}
