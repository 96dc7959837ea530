package peers

import "sync"

// InmemDirectory is a Directory held in memory.
type InmemDirectory struct {
	l      sync.RWMutex
	byAddr map[string]*Peer
	order  []string
	latest string
}

// NewInmemDirectory returns a directory seeded with peers.
func NewInmemDirectory(peers ...*Peer) *InmemDirectory {
	d := &InmemDirectory{
		byAddr: make(map[string]*Peer),
	}
	for _, p := range peers {
		d.upsert(p)
	}
	return d
}

// Lookup implements Directory.
func (d *InmemDirectory) Lookup(addr string) (*Peer, bool) {
	d.l.RLock()
	defer d.l.RUnlock()

	p, ok := d.byAddr[addr]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

// Upsert implements Directory.
func (d *InmemDirectory) Upsert(p *Peer) error {
	d.l.Lock()
	defer d.l.Unlock()
	d.upsert(p)
	return nil
}

func (d *InmemDirectory) upsert(p *Peer) {
	cp := *p
	if _, ok := d.byAddr[p.NetAddr]; !ok {
		d.order = append(d.order, p.NetAddr)
	}
	d.byAddr[p.NetAddr] = &cp
	d.latest = p.NetAddr
}

// Latest implements Directory.
func (d *InmemDirectory) Latest() (*Peer, bool) {
	d.l.RLock()
	latest := d.latest
	d.l.RUnlock()

	if latest == "" {
		return nil, false
	}
	return d.Lookup(latest)
}

// Peers implements Directory.
func (d *InmemDirectory) Peers() []*Peer {
	d.l.RLock()
	defer d.l.RUnlock()

	res := make([]*Peer, 0, len(d.order))
	for _, addr := range d.order {
		cp := *d.byAddr[addr]
		res = append(res, &cp)
	}
	return res
}

// Len returns the number of peers.
func (d *InmemDirectory) Len() int {
	d.l.RLock()
	defer d.l.RUnlock()
	return len(d.order)
}
