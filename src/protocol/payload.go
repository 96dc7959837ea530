package protocol

// Payload is the body of an envelope. Every variant knows its legacy
// fixed-offset layout; the versioned layout is derived from the struct tags.
type Payload interface {
	MarshalLegacy() ([]byte, error)
	UnmarshalLegacy(data []byte) error
}

// EmptyPayload is used by events without a body (Ping, Pong, GetPeers,
// ExploreNetwork). Its legacy encoding is a single zero byte.
type EmptyPayload struct{}

// MarshalLegacy ...
func (p *EmptyPayload) MarshalLegacy() ([]byte, error) {
	return []byte{0}, nil
}

// UnmarshalLegacy accepts any body.
func (p *EmptyPayload) UnmarshalLegacy(data []byte) error {
	return nil
}

// RegisterPayload is sent by a peer to the hole puncher.
type RegisterPayload struct {
	PublicKey []byte `codec:"public_key"`
	Name      string `codec:"name"`
}

// MarshalLegacy ...
func (p *RegisterPayload) MarshalLegacy() ([]byte, error) {
	w := &fieldWriter{}
	w.key(p.PublicKey)
	w.tail(p.Name)
	return w.bytes()
}

// UnmarshalLegacy ...
func (p *RegisterPayload) UnmarshalLegacy(data []byte) error {
	r := newFieldReader(data)
	p.PublicKey = r.key("public_key")
	p.Name = r.tail()
	return r.finish()
}

// RegisterAckPayload answers a registration with the peer registered before
// the sender. With status NoPeer Addr and PublicKey are empty. Rendezvous is
// the public key of the hole puncher itself, so the new peer can open the
// sealed events it sends later. Legacy frames carry it as an optional
// trailing key.
type RegisterAckPayload struct {
	Addr       string `codec:"addr"`
	PublicKey  []byte `codec:"public_key"`
	Rendezvous []byte `codec:"rendezvous_key,omitempty"`
}

// MarshalLegacy ...
func (p *RegisterAckPayload) MarshalLegacy() ([]byte, error) {
	w := &fieldWriter{}
	w.fixed("addr", p.Addr, AddrWidth)
	w.key(p.PublicKey)
	if p.Rendezvous != nil {
		w.key(p.Rendezvous)
	}
	return w.bytes()
}

// UnmarshalLegacy ...
func (p *RegisterAckPayload) UnmarshalLegacy(data []byte) error {
	r := newFieldReader(data)
	p.Addr = r.fixed("addr", AddrWidth)
	p.PublicKey = r.key("public_key")
	if len(data) == AddrWidth+2*KeyWidth {
		p.Rendezvous = r.key("rendezvous_key")
	}
	return r.done()
}

// PeerRegisteringPayload tells an already registered peer about a newcomer.
type PeerRegisteringPayload struct {
	Addr      string `codec:"addr"`
	PublicKey []byte `codec:"public_key"`
}

// MarshalLegacy ...
func (p *PeerRegisteringPayload) MarshalLegacy() ([]byte, error) {
	w := &fieldWriter{}
	w.fixed("addr", p.Addr, AddrWidth)
	w.key(p.PublicKey)
	return w.bytes()
}

// UnmarshalLegacy ...
func (p *PeerRegisteringPayload) UnmarshalLegacy(data []byte) error {
	r := newFieldReader(data)
	p.Addr = r.fixed("addr", AddrWidth)
	p.PublicKey = r.key("public_key")
	return r.done()
}

// HolePuncherConnPayload names the peer the sender wants to be introduced to.
type HolePuncherConnPayload struct {
	Addr string `codec:"addr"`
}

// MarshalLegacy ...
func (p *HolePuncherConnPayload) MarshalLegacy() ([]byte, error) {
	w := &fieldWriter{}
	w.fixed("addr", p.Addr, AddrWidth)
	return w.bytes()
}

// UnmarshalLegacy ...
func (p *HolePuncherConnPayload) UnmarshalLegacy(data []byte) error {
	r := newFieldReader(data)
	p.Addr = r.fixed("addr", AddrWidth)
	return r.done()
}

// PeerListPayload is the body of GetPeersAck: a run of fixed-width
// addresses. An empty list has an empty body.
type PeerListPayload struct {
	Addrs []string `codec:"addrs"`
}

// MarshalLegacy ...
func (p *PeerListPayload) MarshalLegacy() ([]byte, error) {
	w := &fieldWriter{}
	for _, a := range p.Addrs {
		w.fixed("addr", a, AddrWidth)
	}
	return w.bytes()
}

// UnmarshalLegacy ...
func (p *PeerListPayload) UnmarshalLegacy(data []byte) error {
	if len(data)%AddrWidth != 0 {
		return NewParseError(FieldParse, GetPeersAck,
			"peer list of %d bytes is not a multiple of %d", len(data), AddrWidth)
	}
	p.Addrs = nil
	r := newFieldReader(data)
	for i := 0; i < len(data)/AddrWidth; i++ {
		p.Addrs = append(p.Addrs, r.fixed("addr", AddrWidth))
	}
	return r.done()
}
