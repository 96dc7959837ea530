package peers

// Directory is the peer registry a node consults to resolve addresses to
// keys.
type Directory interface {
	// Lookup returns the peer registered under addr.
	Lookup(addr string) (*Peer, bool)
	// Upsert adds p or replaces the record with the same address.
	Upsert(p *Peer) error
	// Latest returns the most recently upserted peer.
	Latest() (*Peer, bool)
	// Peers returns all peers in insertion order.
	Peers() []*Peer
}
