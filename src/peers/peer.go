package peers

import (
	"github.com/lholznagel/carina/src/crypto"
)

// Peer is a known node.
type Peer struct {
	NetAddr string `yaml:"address" json:"address"`
	PubKey  string `yaml:"public_key,omitempty" json:"public_key,omitempty"`
	Moniker string `yaml:"name,omitempty" json:"name,omitempty"`
	Weight  uint64 `yaml:"weight,omitempty" json:"weight,omitempty"`
}

// NewPeer ...
func NewPeer(netAddr, pubKey, moniker string) *Peer {
	return &Peer{
		NetAddr: netAddr,
		PubKey:  pubKey,
		Moniker: moniker,
	}
}

// HasKey reports whether the peer carries key material.
func (p *Peer) HasKey() bool {
	return p.PubKey != ""
}

// Key decodes the public key.
func (p *Peer) Key() (*[crypto.KeySize]byte, error) {
	return crypto.DecodeKey(p.PubKey)
}

// ExcludePeer returns the position of the peer at addr in peers, or -1, and
// the other peers.
func ExcludePeer(peers []*Peer, addr string) (int, []*Peer) {
	index := -1
	otherPeers := make([]*Peer, 0, len(peers))
	for i, p := range peers {
		if p.NetAddr != addr {
			otherPeers = append(otherPeers, p)
		} else {
			index = i
		}
	}
	return index, otherPeers
}
