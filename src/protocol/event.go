package protocol

import "fmt"

// EventCode is the first byte of every legacy frame. It selects the payload
// codec used for the rest of the datagram.
type EventCode uint8

const (
	// Ping asks a peer to answer with a Pong. Peers also use it to open a NAT
	// binding after the hole puncher introduced them.
	Ping EventCode = 0
	// Pong answers a Ping.
	Pong EventCode = 1

	// HolePuncherConn asks the hole puncher to introduce the sender to the
	// peer listed in the payload.
	HolePuncherConn EventCode = 48

	// GetPeers requests the list of peers the receiver knows about.
	GetPeers EventCode = 64
	// GetPeersAck answers GetPeers with a list of addresses.
	GetPeersAck EventCode = 65
	// Register announces a peer to the hole puncher.
	Register EventCode = 66
	// RegisterAck answers Register with the previously registered peer.
	RegisterAck EventCode = 67
	// PeerRegistering tells a registered peer that a new peer wants to talk to
	// it.
	PeerRegistering EventCode = 68

	// GetBlocks, GetBlocksAck and BlockData are part of the code space but no
	// node answers them.
	GetBlocks    EventCode = 128
	GetBlocksAck EventCode = 129
	// GetBlock requests a single stored block.
	GetBlock EventCode = 130
	// GetBlockAck answers GetBlock.
	GetBlockAck EventCode = 131
	BlockData   EventCode = 132
	// BlockGen carries a freshly mined block candidate.
	BlockGen EventCode = 133
	// BlockFound announces a block that won the hash vote.
	BlockFound EventCode = 134
	// HashVal asks a peer to recompute the hash of a candidate.
	HashVal EventCode = 135
	// HashValAck carries the hash computed by a peer.
	HashValAck EventCode = 136

	// ExploreNetwork is sent by the explorer tool. It is answered like GetPeers.
	ExploreNetwork EventCode = 240

	// NotAValidEvent stands for every byte that is not a known event code.
	NotAValidEvent EventCode = 255
)

var eventNames = map[EventCode]string{
	Ping:            "Ping",
	Pong:            "Pong",
	HolePuncherConn: "HolePuncherConn",
	GetPeers:        "GetPeers",
	GetPeersAck:     "GetPeersAck",
	Register:        "Register",
	RegisterAck:     "RegisterAck",
	PeerRegistering: "PeerRegistering",
	GetBlocks:       "GetBlocks",
	GetBlocksAck:    "GetBlocksAck",
	GetBlock:        "GetBlock",
	GetBlockAck:     "GetBlockAck",
	BlockData:       "BlockData",
	BlockGen:        "BlockGen",
	BlockFound:      "BlockFound",
	HashVal:         "HashVal",
	HashValAck:      "HashValAck",
	ExploreNetwork:  "ExploreNetwork",
}

// AsEnum maps a raw byte onto an EventCode. Unknown values map to
// NotAValidEvent.
func AsEnum(b byte) EventCode {
	e := EventCode(b)
	if _, ok := eventNames[e]; ok {
		return e
	}
	return NotAValidEvent
}

// AsNumber returns the wire value of the event code.
func (e EventCode) AsNumber() byte {
	return byte(e)
}

// Valid reports whether e is a known event code.
func (e EventCode) Valid() bool {
	_, ok := eventNames[e]
	return ok
}

func (e EventCode) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	if e == NotAValidEvent {
		return "NotAValidEvent"
	}
	return fmt.Sprintf("EventCode(%d)", uint8(e))
}

// HasStatus reports whether legacy frames of this event carry a status byte
// right after the event code.
func (e EventCode) HasStatus() bool {
	switch e {
	case RegisterAck, GetPeersAck, GetBlocksAck, GetBlockAck, HashValAck:
		return true
	}
	return false
}

// Sealed reports whether the body of this event is encrypted for the
// recipient. Bootstrap and discovery traffic travels in clear because the
// public key of the other side is not known yet.
func (e EventCode) Sealed() bool {
	switch e {
	case Register, RegisterAck, PeerRegistering, HolePuncherConn,
		GetPeers, GetPeersAck, ExploreNetwork, NotAValidEvent:
		return false
	}
	return true
}
