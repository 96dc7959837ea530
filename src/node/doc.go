// Package node implements the reactive component of a carina node.
//
// A node drains datagrams from its transport, decodes them into envelopes and
// runs the hooks registered for their event. The hooks of a node depend on
// its role.
//
// Hole Puncher
//
// The hole puncher is the rendezvous point of the network. It remembers the
// last peer that registered. When a new peer registers, the previous one is
// sent a PeerRegistering with the new peer's address and key, and the new
// peer receives a RegisterAck naming the previous one. Both then ping each
// other, which opens the NAT mappings on both sides. The first registrant is
// answered with status NoPeer. Once enough distinct peers have registered the
// hole puncher announces the genesis block, exactly once.
//
// Peers can ask the hole puncher for the addresses it knows (GetPeers) and
// for an introduction to any of them (HolePuncherConn).
//
// Hash Vote
//
// A peer receiving a candidate block (BlockGen) opens a voting round. It
// sends the block fields to every known peer in a HashVal, each peer answers
// with the hash it computed, and once every known peer has voted the hash
// with the greatest weight wins. Ties go to the hash received first. The
// winner is announced with BlockFound and stored. Candidates older than the
// current index reset a round in progress. A round may be bounded by a
// timeout, after which the votes received so far are tallied.
//
// All handlers share one Session guarded by a mutex. No lock is held across
// a send.
package node
