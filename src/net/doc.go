// Package net implements the datagram transports used by carina nodes.
//
// A Transport hands every received datagram, together with the address it
// came from, to a consumer channel, and sends raw datagrams to an address
// with best-effort semantics. There are two implementations:
//
// - UDP: a single bound UDP socket, used in production. Hole punching relies
// on all traffic, inbound and outbound, going through this one socket so that
// the NAT mapping seen by the hole puncher is the one peers reach.
//
// - Inmem: an in-memory transport used for testing. Transports are wired
// together with Connect; datagrams to unknown addresses are dropped.
package net
