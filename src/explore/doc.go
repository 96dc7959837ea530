// Package explore implements a crawler reporting how well the peers of a
// network know each other.
//
// The explorer asks the hole puncher for every address it knows
// (ExploreNetwork), then asks each of those peers for its own list
// (GetPeers). A healthy network is one where every peer answers and lists
// every other peer.
package explore
