// Package peers defines the records a node keeps about other nodes and the
// directories that hold them.
//
// A peer is identified by the UDP address it was seen at. It optionally
// carries the base64 encoded curve25519 public key used to seal messages for
// it, a moniker, and a vote weight.
//
// The Directory interface is what the node consumes. InmemDirectory keeps
// records in memory; YAMLDirectory additionally mirrors them to a YAML file
// of the form
//
//	- address: 127.0.0.1:45002
//	  public_key: OYGxJI79O18BFSCx3QUVNryww5v4i8qC85sdcx6N1SQ=
//	- address: 127.0.0.1:45003
//	  public_key: /gfCzCrTj02YA+dAXCY2EODAYZFELeKH1bec5nenbU0=
package peers
