// Package config defines the configuration for a carina node.
//
// Regardless of how carina is started, directly from Go code or as a
// standalone process from the command line, it uses the Config object defined
// in this package to store and forward configuration options. On top of these
// configuration options, carina relies on a data directory, defined by
// Config.DataDir, where it expects to find a few additional files:
//
//  priv_key // the base64 secret key of the node (cf. carina keygen).
//  key.pub // the base64 public key, handed to the operators of other nodes.
//  peers.yml // the peers this node learned about, rewritten as it learns more.
//  carina.toml // (optional) the same options as the command line flags.
package config
