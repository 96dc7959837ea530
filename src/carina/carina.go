package carina

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/lholznagel/carina/src/config"
	"github.com/lholznagel/carina/src/crypto"
	"github.com/lholznagel/carina/src/net"
	"github.com/lholznagel/carina/src/node"
	"github.com/lholznagel/carina/src/peers"
	"github.com/lholznagel/carina/src/service"
	"github.com/lholznagel/carina/src/store"
	"github.com/sirupsen/logrus"
)

// Carina is a struct containing the key parts of a carina node
type Carina struct {
	Config    *config.Config
	Role      node.Role
	Node      *node.Node
	Transport net.Transport
	Store     store.BlockStore
	Peers     peers.Directory
	Service   *service.Service
	Keys      *crypto.KeyPair
	logger    *logrus.Entry
}

// NewCarina is a factory method to produce a Carina instance. The role picks
// the handlers the node runs.
func NewCarina(c *config.Config, role node.Role) *Carina {
	engine := &Carina{
		Config: c,
		Role:   role,
		logger: c.Logger(),
	}

	return engine
}

// Init initialises the carina engine. Components already set on the struct,
// such as an in-memory transport, are kept.
func (c *Carina) Init() error {
	if err := c.initKey(); err != nil {
		return err
	}

	if err := c.initPeers(); err != nil {
		return err
	}

	if err := c.initStore(); err != nil {
		return err
	}

	if err := c.initTransport(); err != nil {
		return err
	}

	if err := c.initNode(); err != nil {
		return err
	}

	if err := c.initService(); err != nil {
		return err
	}

	return nil
}

// Run starts the HTTP service, if any, and blocks on the node's main loop.
func (c *Carina) Run(ctx context.Context) error {
	if c.Service != nil {
		go c.Service.Serve()
	}

	return c.Node.Run(ctx)
}

func (c *Carina) initKey() error {
	if c.Keys != nil {
		return nil
	}

	if c.Config.SecretKey != "" {
		secret, err := crypto.DecodeKey(c.Config.SecretKey)
		if err != nil {
			return fmt.Errorf("secret-key: %v", err)
		}
		c.Keys = crypto.KeyPairFromSecret(secret)
		return nil
	}

	keyfile := crypto.NewSimpleKeyfile(c.Config.Keyfile())

	keys, err := keyfile.ReadKey()
	if err != nil {
		c.logger.WithError(err).Warn("Cannot read secret key from file")

		keys, err = Keygen(c.Config)
		if err != nil {
			c.logger.WithError(err).Error("Cannot generate a new key")
			return err
		}

		c.logger.WithField("public_key", keys.PublicBase64()).Info("Created a new key")
	}

	c.Keys = keys

	return nil
}

func (c *Carina) initPeers() error {
	if c.Peers != nil {
		return nil
	}

	directory, err := peers.NewYAMLDirectory(c.Config.Peersfile())
	if err != nil {
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"path":  directory.Path(),
		"peers": directory.Len(),
	}).Debug("Loaded peers")

	c.Peers = directory

	return nil
}

func (c *Carina) initStore() error {
	if c.Store != nil {
		return nil
	}

	if !c.Config.Store {
		c.Store = store.NewInmemStore()

		c.logger.Debug("created new in-mem store")

		return nil
	}

	c.logger.WithField("path", c.Config.DatabaseDir).Debug("Attempting to load or create database")

	s, err := store.NewBadgerStore(c.Config.DatabaseDir)
	if err != nil {
		return err
	}

	c.logger.WithField("blocks", s.Len()).Debug("Opened badger store")

	c.Store = s

	return nil
}

func (c *Carina) initTransport() error {
	if c.Transport != nil {
		return nil
	}

	transport, err := net.NewUDPTransport(c.Config.BindAddr, c.logger.WithField("prefix", "udp"))
	if err != nil {
		return err
	}

	c.Transport = transport

	return nil
}

// nodeConfig derives the runtime settings of the node from the global
// configuration.
func (c *Carina) nodeConfig() *node.Config {
	conf := node.DefaultConfig()

	conf.Role = c.Role
	conf.Moniker = c.Config.Moniker
	conf.ProtocolVersion = c.Config.ProtocolVersion
	conf.RoundTimeout = c.Config.RoundTimeout
	conf.KeepAlive = c.Config.KeepAlive
	conf.RateLimit = c.Config.RateLimit
	conf.RateBurst = c.Config.RateBurst
	conf.GenesisThreshold = c.Config.GenesisThreshold
	conf.Logger = c.Config.BaseLogger()

	conf.Workers = c.Config.Workers
	if conf.Workers <= 0 {
		conf.Workers = runtime.NumCPU()
	}

	if c.Role == node.RolePeer {
		conf.HolePuncherAddr = c.Config.HolePuncher
		conf.HolePuncherKey = c.Config.HolePuncherKey
	}

	return conf
}

func (c *Carina) initNode() error {
	c.Node = node.NewNode(
		c.nodeConfig(),
		c.Keys,
		c.Peers,
		c.Store,
		c.Transport,
	)

	if err := c.Node.Init(); err != nil {
		return fmt.Errorf("failed to initialize node: %s", err)
	}

	return nil
}

func (c *Carina) initService() error {
	if !c.Config.NoService && c.Config.ServiceAddr != "" {
		c.Service = service.NewService(c.Config.ServiceAddr, c.Node, c.logger.WithField("prefix", "service"))
	}
	return nil
}

// Keygen generates a key pair and writes it to the data directory: the
// secret key to priv_key and the public key to key.pub. An existing key is
// never overwritten.
func Keygen(c *config.Config) (*crypto.KeyPair, error) {
	keyfile := crypto.NewSimpleKeyfile(c.Keyfile())

	if _, err := os.Stat(c.Keyfile()); err == nil {
		return nil, fmt.Errorf("Another key already lives under %s", c.Keyfile())
	}

	keys, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	if err := keyfile.WriteKey(keys); err != nil {
		return nil, err
	}

	if err := os.WriteFile(c.PubKeyfile(), []byte(keys.PublicBase64()), 0644); err != nil {
		return nil, err
	}

	return keys, nil
}
