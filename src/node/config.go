package node

import (
	"runtime"
	"testing"
	"time"

	"github.com/lholznagel/carina/src/common"
	"github.com/lholznagel/carina/src/protocol"
	"github.com/sirupsen/logrus"
)

// Role selects the handler set a node runs.
type Role string

const (
	// RolePeer takes part in hash votes and stores blocks.
	RolePeer Role = "peer"
	// RoleHolePuncher is the rendezvous node introducing peers to each other.
	RoleHolePuncher Role = "hole-puncher"
)

// Config holds the runtime settings of a Node.
type Config struct {
	Role Role `mapstructure:"role"`

	// HolePuncherAddr and HolePuncherKey locate the rendezvous node. Only used
	// by peers.
	HolePuncherAddr string `mapstructure:"hole-puncher"`
	HolePuncherKey  string `mapstructure:"hole-puncher-key"`

	Moniker string `mapstructure:"moniker"`

	// ProtocolVersion is the frame layout used for outbound messages. Inbound
	// frames of either version are accepted.
	ProtocolVersion uint8 `mapstructure:"protocol-version"`

	// Workers is the number of goroutines draining the socket.
	Workers int `mapstructure:"workers"`

	// RoundTimeout bounds a hash vote. Zero waits forever.
	RoundTimeout time.Duration `mapstructure:"round-timeout"`

	// KeepAlive is the interval between pings to known peers. Zero disables
	// them.
	KeepAlive time.Duration `mapstructure:"keepalive"`

	// RateLimit is the number of datagrams per second accepted from one
	// source address, with bursts of RateBurst. Zero disables limiting.
	RateLimit float64 `mapstructure:"rate-limit"`
	RateBurst int     `mapstructure:"rate-burst"`

	// GenesisThreshold is the number of registrations after which the hole
	// puncher announces the genesis block.
	GenesisThreshold int `mapstructure:"genesis-threshold"`

	Logger *logrus.Logger
}

// DefaultConfig ...
func DefaultConfig() *Config {
	logger := logrus.New()
	logger.Level = logrus.DebugLevel

	return &Config{
		Role:             RolePeer,
		ProtocolVersion:  protocol.LegacyVersion,
		Workers:          runtime.NumCPU(),
		RoundTimeout:     10 * time.Second,
		KeepAlive:        30 * time.Second,
		RateLimit:        200,
		RateBurst:        400,
		GenesisThreshold: 3,
		Logger:           logger,
	}
}

// TestConfig returns a config logging to t, with timers disabled so that
// tests drive every transition themselves.
func TestConfig(t testing.TB) *Config {
	config := DefaultConfig()
	config.Workers = 2
	config.RoundTimeout = 0
	config.KeepAlive = 0
	config.RateLimit = 0
	config.Logger = common.NewTestLogger(t)
	return config
}
