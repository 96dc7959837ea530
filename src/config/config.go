package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/lholznagel/carina/src/common"
	"github.com/lholznagel/carina/src/peers"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// secret key
	DefaultKeyfile = "priv_key"

	// DefaultPubKeyfile is the default name of the file containing the node's
	// public key
	DefaultPubKeyfile = "key.pub"

	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"
)

// Default configuration values.
const (
	DefaultLogLevel         = "debug"
	DefaultBindAddr         = "0.0.0.0:45000"
	DefaultHolePuncherBind  = "0.0.0.0:50000"
	DefaultServiceAddr      = "127.0.0.1:8000"
	DefaultNoService        = false
	DefaultStore            = false
	DefaultWorkers          = 0
	DefaultRoundTimeout     = 10 * time.Second
	DefaultKeepAlive        = 30 * time.Second
	DefaultRateLimit        = 200
	DefaultRateBurst        = 400
	DefaultProtocolVersion  = 1
	DefaultGenesisThreshold = 3
)

// Config contains all the configuration properties of a carina node.
type Config struct {
	// DataDir is the top-level directory containing carina configuration and
	// data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, receives a copy of the log output.
	LogFile string `mapstructure:"log-file"`

	// BindAddr is the local address:port of the UDP socket.
	BindAddr string `mapstructure:"listen"`

	// HolePuncher is the address:port of the rendezvous node. A peer
	// registers with it at startup.
	HolePuncher string `mapstructure:"hole-puncher"`

	// HolePuncherKey is the base64 public key of the rendezvous node. Without
	// it the peer cannot exchange sealed events, such as keep-alive pings,
	// with the rendezvous.
	HolePuncherKey string `mapstructure:"hole-puncher-key"`

	// SecretKey is a base64 secret key. It takes precedence over the key
	// file in the data directory.
	SecretKey string `mapstructure:"secret-key"`

	// PeersFile is the YAML file where known peers are kept. Defaults to
	// peers.yml in the data directory.
	PeersFile string `mapstructure:"peers"`

	// Store activates persistant storage.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// Workers is the number of goroutines processing datagrams. Zero uses one
	// per CPU.
	Workers int `mapstructure:"workers"`

	// RoundTimeout bounds a hash vote. Zero waits for every vote.
	RoundTimeout time.Duration `mapstructure:"round-timeout"`

	// KeepAlive is the interval of pings to known peers.
	KeepAlive time.Duration `mapstructure:"keepalive"`

	// RateLimit and RateBurst bound the datagrams accepted per second from
	// one source.
	RateLimit float64 `mapstructure:"rate-limit"`
	RateBurst int     `mapstructure:"rate-burst"`

	// ProtocolVersion selects the outbound frame layout, 1 or 2.
	ProtocolVersion uint8 `mapstructure:"protocol-version"`

	// GenesisThreshold is the number of registrations after which the hole
	// puncher announces the genesis block.
	GenesisThreshold int `mapstructure:"genesis-threshold"`

	// Moniker defines the friendly name of this node
	Moniker string `mapstructure:"moniker"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:          DefaultDataDir(),
		LogLevel:         DefaultLogLevel,
		BindAddr:         DefaultBindAddr,
		ServiceAddr:      DefaultServiceAddr,
		NoService:        DefaultNoService,
		Store:            DefaultStore,
		DatabaseDir:      DefaultDatabaseDir(),
		Workers:          DefaultWorkers,
		RoundTimeout:     DefaultRoundTimeout,
		KeepAlive:        DefaultKeepAlive,
		RateLimit:        DefaultRateLimit,
		RateBurst:        DefaultRateBurst,
		ProtocolVersion:  DefaultProtocolVersion,
		GenesisThreshold: DefaultGenesisThreshold,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t)
	return config
}

// SetDataDir sets the top-level carina directory, and updates the database
// directory if it is currently set to the default value. If the database
// directory is not currently the default, it means the user has explicitely set
// it to something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Keyfile returns the full path of the file containing the secret key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// PubKeyfile returns the full path of the file containing the public key.
func (c *Config) PubKeyfile() string {
	return filepath.Join(c.DataDir, DefaultPubKeyfile)
}

// Peersfile returns the path of the peer directory file.
func (c *Config) Peersfile() string {
	if c.PeersFile != "" {
		return c.PeersFile
	}
	return filepath.Join(c.DataDir, peers.DefaultPeersFile)
}

// Logger returns a formatted logrus Entry, with prefix set to "carina".
func (c *Config) Logger() *logrus.Entry {
	return c.BaseLogger().WithField("prefix", "carina")
}

// BaseLogger returns the logger behind Logger, creating it on first use. When
// LogFile is set, every entry is also written to that file.
func (c *Config) BaseLogger() *logrus.Logger {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			c.logger.Hooks.Add(lfshook.NewHook(
				c.LogFile,
				&logrus.JSONFormatter{},
			))
		}
	}
	return c.logger
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level carina config
// based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Carina")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Carina")
		} else {
			return filepath.Join(home, ".carina")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
