package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lholznagel/carina/src/carina"
	"github.com/lholznagel/carina/src/config"
	"github.com/lholznagel/carina/src/node"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts a peer
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run a peer",
		PreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(node.RolePeer)
		},
	}
	AddRunFlags(cmd, config.DefaultBindAddr)
	cmd.Flags().String("hole-puncher", _config.Carina.HolePuncher, "IP:Port of the hole puncher to register with")
	cmd.Flags().String("hole-puncher-key", _config.Carina.HolePuncherKey, "Base64 public key of the hole puncher")
	return cmd
}

//NewHolePuncherCmd returns the command that starts the rendezvous node
func NewHolePuncherCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "hole-puncher",
		Short:   "Run the hole puncher",
		PreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(node.RoleHolePuncher)
		},
	}
	AddRunFlags(cmd, config.DefaultHolePuncherBind)
	cmd.Flags().Int("genesis-threshold", _config.Carina.GenesisThreshold, "Registrations before the genesis block is announced, 0 disables it")
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runNode(role node.Role) error {
	engine := carina.NewCarina(&_config.Carina, role)

	if err := engine.Init(); err != nil {
		_config.Carina.Logger().WithError(err).Error("Cannot initialize engine")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := engine.Run(ctx)

	_config.Carina.Logger().Debug("Reacting to interrupt")
	engine.Node.Shutdown()

	return err
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds the flags shared by the run and hole-puncher commands
func AddRunFlags(cmd *cobra.Command, bindAddr string) {
	cmd.Flags().String("datadir", _config.Carina.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.Carina.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.Carina.LogFile, "File receiving a copy of the log output")
	cmd.Flags().String("moniker", _config.Carina.Moniker, "Optional name")
	cmd.Flags().String("secret-key", _config.Carina.SecretKey, "Base64 secret key, overrides the key file")
	cmd.Flags().String("peers", _config.Carina.PeersFile, "Peers file, defaults to peers.yml in the datadir")

	// Network
	cmd.Flags().StringP("listen", "l", bindAddr, "Listen IP:Port of the UDP socket")
	cmd.Flags().Uint8("protocol-version", _config.Carina.ProtocolVersion, "Frame layout of outgoing messages, 1 or 2")
	cmd.Flags().Int("workers", _config.Carina.Workers, "Goroutines processing datagrams, 0 for one per CPU")
	cmd.Flags().Duration("keepalive", _config.Carina.KeepAlive, "Interval between pings to known peers")
	cmd.Flags().Float64("rate-limit", _config.Carina.RateLimit, "Datagrams per second accepted from one address, 0 disables the limit")
	cmd.Flags().Int("rate-burst", _config.Carina.RateBurst, "Burst of datagrams accepted from one address")

	// Service
	cmd.Flags().StringP("service-listen", "s", _config.Carina.ServiceAddr, "Listen IP:Port for HTTP service")
	cmd.Flags().Bool("no-service", _config.Carina.NoService, "Disable HTTP service")

	// Store
	cmd.Flags().Bool("store", _config.Carina.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", _config.Carina.DatabaseDir, "Dabatabase directory")

	// Consensus
	cmd.Flags().Duration("round-timeout", _config.Carina.RoundTimeout, "Bound on a hash vote, 0 waits for every vote")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.Carina.SetDataDir(_config.Carina.DataDir)

	logFields := logrus.Fields{
		"carina.DataDir":         _config.Carina.DataDir,
		"carina.BindAddr":        _config.Carina.BindAddr,
		"carina.HolePuncher":     _config.Carina.HolePuncher,
		"carina.ServiceAddr":     _config.Carina.ServiceAddr,
		"carina.NoService":       _config.Carina.NoService,
		"carina.Store":           _config.Carina.Store,
		"carina.LogLevel":        _config.Carina.LogLevel,
		"carina.Moniker":         _config.Carina.Moniker,
		"carina.Workers":         _config.Carina.Workers,
		"carina.RoundTimeout":    _config.Carina.RoundTimeout,
		"carina.KeepAlive":       _config.Carina.KeepAlive,
		"carina.ProtocolVersion": _config.Carina.ProtocolVersion,
	}

	if _config.Carina.Store {
		logFields["carina.DatabaseDir"] = _config.Carina.DatabaseDir
	}

	_config.Carina.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/carina.toml (.json, .yaml also work)
	viper.SetConfigName("carina")               // name of config file (without extension)
	viper.AddConfigPath(_config.Carina.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Carina.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Carina.Logger().Debugf("No config file found in: %s", _config.Carina.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
