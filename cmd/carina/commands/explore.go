package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/lholznagel/carina/src/explore"
	"github.com/lholznagel/carina/src/net"
	"github.com/spf13/cobra"
)

// NewExploreCmd returns the command that crawls a network through its hole
// puncher
func NewExploreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "explore",
		Short:   "Report which peers know each other",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlagsLoadViper(cmd)
		},
		RunE: runExplore,
	}

	cmd.Flags().String("datadir", _config.Carina.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", "info", "debug, info, warn, error, fatal, panic")
	cmd.Flags().StringP("listen", "l", "0.0.0.0:0", "Listen IP:Port of the UDP socket")
	cmd.Flags().String("hole-puncher", _config.Carina.HolePuncher, "IP:Port of the hole puncher")
	cmd.Flags().Uint8("protocol-version", _config.Carina.ProtocolVersion, "Frame layout of outgoing messages, 1 or 2")
	cmd.Flags().Duration("wait", _config.Wait, "Time to wait for answers")

	return cmd
}

func runExplore(cmd *cobra.Command, args []string) error {
	logger := _config.Carina.Logger()

	trans, err := net.NewUDPTransport(_config.Carina.BindAddr, logger.WithField("prefix", "udp"))
	if err != nil {
		return err
	}
	defer trans.Close()

	explorer := explore.NewExplorer(trans, _config.Carina.HolePuncher, _config.Carina.ProtocolVersion, logger)

	report, err := explorer.Explore(context.Background(), _config.Wait)
	if err != nil {
		return err
	}

	for _, p := range report.Peers {
		switch {
		case !p.Answered:
			fmt.Printf("%s: no answer\n", p.Addr)
		case len(p.Missing) > 0:
			fmt.Printf("%s: missing %s\n", p.Addr, strings.Join(p.Missing, ", "))
		default:
			fmt.Printf("%s: ok\n", p.Addr)
		}
	}

	if !report.Complete() {
		return fmt.Errorf("%d peers, network is not fully connected", len(report.Network))
	}

	fmt.Printf("%d peers, all connected\n", len(report.Network))

	return nil
}
