package commands

import (
	"github.com/spf13/cobra"
)

var (
	_config = NewDefaultCLIConfig()
)

//RootCmd is the root command for carina
var RootCmd = &cobra.Command{
	Use:              "carina",
	Short:            "carina peer-to-peer blockchain node",
	TraverseChildren: true,
}
