package commands

import (
	"time"

	"github.com/lholznagel/carina/src/config"
)

//CLIConfig contains configuration for the carina commands
type CLIConfig struct {
	Carina config.Config `mapstructure:",squash"`

	// Wait is how long explore waits for each round of answers
	Wait time.Duration `mapstructure:"wait"`
}

//NewDefaultCLIConfig creates a CLIConfig with default values
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		Carina: *config.NewDefaultConfig(),
		Wait:   2 * time.Second,
	}
}
