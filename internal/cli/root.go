// Package cli implements the fleetctl commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool

	settings config.Settings
}

// NewRootCommand creates the root command for fleetctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fleetctl",
		Short: "Browse and edit the boat fleet",
		Long: `fleetctl drives the fleetdeck widgets from the command line.

It lists boats, applies batches of inline edits, and publishes selections
to the detail view against the backend named in the config file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(opts.ConfigPath)
			if err != nil {
				return err
			}
			opts.settings = settings
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (yaml or json)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewEditCommand(opts))
	cmd.AddCommand(NewSelectCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))

	return cmd
}

// loadSettings reads the config file, if any, and applies FLEETDECK_*
// environment overrides on top.
func loadSettings(path string) (config.Settings, error) {
	cfg := config.New(nil)
	if path != "" {
		var err error
		if cfg, err = config.FromFile(path); err != nil {
			return config.Settings{}, fmt.Errorf("load config: %w", err)
		}
	}
	return config.LoadSettings(config.WithEnv(cfg, os.LookupEnv))
}
