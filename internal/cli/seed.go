package cli

import (
	"github.com/spf13/cobra"

	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/record"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed <file>",
		Short: "Load boats from a YAML file",
		Long: `Load boats from a YAML file into the configured backend. Existing boats
with the same id are replaced.

File layout:

  boats:
    - id: boat-1
      name: Sea Breeze
      boat_type_id: sail
      length: 32
      price: 45000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()
			return runSeed(cmd, s, args[0])
		},
	}
	return cmd
}

func runSeed(cmd *cobra.Command, s *session, path string) error {
	boats, err := record.LoadSeedFile(path)
	if err != nil {
		return err
	}
	if err := record.Seed(cmd.Context(), s.backend, boats); err != nil {
		return err
	}
	green.Fprintf(s.out, "✓ seeded %d boat(s) into %s backend\n", len(boats), s.settings.Backend)
	return nil
}
