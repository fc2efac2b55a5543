package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/record"
)

// NewSelectCommand creates the select command.
func NewSelectCommand(rootOpts *RootOptions) *cobra.Command {
	var open bool

	cmd := &cobra.Command{
		Use:   "select <boat-id>",
		Short: "Select a boat and show it in the detail view",
		Long: `Publish a boat selection from the search results and print what the
detail view shows in response.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()
			return runSelect(cmd, s, args[0], open)
		},
	}

	cmd.Flags().BoolVar(&open, "open", false, "navigate to the boat's record page")
	return cmd
}

func runSelect(cmd *cobra.Command, s *session, boatID string, open bool) error {
	ctx := cmd.Context()

	list, err := s.app.NewSearchResults()
	if err != nil {
		return err
	}
	defer list.Close()

	detail, err := s.app.NewDetailTabs()
	if err != nil {
		return err
	}
	defer detail.Close()

	if err := list.SelectBoat(ctx, boatID); err != nil {
		return err
	}
	if err := detail.Wait(ctx); err != nil {
		return err
	}

	if !detail.HasSelection() {
		fmt.Fprintln(s.out, detail.PlaceholderLabel())
		return nil
	}
	if err := detail.State().Err; err != nil {
		return err
	}

	boat, _ := detail.Boat()
	heading(s.out, "%s [%s]", detail.BoatName(), detail.DetailsTabIconName())
	printBoats(s.out, []record.Record{boat})

	if open {
		return detail.NavigateToRecordViewPage(ctx)
	}
	return nil
}
