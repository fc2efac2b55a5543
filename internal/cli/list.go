package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck"
	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/record"
)

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var boatType string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List boats",
		Long:  "List boats, optionally only those of one boat type.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()
			return runList(cmd, s, boatType)
		},
	}

	cmd.Flags().StringVarP(&boatType, "type", "t", "", "only boats of this boat type id")
	return cmd
}

func runList(cmd *cobra.Command, s *session, boatType string) error {
	ctx := cmd.Context()

	list, err := s.app.NewSearchResults()
	if err != nil {
		return err
	}
	defer list.Close()

	list.SearchBoats(ctx, boatType)
	if err := list.Wait(ctx); err != nil {
		return err
	}
	if err := list.State().Err; err != nil {
		return err
	}

	boats := list.Boats()
	if len(boats) == 0 {
		fmt.Fprintln(s.out, "no boats")
		return nil
	}
	heading(s.out, "%d boat(s)", len(boats))
	printBoats(s.out, boats)
	return nil
}

func printBoats(w io.Writer, boats []record.Record) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	header := []string{"ID", "TYPE"}
	for _, c := range fleetdeck.Columns {
		header = append(header, strings.ToUpper(c.Label))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, b := range boats {
		row := []string{b.ID, b.BoatTypeID}
		for _, c := range fleetdeck.Columns {
			row = append(row, c.Format(b))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}
