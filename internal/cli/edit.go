package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/edit"
	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/record"
)

// ErrSaveFailed is returned when the backend rejects an edit batch. The
// reason has already been printed.
var ErrSaveFailed = errors.New("save failed")

// NewEditCommand creates the edit command.
func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <boat-id> <field=value>...",
		Short: "Edit boat fields as one batch",
		Long: `Stage one or more field edits for a boat and save them in a single batch.

Editable fields: Name, Length__c, Price__c, Description__c.
Either every edit is saved or none is.`,
		Example: `  fleetctl edit boat-1 Price__c=500
  fleetctl edit boat-2 Name="Albatross II" Length__c=30`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()
			return runEdit(cmd, s, args[0], args[1:])
		},
	}
	return cmd
}

func runEdit(cmd *cobra.Command, s *session, boatID string, assignments []string) error {
	ctx := cmd.Context()

	list, err := s.app.NewSearchResults()
	if err != nil {
		return err
	}
	defer list.Close()

	list.SearchBoats(ctx, "")
	if err := list.Wait(ctx); err != nil {
		return err
	}

	for _, a := range assignments {
		field, value, ok := strings.Cut(a, "=")
		if !ok || field == "" {
			return fmt.Errorf("invalid edit %q: want FIELD=VALUE", a)
		}
		if err := list.RecordEdit(boatID, field, value); err != nil {
			return err
		}
	}

	out, err := list.HandleSave(ctx)
	if err != nil {
		var saveErr *edit.SaveError
		if errors.As(err, &saveErr) {
			return ErrSaveFailed
		}
		return err
	}

	s.logger.Debug("edits saved",
		slog.String("status", out.Status.String()),
		slog.Int("edits", out.Edits.Len()),
	)
	for _, b := range list.Boats() {
		if b.ID == boatID {
			printBoats(s.out, []record.Record{b})
			break
		}
	}
	return nil
}
