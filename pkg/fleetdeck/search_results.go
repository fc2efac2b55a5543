package fleetdeck

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/edit"
	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/notify"
	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/observability"
	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/query"
	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/record"
	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/selection"
)

// BoatList is the list query type used by SearchResults.
type BoatList = query.Query[record.Filter, []record.Record]

// SearchResults is the editable boat list. It searches by boat type,
// publishes the boat the user picks, and saves inline edits as a batch.
//
// Busy transitions from searches, saves and refreshes are reported to
// OnLoading listeners as notify.Loading and notify.DoneLoading.
type SearchResults struct {
	id       string
	boats    *BoatList
	pipeline *edit.Pipeline
	busy     *notify.BusyTracker
	coord    *selection.Coordinator
	logger   *slog.Logger
}

// NewSearchResults creates a search results widget connected to the app's
// bus. Nothing is fetched until SearchBoats.
func (a *App) NewSearchResults() (*SearchResults, error) {
	id := newWidgetID("boat-search-results")
	logger := observability.EnrichLogger(a.logger, id, "search_results")

	s := &SearchResults{
		id:     id,
		busy:   notify.NewBusyTracker(),
		logger: logger,
	}

	svc := a.svc
	s.boats = query.New(func(ctx context.Context, f record.Filter) ([]record.Record, error) {
		return svc.ListRecords(ctx, f)
	},
		query.WithName("boats"),
		query.WithLogger(logger),
		query.WithMetrics(a.metrics),
		query.WithSpans(a.spans),
		query.WithTimeout(a.fetchTimeout),
	)

	s.pipeline = edit.New(svc, s.boats, a.notifier, s.busy,
		edit.WithLogger(logger),
		edit.WithMetrics(a.metrics),
		edit.WithSpans(a.spans),
		edit.WithTimeout(a.saveTimeout),
	)

	// The list only tracks which boat is highlighted; it has no detail
	// query to rebind.
	coord, err := selection.New(a.bus, selection.BinderFunc(func(context.Context, string) {}), id,
		selection.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("connect search results: %w", err)
	}
	s.coord = coord

	return s, nil
}

// ID returns the widget's subscriber identity.
func (s *SearchResults) ID() string {
	return s.id
}

// OnLoading registers a listener for busy transitions.
func (s *SearchResults) OnLoading(l notify.LoadingListener) {
	s.busy.OnLoading(l)
}

// SearchBoats lists boats of boatTypeID, or all boats when it is empty.
// Loading is emitted immediately and DoneLoading once the fetch settles.
func (s *SearchResults) SearchBoats(ctx context.Context, boatTypeID string) {
	end := s.busy.Begin()
	s.boats.Bind(ctx, record.Filter{BoatTypeID: boatTypeID})

	go func() {
		defer end()
		if err := s.boats.Wait(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("search did not settle", slog.String("error", err.Error()))
		}
	}()
}

// Refresh discards staged edits, re-fetches the current search and waits
// for it.
func (s *SearchResults) Refresh(ctx context.Context) error {
	return s.pipeline.Refresh(ctx)
}

// Wait blocks until the current fetch settles.
func (s *SearchResults) Wait(ctx context.Context) error {
	return s.boats.Wait(ctx)
}

// Boats returns the most recently fetched boats.
func (s *SearchResults) Boats() []record.Record {
	return s.boats.State().Data
}

// State returns the list query state.
func (s *SearchResults) State() query.State[record.Filter, []record.Record] {
	return s.boats.State()
}

// OnChange registers a render callback for list changes.
func (s *SearchResults) OnChange(fn func(query.State[record.Filter, []record.Record])) (cancel func()) {
	return s.boats.OnChange(fn)
}

// RecordEdit stages an inline edit.
func (s *SearchResults) RecordEdit(recordID, field string, value any) error {
	return s.pipeline.RecordEdit(recordID, field, value)
}

// DraftValues returns the staged edits.
func (s *SearchResults) DraftValues() record.EditSet {
	return s.pipeline.Edits()
}

// CancelEdits discards the staged edits.
func (s *SearchResults) CancelEdits() error {
	return s.pipeline.Cancel()
}

// HandleSave saves the staged edits and, on success, reloads the list.
func (s *SearchResults) HandleSave(ctx context.Context) (edit.Outcome, error) {
	out, err := s.pipeline.Save(ctx)
	if err != nil {
		return out, err
	}
	s.logger.Debug("save handled", slog.String("status", out.Status.String()))
	return out, nil
}

// SelectBoat highlights boatID and publishes it to every widget.
func (s *SearchResults) SelectBoat(ctx context.Context, boatID string) error {
	if _, err := s.coord.Select(ctx, boatID); err != nil {
		return err
	}
	return nil
}

// SelectedBoatID returns the highlighted boat, which follows selections
// made by any widget.
func (s *SearchResults) SelectedBoatID() string {
	return s.coord.Selected()
}

// IsBusy reports whether a search, save or refresh is outstanding.
func (s *SearchResults) IsBusy() bool {
	return s.busy.Busy()
}

// Close disconnects the widget, discards staged edits and abandons any
// outstanding fetch.
func (s *SearchResults) Close() {
	s.coord.Disconnect()
	s.pipeline.Close()
	s.boats.Close()
}
