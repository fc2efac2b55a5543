package fleetdeck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/notify"
	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/observability"
	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/query"
	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/record"
	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/selection"
)

// DetailsTabIcon is shown on the details tab once a boat is loaded.
const DetailsTabIcon = "utility:anchor"

// Tabs of the detail widget.
const (
	TabDetails   = "details"
	TabReviews   = "reviews"
	TabAddReview = "add_review"
)

// Navigation action for the record page.
const ActionView = "view"

var (
	// ErrNoSelection is returned by actions that need a selected boat.
	ErrNoSelection = errors.New("no boat selected")

	// ErrNoNavigator is returned when the app has no navigation surface.
	ErrNoNavigator = errors.New("no navigator configured")
)

// BoatDetail is the detail query type used by DetailTabs.
type BoatDetail = query.Query[string, record.Record]

// DetailTabs shows the selected boat. It follows selections published by
// any widget; with nothing selected it shows a placeholder instead of
// fetching.
type DetailTabs struct {
	id        string
	detail    *BoatDetail
	coord     *selection.Coordinator
	navigator notify.Navigator
	labels    Labels
	logger    *slog.Logger

	mu             sync.Mutex
	activeTab      string
	refreshReviews func(ctx context.Context) error
}

// NewDetailTabs creates a detail widget subscribed to selections.
func (a *App) NewDetailTabs() (*DetailTabs, error) {
	id := newWidgetID("boat-detail-tabs")
	logger := observability.EnrichLogger(a.logger, id, "detail_tabs")

	d := &DetailTabs{
		id:        id,
		navigator: a.navigator,
		labels:    a.labels,
		logger:    logger,
		activeTab: TabDetails,
	}

	svc := a.svc
	d.detail = query.New(func(ctx context.Context, boatID string) (record.Record, error) {
		boats, err := svc.ListRecords(ctx, record.Filter{RecordID: boatID})
		if err != nil {
			return record.Record{}, err
		}
		if len(boats) == 0 {
			return record.Record{}, fmt.Errorf("%w: %s", record.ErrNotFound, boatID)
		}
		return boats[0], nil
	},
		query.WithName("boat_detail"),
		query.WithLogger(logger),
		query.WithMetrics(a.metrics),
		query.WithSpans(a.spans),
		query.WithTimeout(a.fetchTimeout),
		query.WithSkipZero(),
	)

	coord, err := selection.New(a.bus, d.detail, id, selection.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("connect detail tabs: %w", err)
	}
	d.coord = coord

	return d, nil
}

// ID returns the widget's subscriber identity.
func (d *DetailTabs) ID() string {
	return d.id
}

// Select publishes boatID as the selection from this widget.
func (d *DetailTabs) Select(ctx context.Context, boatID string) error {
	_, err := d.coord.Select(ctx, boatID)
	return err
}

// BoatID returns the selected boat, or "" with nothing selected.
func (d *DetailTabs) BoatID() string {
	return d.detail.State().Parameter
}

// HasSelection reports whether a boat is selected.
func (d *DetailTabs) HasSelection() bool {
	return d.BoatID() != ""
}

// BoatName returns the loaded boat's name, or "" before it loads.
func (d *DetailTabs) BoatName() string {
	name, _ := query.Derive(d.detail.State(), func(r record.Record) string {
		return r.Name
	})
	return name
}

// Boat returns the loaded boat.
func (d *DetailTabs) Boat() (record.Record, bool) {
	s := d.detail.State()
	return s.Data, s.HasData
}

// DetailsTabIconName returns DetailsTabIcon when a boat is loaded and ""
// otherwise.
func (d *DetailTabs) DetailsTabIconName() string {
	if d.detail.State().HasData {
		return DetailsTabIcon
	}
	return ""
}

// PlaceholderLabel is shown in place of the tabs when nothing is selected.
func (d *DetailTabs) PlaceholderLabel() string {
	return d.labels.PleaseSelectABoat
}

// Labels returns the widget's display labels.
func (d *DetailTabs) Labels() Labels {
	return d.labels
}

// State returns the detail query state.
func (d *DetailTabs) State() query.State[string, record.Record] {
	return d.detail.State()
}

// OnChange registers a render callback for detail changes.
func (d *DetailTabs) OnChange(fn func(query.State[string, record.Record])) (cancel func()) {
	return d.detail.OnChange(fn)
}

// Wait blocks until the current fetch settles.
func (d *DetailTabs) Wait(ctx context.Context) error {
	return d.detail.Wait(ctx)
}

// NavigateToRecordViewPage opens the selected boat's record page.
func (d *DetailTabs) NavigateToRecordViewPage(ctx context.Context) error {
	boatID := d.BoatID()
	if boatID == "" {
		return ErrNoSelection
	}
	if d.navigator == nil {
		return ErrNoNavigator
	}
	return d.navigator.Navigate(ctx, notify.Navigation{
		RecordID:   boatID,
		RecordType: record.RecordType,
		Action:     ActionView,
	})
}

// ActiveTab returns the open tab.
func (d *DetailTabs) ActiveTab() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.activeTab
}

// SetActiveTab opens tab.
func (d *DetailTabs) SetActiveTab(tab string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.activeTab = tab
}

// SetReviewsRefresher sets the hook that reloads the reviews tab.
func (d *DetailTabs) SetReviewsRefresher(fn func(ctx context.Context) error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refreshReviews = fn
}

// HandleReviewCreated switches to the reviews tab and reloads it.
func (d *DetailTabs) HandleReviewCreated(ctx context.Context) error {
	d.mu.Lock()
	d.activeTab = TabReviews
	refresh := d.refreshReviews
	d.mu.Unlock()

	if refresh == nil {
		return nil
	}
	if err := refresh(ctx); err != nil {
		d.logger.Warn("reviews refresh failed", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// Close disconnects the widget and abandons any outstanding fetch.
func (d *DetailTabs) Close() {
	d.coord.Disconnect()
	d.detail.Close()
}
