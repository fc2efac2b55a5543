package edit_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/edit"
	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/notify"
	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/query"
	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/record"
)

// stubService wraps a MemoryService, counting ApplyEdits calls and
// optionally failing or blocking them.
type stubService struct {
	*record.MemoryService

	applyCalls atomic.Int32
	fail       error
	block      chan struct{}
	entered    chan struct{}
}

func newStub(records ...record.Record) *stubService {
	return &stubService{MemoryService: record.NewMemoryService(records...)}
}

func (s *stubService) ApplyEdits(ctx context.Context, set record.EditSet) error {
	s.applyCalls.Add(1)
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}
	if s.fail != nil {
		return s.fail
	}
	return s.MemoryService.ApplyEdits(ctx, set)
}

// countingRefresher counts invalidations.
type countingRefresher struct {
	invalidations atomic.Int32
}

func (r *countingRefresher) Invalidate(context.Context) { r.invalidations.Add(1) }

func (r *countingRefresher) Wait(context.Context) error { return nil }

func boat1() record.Record {
	return record.Record{ID: "1", Name: "Sea Breeze", BoatTypeID: "sail", Length: 32, Price: 250}
}

func listQuery(svc record.Service) *query.Query[record.Filter, []record.Record] {
	return query.New(func(ctx context.Context, f record.Filter) ([]record.Record, error) {
		return svc.ListRecords(ctx, f)
	}, query.WithName("boats"))
}

func TestEmptySaveMakesNoRemoteCall(t *testing.T) {
	svc := newStub(boat1())
	refresher := &countingRefresher{}
	notes := notify.NewRecorder()
	p := edit.New(svc, refresher, notes, nil)

	refresher.Invalidate(context.Background())
	out, err := p.Save(context.Background())

	require.NoError(t, err)
	assert.Equal(t, edit.NoChanges, out.Status)
	assert.Zero(t, svc.applyCalls.Load())
	assert.Equal(t, int32(1), refresher.invalidations.Load(), "empty save does not refresh")
	assert.Zero(t, notes.Len())
}

func TestSaveSuccessRefreshes(t *testing.T) {
	ctx := context.Background()
	svc := newStub(boat1())
	q := listQuery(svc)
	q.Bind(ctx, record.Filter{})
	require.NoError(t, q.Wait(ctx))
	seqBefore := q.Seq()

	var events []notify.LoadingEvent
	busy := notify.NewBusyTracker(func(ev notify.LoadingEvent) { events = append(events, ev) })
	notes := notify.NewRecorder()
	p := edit.New(svc, q, notes, busy)

	require.NoError(t, p.RecordEdit("1", record.FieldPrice, 500))
	out, err := p.Save(ctx)
	require.NoError(t, err)

	assert.Equal(t, edit.Saved, out.Status)
	assert.Equal(t, 1, out.Edits.Len())
	assert.True(t, p.Edits().IsEmpty())
	assert.False(t, p.IsBusy())
	assert.Equal(t, []notify.LoadingEvent{notify.Loading, notify.DoneLoading}, events)

	state := q.State()
	assert.Greater(t, state.Seq, seqBefore, "state comes from a fresh fetch")
	assert.False(t, state.Loading)
	require.Len(t, state.Data, 1)
	assert.Equal(t, 500.0, state.Data[0].Price)

	last, ok := notes.Last()
	require.True(t, ok)
	assert.Equal(t, notify.Notification{
		Severity: notify.SeveritySuccess,
		Title:    edit.SuccessTitle,
		Message:  edit.SuccessMessage,
	}, last)
	assert.Equal(t, "Ship it!", last.Message)
}

func TestSaveFailurePreservesEdits(t *testing.T) {
	svc := newStub(boat1())
	svc.fail = errors.New("Validation failed")
	refresher := &countingRefresher{}
	notes := notify.NewRecorder()
	p := edit.New(svc, refresher, notes, nil)

	require.NoError(t, p.RecordEdit("1", record.FieldPrice, 500))
	out, err := p.Save(context.Background())

	require.Error(t, err)
	var saveErr *edit.SaveError
	require.ErrorAs(t, err, &saveErr)
	assert.Equal(t, "Validation failed", saveErr.Message())
	assert.Equal(t, 1, saveErr.Edits)

	assert.Equal(t, edit.Failed, out.Status)
	assert.Equal(t, []record.Edit{{RecordID: "1", Field: record.FieldPrice, Value: 500}}, p.Edits().Edits())
	assert.Zero(t, refresher.invalidations.Load())
	assert.False(t, p.IsBusy())

	errs := notes.BySeverity(notify.SeverityError)
	require.Len(t, errs, 1)
	assert.Equal(t, "Error", errs[0].Title)
	assert.Equal(t, "Validation failed", errs[0].Message)
	assert.Equal(t, 1, notes.Len())
}

func TestServiceValidationMessageIsVerbatim(t *testing.T) {
	svc := record.NewMemoryService(boat1())
	notes := notify.NewRecorder()
	p := edit.New(svc, nil, notes, nil)

	require.NoError(t, p.RecordEdit("1", record.FieldPrice, -5))
	_, err := p.Save(context.Background())
	require.Error(t, err)

	last, ok := notes.Last()
	require.True(t, ok)
	assert.Equal(t, notify.SeverityError, last.Severity)
	assert.Contains(t, last.Message, "Validation failed")

	var validation *record.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestRoundTripStartsFreshEditSet(t *testing.T) {
	svc := newStub(boat1(), record.Record{ID: "2", Name: "Albatross", BoatTypeID: "motor"})
	p := edit.New(svc, nil, nil, nil)
	ctx := context.Background()

	require.NoError(t, p.RecordEdit("1", record.FieldPrice, 500))
	require.NoError(t, p.RecordEdit("1", record.FieldName, "Sea Breeze II"))
	_, err := p.Save(ctx)
	require.NoError(t, err)

	require.NoError(t, p.RecordEdit("2", record.FieldLength, 40))
	edits := p.Edits().Edits()
	assert.Equal(t, []record.Edit{{RecordID: "2", Field: record.FieldLength, Value: 40}}, edits)
}

func TestRecordEditLastWriteWins(t *testing.T) {
	p := edit.New(newStub(), nil, nil, nil)

	require.NoError(t, p.RecordEdit("1", record.FieldPrice, 100))
	require.NoError(t, p.RecordEdit("2", record.FieldPrice, 200))
	require.NoError(t, p.RecordEdit("1", record.FieldPrice, 300))

	set := p.Edits()
	assert.Equal(t, 2, set.Len())
	v, ok := set.Get("1", record.FieldPrice)
	require.True(t, ok)
	assert.Equal(t, 300, v)
}

func TestRecordEditValidation(t *testing.T) {
	p := edit.New(newStub(), nil, nil, nil)

	assert.ErrorIs(t, p.RecordEdit("", record.FieldPrice, 1), edit.ErrInvalidEdit)
	assert.ErrorIs(t, p.RecordEdit("1", record.FieldID, "x"), edit.ErrInvalidEdit)
	assert.ErrorIs(t, p.RecordEdit("1", record.FieldBoatType, "x"), edit.ErrInvalidEdit)
	assert.True(t, p.Edits().IsEmpty())
}

func TestCancel(t *testing.T) {
	svc := newStub(boat1())
	p := edit.New(svc, nil, nil, nil)

	require.NoError(t, p.RecordEdit("1", record.FieldPrice, 500))
	require.NoError(t, p.Cancel())
	assert.True(t, p.Edits().IsEmpty())

	out, err := p.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, edit.NoChanges, out.Status)
	assert.Zero(t, svc.applyCalls.Load())
}

func TestConcurrentSaveRejected(t *testing.T) {
	svc := newStub(boat1())
	svc.block = make(chan struct{})
	svc.entered = make(chan struct{}, 1)
	notes := notify.NewRecorder()
	p := edit.New(svc, nil, notes, nil)
	ctx := context.Background()

	require.NoError(t, p.RecordEdit("1", record.FieldPrice, 500))

	var wg sync.WaitGroup
	var first edit.Outcome
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, firstErr = p.Save(ctx)
	}()

	select {
	case <-svc.entered:
	case <-time.After(time.Second):
		t.Fatal("save never reached the service")
	}
	assert.True(t, p.IsBusy())

	out, err := p.Save(ctx)
	assert.ErrorIs(t, err, edit.ErrSaveInFlight)
	assert.Equal(t, edit.Rejected, out.Status)
	assert.ErrorIs(t, p.RecordEdit("1", record.FieldPrice, 600), edit.ErrSaveInFlight)
	assert.ErrorIs(t, p.Cancel(), edit.ErrSaveInFlight)

	close(svc.block)
	wg.Wait()

	require.NoError(t, firstErr)
	assert.Equal(t, edit.Saved, first.Status)
	assert.Equal(t, int32(1), svc.applyCalls.Load())
	assert.Equal(t, 1, notes.Len())
	assert.False(t, p.IsBusy())
}

func TestRefresh(t *testing.T) {
	refresher := &countingRefresher{}
	var events []notify.LoadingEvent
	busy := notify.NewBusyTracker(func(ev notify.LoadingEvent) { events = append(events, ev) })
	p := edit.New(newStub(), refresher, nil, busy)

	require.NoError(t, p.Refresh(context.Background()))
	assert.Equal(t, int32(1), refresher.invalidations.Load())
	assert.Equal(t, []notify.LoadingEvent{notify.Loading, notify.DoneLoading}, events)

	assert.NoError(t, edit.New(newStub(), nil, nil, nil).Refresh(context.Background()))
}

func TestRefreshDiscardsPendingEdits(t *testing.T) {
	refresher := &countingRefresher{}
	p := edit.New(newStub(boat1()), refresher, nil, nil)

	require.NoError(t, p.RecordEdit("1", record.FieldPrice, 500.0))
	require.NoError(t, p.Refresh(context.Background()))

	assert.True(t, p.Edits().IsEmpty())
	assert.Equal(t, int32(1), refresher.invalidations.Load())
}

func TestRefreshRejectedWhileSaving(t *testing.T) {
	svc := newStub(boat1())
	svc.block = make(chan struct{})
	svc.entered = make(chan struct{}, 1)
	refresher := &countingRefresher{}
	p := edit.New(svc, refresher, nil, nil)
	ctx := context.Background()

	require.NoError(t, p.RecordEdit("1", record.FieldPrice, 500))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = p.Save(ctx)
	}()
	select {
	case <-svc.entered:
	case <-time.After(time.Second):
		t.Fatal("save never reached the service")
	}

	assert.ErrorIs(t, p.Refresh(ctx), edit.ErrSaveInFlight)
	assert.Zero(t, refresher.invalidations.Load())

	close(svc.block)
	<-done
}

func TestClose(t *testing.T) {
	svc := newStub(boat1())
	p := edit.New(svc, nil, nil, nil)

	require.NoError(t, p.RecordEdit("1", record.FieldPrice, 500))
	p.Close()
	p.Close()

	assert.True(t, p.Edits().IsEmpty())
	assert.ErrorIs(t, p.RecordEdit("1", record.FieldPrice, 600), edit.ErrClosed)

	out, err := p.Save(context.Background())
	assert.ErrorIs(t, err, edit.ErrClosed)
	assert.Equal(t, edit.Rejected, out.Status)
	assert.Zero(t, svc.applyCalls.Load())
}

func TestSaveTimeout(t *testing.T) {
	svc := &slowService{MemoryService: record.NewMemoryService(boat1())}
	p := edit.New(svc, nil, nil, nil, edit.WithTimeout(10*time.Millisecond))

	require.NoError(t, p.RecordEdit("1", record.FieldPrice, 500))
	_, err := p.Save(context.Background())

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, p.Edits().Len())
}

type slowService struct {
	*record.MemoryService
}

func (s *slowService) ApplyEdits(ctx context.Context, _ record.EditSet) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "no_changes", edit.NoChanges.String())
	assert.Equal(t, "saved", edit.Saved.String())
	assert.Equal(t, "failed", edit.Failed.String())
	assert.Equal(t, "rejected", edit.Rejected.String())
}
