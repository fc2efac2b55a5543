package query_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/query"
)

// pendingCall is a fetch waiting for the test to resolve it.
type pendingCall struct {
	param string
	reply chan result
}

type result struct {
	data string
	err  error
}

// controlled is a fetcher whose calls are resolved by the test.
type controlled struct {
	calls chan pendingCall
}

func newControlled() *controlled {
	return &controlled{calls: make(chan pendingCall, 16)}
}

func (c *controlled) fetch(_ context.Context, param string) (string, error) {
	reply := make(chan result, 1)
	c.calls <- pendingCall{param: param, reply: reply}
	r := <-reply
	return r.data, r.err
}

// next waits for n calls and indexes them by parameter.
func (c *controlled) next(t *testing.T, n int) map[string]pendingCall {
	t.Helper()
	got := make(map[string]pendingCall, n)
	for i := 0; i < n; i++ {
		select {
		case call := <-c.calls:
			got[call.param] = call
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for fetch %d of %d", i+1, n)
		}
	}
	return got
}

// countingMetrics counts applied fetches and stale discards.
type countingMetrics struct {
	fetches  atomic.Int32
	discards atomic.Int32
}

func (m *countingMetrics) RecordFetch(context.Context, string, time.Duration, error) {
	m.fetches.Add(1)
}

func (m *countingMetrics) RecordStaleDiscard(context.Context, string) {
	m.discards.Add(1)
}

func (m *countingMetrics) RecordSave(context.Context, int, time.Duration, error) {}

func (m *countingMetrics) RecordPublish(context.Context, string, int) {}

func waitSettled(t *testing.T, q *query.Query[string, string]) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Wait(ctx))
}

func TestLastRequestWins(t *testing.T) {
	orders := [][]string{
		{"p1", "p2", "p3"},
		{"p3", "p2", "p1"},
		{"p2", "p3", "p1"},
		{"p3", "p1", "p2"},
	}

	for _, order := range orders {
		t.Run(order[0]+order[1]+order[2], func(t *testing.T) {
			c := newControlled()
			metrics := &countingMetrics{}
			q := query.New(c.fetch, query.WithName("boats"), query.WithMetrics(metrics))
			ctx := context.Background()

			q.Bind(ctx, "p1")
			q.Bind(ctx, "p2")
			q.Bind(ctx, "p3")

			calls := c.next(t, 3)
			for _, p := range order {
				calls[p].reply <- result{data: "result-" + p}
			}

			waitSettled(t, q)
			require.Eventually(t, func() bool { return metrics.discards.Load() == 2 },
				time.Second, 5*time.Millisecond)
			assert.Equal(t, int32(1), metrics.fetches.Load(), "only the applied fetch is counted")

			state := q.State()
			assert.Equal(t, "p3", state.Parameter)
			assert.True(t, state.HasData)
			assert.Equal(t, "result-p3", state.Data)
			assert.NoError(t, state.Err)
			assert.False(t, state.Loading)
			assert.Equal(t, uint64(3), state.Seq)
		})
	}
}

func TestStaleWhileRevalidate(t *testing.T) {
	c := newControlled()
	q := query.New(c.fetch)
	ctx := context.Background()

	q.Bind(ctx, "p1")
	c.next(t, 1)["p1"].reply <- result{data: "one"}
	waitSettled(t, q)

	q.Bind(ctx, "p2")
	state := q.State()
	assert.True(t, state.Loading)
	assert.Equal(t, "p2", state.Parameter)
	assert.Equal(t, "one", state.Data, "previous data kept while loading")

	c.next(t, 1)["p2"].reply <- result{err: errors.New("offline")}
	waitSettled(t, q)

	state = q.State()
	assert.False(t, state.Loading)
	assert.False(t, state.HasData, "error clears data")
	assert.Empty(t, state.Data)
	require.Error(t, state.Err)

	var fetchErr *query.FetchError
	require.ErrorAs(t, state.Err, &fetchErr)
	assert.Equal(t, "p2", fetchErr.Parameter)
	assert.EqualError(t, errors.Unwrap(state.Err), "offline")

	q.Invalidate(ctx)
	state = q.State()
	assert.True(t, state.Loading)
	assert.Error(t, state.Err, "previous error kept while loading")

	c.next(t, 1)["p2"].reply <- result{data: "two"}
	waitSettled(t, q)

	state = q.State()
	assert.NoError(t, state.Err)
	assert.Equal(t, "two", state.Data)
}

func TestBindSameParameterIsNoop(t *testing.T) {
	c := newControlled()
	q := query.New(c.fetch)
	ctx := context.Background()

	q.Bind(ctx, "p1")
	c.next(t, 1)["p1"].reply <- result{data: "one"}
	waitSettled(t, q)

	q.Bind(ctx, "p1")
	assert.Equal(t, uint64(1), q.Seq())
	assert.False(t, q.State().Loading)
}

func TestInvalidateBeforeBind(t *testing.T) {
	c := newControlled()
	q := query.New(c.fetch)

	q.Invalidate(context.Background())

	assert.Zero(t, q.Seq())
	assert.False(t, q.State().Bound)
	assert.NoError(t, q.Wait(context.Background()))
}

func TestSkipZero(t *testing.T) {
	c := newControlled()
	metrics := &countingMetrics{}
	q := query.New(c.fetch, query.WithSkipZero(), query.WithMetrics(metrics))
	ctx := context.Background()

	q.Bind(ctx, "")
	state := q.State()
	assert.True(t, state.Bound)
	assert.True(t, state.Placeholder())
	assert.Zero(t, metrics.fetches.Load())

	q.Bind(ctx, "boat-1")
	call := c.next(t, 1)["boat-1"]

	q.Bind(ctx, "")
	assert.NoError(t, q.Wait(ctx), "placeholder releases waiters")
	assert.True(t, q.State().Placeholder())

	call.reply <- result{data: "stale"}
	require.Eventually(t, func() bool { return metrics.discards.Load() == 1 },
		time.Second, 5*time.Millisecond)
	assert.Zero(t, metrics.fetches.Load())
	assert.True(t, q.State().Placeholder())

	q.Invalidate(ctx)
	assert.False(t, q.State().Loading, "placeholder state is not re-fetched")
}

func TestFetchDetachedFromCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q := query.New(func(ctx context.Context, p string) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "ok-" + p, nil
	})

	q.Bind(ctx, "p1")
	waitSettled(t, q)

	assert.Equal(t, "ok-p1", q.State().Data)
}

func TestTimeout(t *testing.T) {
	q := query.New(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}, query.WithTimeout(10*time.Millisecond))

	q.Bind(context.Background(), "p1")
	waitSettled(t, q)

	assert.ErrorIs(t, q.State().Err, context.DeadlineExceeded)
}

func TestFetcherPanic(t *testing.T) {
	q := query.New(func(context.Context, string) (string, error) {
		panic("boom")
	})

	q.Bind(context.Background(), "p1")
	waitSettled(t, q)

	state := q.State()
	require.Error(t, state.Err)
	assert.Contains(t, state.Err.Error(), "boom")
}

func TestOnChange(t *testing.T) {
	c := newControlled()
	q := query.New(c.fetch)
	ctx := context.Background()

	var mu sync.Mutex
	var seen []query.State[string, string]
	cancel := q.OnChange(func(s query.State[string, string]) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	q.Bind(ctx, "p1")
	c.next(t, 1)["p1"].reply <- result{data: "one"}
	waitSettled(t, q)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.True(t, seen[0].Loading)
	assert.False(t, seen[1].Loading)
	assert.Equal(t, "one", seen[1].Data)
	mu.Unlock()

	cancel()
	q.Bind(ctx, "p2")
	c.next(t, 1)["p2"].reply <- result{data: "two"}
	waitSettled(t, q)

	mu.Lock()
	assert.Len(t, seen, 2)
	mu.Unlock()
}

func TestWaitRespectsContext(t *testing.T) {
	c := newControlled()
	q := query.New(c.fetch)

	q.Bind(context.Background(), "p1")
	call := c.next(t, 1)["p1"]

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Wait(ctx), context.DeadlineExceeded)

	call.reply <- result{data: "one"}
	waitSettled(t, q)
}

func TestClose(t *testing.T) {
	c := newControlled()
	q := query.New(c.fetch)
	ctx := context.Background()

	q.Bind(ctx, "p1")
	call := c.next(t, 1)["p1"]

	q.Close()
	q.Close()
	assert.NoError(t, q.Wait(ctx))

	call.reply <- result{data: "late"}
	q.Bind(ctx, "p2")

	assert.False(t, q.State().HasData)
	assert.Equal(t, "p1", q.State().Parameter)
}

func TestDerive(t *testing.T) {
	empty := query.State[string, string]{}
	_, ok := query.Derive(empty, func(s string) int { return len(s) })
	assert.False(t, ok)

	full := query.State[string, string]{Data: "Sea Breeze", HasData: true}
	n, ok := query.Derive(full, func(s string) int { return len(s) })
	assert.True(t, ok)
	assert.Equal(t, 10, n)
}
