package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupMetricsTest creates a test meter provider and returns a function to collect metrics.
func setupMetricsTest(t *testing.T) (*sdkmetric.ManualReader, func()) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	originalProvider := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)

	cleanup := func() {
		otel.SetMeterProvider(originalProvider)
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down meter provider: %v", err)
		}
	}

	return reader, cleanup
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	var rm metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &rm)
	require.NoError(t, err)
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor returns the int64 sum for datapoints carrying key=value.
func sumFor(t *testing.T, m *metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "Expected Sum type")

	var total int64
	for _, dp := range sum.DataPoints {
		for _, attr := range dp.Attributes.ToSlice() {
			if string(attr.Key) == key && attr.Value.AsString() == value {
				total += dp.Value
			}
		}
	}
	return total
}

func TestNewMetricsRecorder(t *testing.T) {
	_, cleanup := setupMetricsTest(t)
	defer cleanup()

	recorder := NewMetricsRecorder()
	require.NotNil(t, recorder)

	_, isNoop := recorder.(NoopMetrics)
	assert.False(t, isNoop, "Expected real metrics recorder, got noop")
}

func TestRecordFetch(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("counts applied fetches", func(t *testing.T) {
		m.RecordFetch(ctx, "boats", 20*time.Millisecond, nil)

		rm := collectMetrics(t, reader)
		metric := findMetric(rm, "fleetdeck.query.fetches")
		require.NotNil(t, metric)
		assert.GreaterOrEqual(t, sumFor(t, metric, "query", "boats"), int64(1))
	})

	t.Run("records latency histogram", func(t *testing.T) {
		rm := collectMetrics(t, reader)
		metric := findMetric(rm, "fleetdeck.query.latency_ms")
		require.NotNil(t, metric)

		hist, ok := metric.Data.(metricdata.Histogram[float64])
		require.True(t, ok, "Expected Histogram type")
		require.NotEmpty(t, hist.DataPoints)
	})

	t.Run("counts errors only when present", func(t *testing.T) {
		m.RecordFetch(ctx, "detail", 5*time.Millisecond, errors.New("boom"))
		m.RecordFetch(ctx, "clean", 5*time.Millisecond, nil)

		rm := collectMetrics(t, reader)
		metric := findMetric(rm, "fleetdeck.query.errors")
		require.NotNil(t, metric)
		assert.Equal(t, int64(1), sumFor(t, metric, "query", "detail"))
		assert.Equal(t, int64(0), sumFor(t, metric, "query", "clean"))
	})

	t.Run("counts stale discards", func(t *testing.T) {
		m.RecordStaleDiscard(ctx, "boats")
		m.RecordStaleDiscard(ctx, "boats")

		rm := collectMetrics(t, reader)
		metric := findMetric(rm, "fleetdeck.query.stale_discards")
		require.NotNil(t, metric)
		assert.Equal(t, int64(2), sumFor(t, metric, "query", "boats"))
	})
}

func TestRecordSaveAndPublish(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordSave(ctx, 3, 40*time.Millisecond, nil)
	m.RecordSave(ctx, 1, 10*time.Millisecond, errors.New("Validation failed"))
	m.RecordPublish(ctx, "BoatMessageChannel", 2)
	m.RecordPublish(ctx, "BoatMessageChannel", 3)

	rm := collectMetrics(t, reader)

	saves := findMetric(rm, "fleetdeck.edit.saves")
	require.NotNil(t, saves)
	sum, ok := saves.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(2), total)

	batch := findMetric(rm, "fleetdeck.edit.batch_size")
	require.NotNil(t, batch)

	publishes := findMetric(rm, "fleetdeck.bus.publishes")
	require.NotNil(t, publishes)
	assert.Equal(t, int64(2), sumFor(t, publishes, "channel", "BoatMessageChannel"))

	deliveries := findMetric(rm, "fleetdeck.bus.deliveries")
	require.NotNil(t, deliveries)
	assert.Equal(t, int64(5), sumFor(t, deliveries, "channel", "BoatMessageChannel"))
}
