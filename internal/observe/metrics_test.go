package observe

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics builds Metrics against a manual reader so recorded values
// can be collected synchronously.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data points from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric returns the metric with the given name, or fails the test.
func findMetric(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Metrics {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m
			}
		}
	}
	t.Fatalf("metric %q not found", name)
	return metricdata.Metrics{}
}

func TestRecordTurn(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordTurn(ctx, "COMPLEX", "COMBAT", 1.2)
	m.RecordTurn(ctx, "SIMPLE", "STATUS_MENU", 0.001)

	rm := collect(t, reader)

	turns := findMetric(t, rm, "loreforge.turns")
	sum, ok := turns.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("turns data type = %T", turns.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 2 {
		t.Errorf("turn count = %d, want 2", total)
	}

	dur := findMetric(t, rm, "loreforge.turn.duration")
	hist, ok := dur.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("duration data type = %T", dur.Data)
	}
	var samples uint64
	for _, dp := range hist.DataPoints {
		samples += dp.Count
	}
	if samples != 2 {
		t.Errorf("duration samples = %d, want 2", samples)
	}
}

func TestRecordLLMRequestCountsErrors(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordLLMRequest(ctx, "gamemaster", "ok", 0.4)
	m.RecordLLMRequest(ctx, "narrator", "error", 0.1)

	rm := collect(t, reader)

	errs := findMetric(t, rm, "loreforge.llm.errors")
	sum, ok := errs.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("errors data type = %T", errs.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 1 {
		t.Errorf("llm error count = %d, want 1", total)
	}
}

func TestActiveGamesUpDown(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveGames.Add(ctx, 1)
	m.ActiveGames.Add(ctx, 1)
	m.ActiveGames.Add(ctx, -1)

	rm := collect(t, reader)
	games := findMetric(t, rm, "loreforge.active_games")
	sum, ok := games.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("active_games data type = %T", games.Data)
	}
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1 {
		t.Errorf("active games = %+v, want single point 1", sum.DataPoints)
	}
}

func TestDefaultMetricsSingleton(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different instances")
	}
}
