package metrics

import (
	"math"
	"sync"
	"testing"
	"time"
)

func TestIterationsRecord(t *testing.T) {
	m := NewIterations()

	m.RecordCompleted(100 * time.Millisecond)
	m.RecordCompleted(300 * time.Millisecond)
	m.RecordAborted(200 * time.Millisecond)

	if m.Total() != 3 {
		t.Errorf("expected 3 total, got %d", m.Total())
	}
	if m.Completed() != 2 {
		t.Errorf("expected 2 completed, got %d", m.Completed())
	}
	if m.Aborted() != 1 {
		t.Errorf("expected 1 aborted, got %d", m.Aborted())
	}
	if got := m.AverageDuration(); got != 200*time.Millisecond {
		t.Errorf("expected 200ms average, got %v", got)
	}
	if got := m.AbortRate(); math.Abs(got-1.0/3.0) > 1e-9 {
		t.Errorf("expected abort rate 1/3, got %f", got)
	}
	if got := m.Percentile(50); got != 200*time.Millisecond {
		t.Errorf("expected p50 200ms, got %v", got)
	}
}

func TestIterationsReset(t *testing.T) {
	m := NewIterations()
	m.RecordCompleted(time.Second)
	m.Reset()

	snap := m.Snapshot()
	if snap.Total != 0 || snap.Completed != 0 || snap.P95Duration != 0 {
		t.Errorf("expected empty snapshot after reset, got %+v", snap)
	}
}

func TestPercentileInterpolation(t *testing.T) {
	sorted := []float64{10, 20, 30, 40, 50}

	tests := []struct {
		p    float64
		want float64
	}{
		{0, 10},
		{50, 30},
		{90, 46},
		{95, 48},
		{100, 50},
	}

	for _, tt := range tests {
		if got := percentileSorted(sorted, tt.p); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}

	if got := percentileSorted(nil, 95); got != 0 {
		t.Errorf("expected 0 for empty input, got %v", got)
	}
}

func TestRateValue(t *testing.T) {
	reg := NewRegistry(RegistryConfig{})
	rate := reg.Rate("admin_errors")

	if rate.Value() != 0 {
		t.Errorf("expected 0 with no samples, got %v", rate.Value())
	}

	rate.Add(true)
	rate.Add(false)
	rate.Add(false)
	rate.Add(false)

	if rate.Value() != 0.25 {
		t.Errorf("expected 0.25, got %v", rate.Value())
	}
	if reg.Rate("admin_errors") != rate {
		t.Error("expected the same Rate instance for the same name")
	}
}

func TestTrendStats(t *testing.T) {
	reg := NewRegistry(RegistryConfig{})
	trend := reg.Trend("planning_classroom_duration_ms")

	for _, v := range []float64{50, 10, 40, 20, 30} {
		trend.Add(v)
	}
	trend.AddDuration(60 * time.Millisecond)

	stats := trend.Stats()
	if stats.Count != 6 {
		t.Errorf("expected count 6, got %d", stats.Count)
	}
	if stats.Min != 10 || stats.Max != 60 {
		t.Errorf("expected min 10 max 60, got %v %v", stats.Min, stats.Max)
	}
	if stats.Avg != 35 {
		t.Errorf("expected avg 35, got %v", stats.Avg)
	}
	if stats.Med != 35 {
		t.Errorf("expected med 35, got %v", stats.Med)
	}
}

func TestTrendReservoirKeepsExtremes(t *testing.T) {
	reg := NewRegistry(RegistryConfig{MaxTrendSamples: 10})
	trend := reg.Trend("t")

	for i := 1; i <= 1000; i++ {
		trend.Add(float64(i))
	}

	stats := trend.Stats()
	if stats.Count != 1000 {
		t.Errorf("expected count 1000, got %d", stats.Count)
	}
	if stats.Min != 1 || stats.Max != 1000 {
		t.Errorf("min/max must be exact, got %v %v", stats.Min, stats.Max)
	}
	if len(trend.samples) != 10 {
		t.Errorf("expected 10 retained samples, got %d", len(trend.samples))
	}
}

func TestCounterByTag(t *testing.T) {
	reg := NewRegistry(RegistryConfig{})
	c := reg.Counter(OperationsByModule)

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Add(1, "planning")
			c.Add(1, "admin")
		}()
	}
	wg.Wait()
	c.Add(-5, "admin")

	if c.Total() != 200 {
		t.Errorf("expected total 200, got %v", c.Total())
	}
	tags := c.ByTag()
	if tags["planning"] != 100 || tags["admin"] != 100 {
		t.Errorf("unexpected tag counts: %v", tags)
	}
}

func TestPrometheusMirror(t *testing.T) {
	reg := NewRegistry(DefaultRegistryConfig())
	reg.Rate("log_errors").Add(true)
	reg.Rate("log_errors").Add(false)
	reg.Counter(OperationsByModule).Add(2, "log")

	families, err := reg.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	values := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "," + lp.GetName() + "=" + lp.GetValue()
			}
			if c := m.GetCounter(); c != nil {
				values[key] = c.GetValue()
			}
		}
	}

	if got := values["secchub_loadtest_rate_samples_total,metric=log_errors,outcome=true"]; got != 1 {
		t.Errorf("expected 1 true sample, got %v", got)
	}
	if got := values["secchub_loadtest_counter_total,metric=operations_by_module,tag=log"]; got != 2 {
		t.Errorf("expected counter 2, got %v", got)
	}
	if NewRegistry(RegistryConfig{}).Gatherer() != nil {
		t.Error("expected nil gatherer when prometheus is disabled")
	}
}

func TestSnapshot(t *testing.T) {
	reg := NewRegistry(RegistryConfig{})
	reg.Rate(HTTPReqFailed).Add(false)
	reg.Trend(HTTPReqDuration).Add(12)
	reg.Counter(HTTPReqs).Add(1, "")

	snap := reg.Snapshot()
	if snap.Rates[HTTPReqFailed].Count != 1 {
		t.Errorf("expected 1 rate sample, got %+v", snap.Rates[HTTPReqFailed])
	}
	if snap.Trends[HTTPReqDuration].Max != 12 {
		t.Errorf("expected trend max 12, got %+v", snap.Trends[HTTPReqDuration])
	}
	if snap.Counters[HTTPReqs].Total != 1 {
		t.Errorf("expected counter 1, got %+v", snap.Counters[HTTPReqs])
	}
}
