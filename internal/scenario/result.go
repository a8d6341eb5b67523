package scenario

import (
	"fmt"
	"strings"
	"time"

	"secchub-loadtest/internal/domain"
	"secchub-loadtest/internal/metrics"
	"secchub-loadtest/internal/runstate"
)

// Result はシナリオ実行結果
type Result struct {
	RunID        string        `json:"run_id"`
	ScenarioName string        `json:"scenario"`
	BaseURL      string        `json:"base_url"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	Duration     time.Duration `json:"duration"`

	// 負荷
	PeakVUs     int                       `json:"peak_vus"`
	Interrupted bool                      `json:"interrupted"` // 猶予時間切れで中断したイテレーションがある
	Iterations  metrics.IterationSnapshot `json:"iterations"`

	// HTTP
	HTTPRequests   uint64             `json:"http_reqs"`
	HTTPFailedRate float64            `json:"http_req_failed"`
	HTTPDuration   metrics.TrendStats `json:"http_req_duration"`
	CheckPassRate  float64            `json:"checks"`
	ErrorRate      float64            `json:"errors"`

	OperationsByModule map[string]float64        `json:"operations_by_module"`
	Created            []runstate.CategoryCount  `json:"created"`
	Thresholds         []metrics.ThresholdResult `json:"thresholds"`

	Metrics metrics.Snapshot `json:"-"`
}

// Passed は全ての合否条件を満たしたかどうかを返す
func (r *Result) Passed() bool {
	for _, t := range r.Thresholds {
		if !t.Passed {
			return false
		}
	}
	return true
}

// FailedThresholds は満たさなかった条件を返す
func (r *Result) FailedThresholds() []metrics.ThresholdResult {
	var failed []metrics.ThresholdResult
	for _, t := range r.Thresholds {
		if !t.Passed {
			failed = append(failed, t)
		}
	}
	return failed
}

// CreatedCount はカテゴリの作成数を返す
func (r *Result) CreatedCount(category runstate.Category) int {
	for _, c := range r.Created {
		if c.Category == category {
			return c.Count
		}
	}
	return 0
}

// Report は結果をフォーマットして返す
func (r *Result) Report() string {
	var b strings.Builder

	fmt.Fprintf(&b, `
================================================================================
                         SCENARIO REPORT: %s
================================================================================

EXECUTION SUMMARY
-----------------
  Run ID:         %s
  Base URL:       %s
  Start Time:     %s
  End Time:       %s
  Duration:       %v
  Peak VUs:       %d

ITERATIONS
----------
  Total:          %d
  Completed:      %d
  Aborted:        %d
  Per Second:     %.2f
  Avg Duration:   %v
  P95 Duration:   %v

HTTP
----
  Requests:       %d
  Failed:         %.2f%%
  Checks Passed:  %.2f%%
  Errors:         %.2f%%
  Duration (ms):  avg=%.1f med=%.1f p90=%.1f p95=%.1f p99=%.1f max=%.1f
`,
		r.ScenarioName,
		r.RunID,
		r.BaseURL,
		r.StartTime.Format("2006-01-02 15:04:05"),
		r.EndTime.Format("2006-01-02 15:04:05"),
		r.Duration.Round(time.Millisecond),
		r.PeakVUs,
		r.Iterations.Total,
		r.Iterations.Completed,
		r.Iterations.Aborted,
		r.Iterations.PerSecond,
		r.Iterations.AverageDuration.Round(time.Millisecond),
		r.Iterations.P95Duration.Round(time.Millisecond),
		r.HTTPRequests,
		r.HTTPFailedRate*100,
		r.CheckPassRate*100,
		r.ErrorRate*100,
		r.HTTPDuration.Avg, r.HTTPDuration.Med, r.HTTPDuration.P90,
		r.HTTPDuration.P95, r.HTTPDuration.P99, r.HTTPDuration.Max,
	)

	b.WriteString("\nOPERATIONS BY MODULE\n--------------------\n")
	for _, d := range domain.Domains() {
		fmt.Fprintf(&b, "  %-14s %.0f\n", d.String()+":", r.OperationsByModule[d.String()])
	}

	b.WriteString("\nDOMAIN ERRORS\n-------------\n")
	for _, d := range domain.Domains() {
		rate, ok := r.Metrics.Rates[d.String()+"_errors"]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "  %-14s %.2f%% (%d/%d)\n", d.String()+":", rate.Value*100, rate.Trues, rate.Count)
	}

	b.WriteString("\nCREATED RESOURCES\n-----------------\n")
	for _, c := range r.Created {
		fmt.Fprintf(&b, "  %-14s %d\n", string(c.Category)+":", c.Count)
	}

	b.WriteString("\nTHRESHOLDS\n----------\n")
	for _, t := range r.Thresholds {
		mark := "PASS"
		if !t.Passed {
			mark = "FAIL"
		}
		note := ""
		if t.NoData {
			note = " (no data)"
		}
		fmt.Fprintf(&b, "  [%s] %-40s actual=%.4f%s\n", mark, t.Name, t.Actual, note)
	}

	if r.Interrupted {
		b.WriteString("\n  Some iterations were interrupted after the graceful stop window.\n")
	}

	verdict := "PASSED"
	if !r.Passed() {
		verdict = "FAILED"
	}
	fmt.Fprintf(&b, "\nRESULT: %s\n", verdict)
	b.WriteString("================================================================================")

	return b.String()
}
