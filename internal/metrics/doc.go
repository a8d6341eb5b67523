// Package metrics collects the measurements of a load test run.
//
// Two collectors live here:
//
//   - Iterations: atomic counters and sampled durations for virtual-user
//     iterations (completed, aborted, per second, percentiles).
//   - Registry: named Rate, Trend and Counter metrics such as
//     "admin_errors", "planning_classroom_duration_ms" or
//     "operations_by_module". Values are mirrored into a private Prometheus
//     registry when enabled.
//
// # Basic Usage
//
//	reg := metrics.NewRegistry(metrics.DefaultRegistryConfig())
//	reg.Trend("admin_course_duration_ms").AddDuration(resp.Duration)
//	reg.Rate("admin_errors").Add(!ok)
//	reg.Counter(metrics.OperationsByModule).Add(1, "admin")
//
// # Thresholds
//
// Pass/fail criteria use the familiar expression form:
//
//	th, _ := metrics.ParseThreshold("http_req_duration", "p(95)<1000")
//	results := reg.Evaluate([]metrics.Threshold{th})
//	ok := metrics.AllPassed(results)
//
// Supported aggregates are rate, count, avg, min, max, med and p(N).
// Percentiles interpolate linearly between the nearest samples.
package metrics
