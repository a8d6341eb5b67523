// Package runstate holds the state shared by every virtual user of a run.
//
// A Context is built once in setup with the admin token and base URL and
// handed to every iteration by pointer. Its only mutable part is the
// Registry of created resource IDs, which both implementations make safe
// for concurrent appends:
//
//   - MemoryRegistry: mutex-guarded per-category slices.
//   - RedisRegistry: one Redis list per category under a run-scoped prefix,
//     so several generator processes can share one summary.
//
// # Basic Usage
//
//	rc := runstate.New(runID, token, baseURL, runstate.NewMemoryRegistry())
//	rc.Record(ctx, runstate.Courses, 42)
//	summary, _ := runstate.Summarize(ctx, rc.Resources())
package runstate
