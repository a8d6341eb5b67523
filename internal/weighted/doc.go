// Package weighted implements weight-proportional selection by
// cumulative-distribution inversion.
//
// The same Table type drives both the top-level domain choice and every
// domain's internal operation choice.
//
// # Basic Usage
//
//	table := weighted.MustTable(
//	    weighted.Option[string]{Label: "read", Weight: 80, Value: "GET"},
//	    weighted.Option[string]{Label: "write", Weight: 20, Value: "POST"},
//	)
//	opt := table.Pick(nil) // DefaultSource
//
// # Determinism
//
// Pick accepts any Source. Tests pass a seeded *rand.Rand from math/rand/v2
// or a fixed value. When the weights sum to zero the first option is always
// returned, whatever the source yields.
package weighted
