package weighted

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

var (
	// ErrNoOptions is returned when a selection is attempted over nothing.
	ErrNoOptions = errors.New("weighted: no options")
	// ErrInvalidWeight is returned for negative, NaN or infinite weights.
	ErrInvalidWeight = errors.New("weighted: invalid weight")
)

// Source yields uniform draws in [0, 1).
type Source interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// DefaultSource is backed by the goroutine-safe math/rand/v2 generator.
var DefaultSource Source = globalSource{}

// Option is one weighted candidate.
type Option[T any] struct {
	Label  string
	Weight float64
	Value  T
}

// Table is an immutable, validated set of options.
type Table[T any] struct {
	options []Option[T]
	total   float64
}

// NewTable validates options and returns a table preserving their order.
func NewTable[T any](options ...Option[T]) (*Table[T], error) {
	if len(options) == 0 {
		return nil, ErrNoOptions
	}

	var total float64
	for _, o := range options {
		if o.Weight < 0 || math.IsNaN(o.Weight) || math.IsInf(o.Weight, 0) {
			return nil, fmt.Errorf("%w: %q has weight %v", ErrInvalidWeight, o.Label, o.Weight)
		}
		total += o.Weight
	}

	return &Table[T]{
		options: append([]Option[T](nil), options...),
		total:   total,
	}, nil
}

// MustTable is NewTable for package-level tables; it panics on invalid input.
func MustTable[T any](options ...Option[T]) *Table[T] {
	t, err := NewTable(options...)
	if err != nil {
		panic(err)
	}
	return t
}

// Pick draws one option. A nil src uses DefaultSource.
//
// r = src.Float64() * total; weights are subtracted in order and the first
// option that brings r to <= 0 wins. Zero-weight options are never reached
// by the loop. If total is zero or the loop runs out (src outside [0, 1),
// float rounding), the first option is returned.
func (t *Table[T]) Pick(src Source) Option[T] {
	if t.total <= 0 {
		return t.options[0]
	}
	if src == nil {
		src = DefaultSource
	}

	r := src.Float64() * t.total
	for _, o := range t.options {
		if o.Weight == 0 {
			continue
		}
		r -= o.Weight
		if r <= 0 {
			return o
		}
	}
	return t.options[0]
}

// Options returns a copy of the options in table order.
func (t *Table[T]) Options() []Option[T] {
	return append([]Option[T](nil), t.options...)
}

// Total returns the sum of all weights.
func (t *Table[T]) Total() float64 {
	return t.total
}

// Len returns the number of options.
func (t *Table[T]) Len() int {
	return len(t.options)
}

// Select is a one-shot Pick over options.
func Select[T any](src Source, options []Option[T]) (Option[T], error) {
	t, err := NewTable(options...)
	if err != nil {
		var zero Option[T]
		return zero, err
	}
	return t.Pick(src), nil
}
