// Package outcome provides the result type used for "no data" results.
//
// Missing history, unknown opponents, absent prices and similar conditions are
// expected outcomes of the engine, not errors. They travel through every layer
// as an Unavailable value carrying a short reason, so a caller can tell a real
// zero apart from "could not compute".
package outcome

import "fmt"

// NA is how unavailable values are rendered for display.
const NA = "N/A"

// Of holds either a value or the reason it is unavailable.
type Of[T any] struct {
	v      T
	ok     bool
	reason string
}

// Value wraps an available value.
func Value[T any](v T) Of[T] {
	return Of[T]{v: v, ok: true}
}

// Unavailable returns an empty result with the given reason.
func Unavailable[T any](reason string) Of[T] {
	return Of[T]{reason: reason}
}

// FromPtr returns Value(*p), or Unavailable(reason) when p is nil.
func FromPtr[T any](p *T, reason string) Of[T] {
	if p == nil {
		return Unavailable[T](reason)
	}
	return Value(*p)
}

// Get returns the value and whether it is available.
func (o Of[T]) Get() (T, bool) {
	return o.v, o.ok
}

// OK reports whether a value is present.
func (o Of[T]) OK() bool {
	return o.ok
}

// Reason is empty for available values.
func (o Of[T]) Reason() string {
	return o.reason
}

// OrElse returns the value, or def when unavailable.
func (o Of[T]) OrElse(def T) T {
	if o.ok {
		return o.v
	}
	return def
}

// Ptr returns a pointer to a copy of the value, or nil. Used for nullable columns.
func (o Of[T]) Ptr() *T {
	if !o.ok {
		return nil
	}
	v := o.v
	return &v
}

// String renders the value with %v, or "N/A".
func (o Of[T]) String() string {
	if !o.ok {
		return NA
	}
	return fmt.Sprintf("%v", o.v)
}

// Map applies f to an available value and keeps the reason otherwise.
func Map[T, U any](o Of[T], f func(T) U) Of[U] {
	if !o.ok {
		return Unavailable[U](o.reason)
	}
	return Value(f(o.v))
}
