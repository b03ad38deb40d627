// Package opt holds explicit "known or unknown" values for measurements that a
// receiver may or may not report.
package opt

// Value is a measurement that is either known or unknown. The zero Value is
// unknown.
type Value[T any] struct {
	v  T
	ok bool
}

func Known[T any](v T) Value[T] {
	return Value[T]{v: v, ok: true}
}

func Unknown[T any]() Value[T] {
	return Value[T]{}
}

func (o Value[T]) Get() (T, bool) {
	return o.v, o.ok
}

func (o Value[T]) IsKnown() bool {
	return o.ok
}

// Or returns the value when known and def otherwise.
func (o Value[T]) Or(def T) T {
	if o.ok {
		return o.v
	}
	return def
}

// Merge returns o when known, otherwise prev. Unknown never replaces known.
func Merge[T any](prev, o Value[T]) Value[T] {
	if o.ok {
		return o
	}
	return prev
}
