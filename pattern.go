package matchall

import "cmp"

// Pattern reports whether a value matches.
type Pattern[T any] func(v T) bool

// Eq matches values equal to want.
func Eq[T comparable](want T) Pattern[T] {
	return func(v T) bool { return v == want }
}

// Range matches values in [lo, hi].
func Range[T cmp.Ordered](lo, hi T) Pattern[T] {
	return func(v T) bool { return cmp.Compare(v, lo) >= 0 && cmp.Compare(v, hi) <= 0 }
}

// Any matches every value.
func Any[T any]() Pattern[T] {
	return func(T) bool { return true }
}

// Where matches the values for which pred returns true.
func Where[T any](pred func(T) bool) Pattern[T] {
	return Pattern[T](pred)
}

func Not[T any](p Pattern[T]) Pattern[T] {
	return func(v T) bool { return !p(v) }
}
