package run

// A View presents one field of a Run. The field is always stored as one entry
// per batch element; whether callers see a single value is decided here.
type View[T any] struct {
	items    []T
	collapse bool
	set      bool
}

// IsSet reports whether the field has been populated. Result, Memory and
// Counts are unset until the run is finalized.
func (v View[T]) IsSet() bool {
	return v.set
}

// Len returns the number of entries, i.e. the batch size once set.
func (v View[T]) Len() int {
	return len(v.items)
}

// IsSingle reports whether the view collapses to a single value: the run was
// built with CollapseSingle and holds exactly one circuit.
func (v View[T]) IsSingle() bool {
	return v.set && v.collapse && len(v.items) == 1
}

// Single returns the sole entry when IsSingle holds.
func (v View[T]) Single() (T, bool) {
	if !v.IsSingle() {
		var zero T
		return zero, false
	}
	return v.items[0], true
}

// All returns a copy of every entry, aligned with the batch.
func (v View[T]) All() []T {
	if !v.set {
		return nil
	}
	r := make([]T, len(v.items))
	copy(r, v.items)
	return r
}

// At returns the i-th entry. It reports false if the view is unset or i is
// out of range.
func (v View[T]) At(i int) (T, bool) {
	if !v.set || i < 0 || i >= len(v.items) {
		var zero T
		return zero, false
	}
	return v.items[i], true
}
