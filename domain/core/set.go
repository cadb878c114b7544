package core

import (
	"cmp"
	"slices"
)

// Set is an unordered collection of distinct values.
type Set[T comparable] map[T]struct{}

// Label and entity sets
type (
	LabelSet  = Set[Label]
	EntitySet = Set[Entity]
)

// NewSet creates a set holding the given values
func NewSet[T comparable](values ...T) Set[T] {
	s := make(Set[T], len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// Add inserts v into the set
func (s Set[T]) Add(v T) {
	s[v] = struct{}{}
}

// AddAll inserts every member of other
func (s Set[T]) AddAll(other Set[T]) {
	for v := range other {
		s[v] = struct{}{}
	}
}

// Has reports whether v is a member
func (s Set[T]) Has(v T) bool {
	_, ok := s[v]
	return ok
}

// Len returns the number of members; nil sets are empty
func (s Set[T]) Len() int {
	return len(s)
}

// Clone returns an independent copy
func (s Set[T]) Clone() Set[T] {
	out := make(Set[T], len(s))
	for v := range s {
		out[v] = struct{}{}
	}
	return out
}

// Equal reports whether both sets hold the same members
func (s Set[T]) Equal(other Set[T]) bool {
	if len(s) != len(other) {
		return false
	}
	for v := range s {
		if !other.Has(v) {
			return false
		}
	}
	return true
}

// IntersectionSize counts members present in both sets
func IntersectionSize[T comparable](a, b Set[T]) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for v := range a {
		if b.Has(v) {
			n++
		}
	}
	return n
}

// Sorted returns the members in ascending order
func Sorted[T cmp.Ordered](s Set[T]) []T {
	out := make([]T, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// Difference returns members of a that are not in b
func Difference[T comparable](a, b Set[T]) Set[T] {
	out := make(Set[T], len(a))
	for v := range a {
		if !b.Has(v) {
			out[v] = struct{}{}
		}
	}
	return out
}
