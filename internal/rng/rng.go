// Package rng provides a seeded, bit-reproducible pseudo-random source.
//
// The generator is a 32-bit linear congruential generator seeded from a
// polynomial rolling hash of a string. All arithmetic is unsigned 32-bit
// with wraparound, so any implementation following the same steps produces
// the same sequence for the same seed and call order.
//
// An RNG is not safe for concurrent use. Each simulation run owns its own.
package rng

import "unicode/utf16"

// LCG parameters (Numerical Recipes).
const (
	lcgMultiplier uint32 = 1664525
	lcgIncrement  uint32 = 1013904223
	hashBase      uint32 = 31

	// twoPow32 converts a uint32 state into [0,1).
	twoPow32 = 4294967296.0
)

// RNG is a deterministic pseudo-random source.
type RNG struct {
	seed  string
	state uint32
}

// New creates an RNG seeded from the given string.
func New(seed string) *RNG {
	return &RNG{seed: seed, state: HashString(seed)}
}

// HashString folds s into 32 bits as h = h*31 + c over UTF-16 code units.
func HashString(s string) uint32 {
	var h uint32
	for _, cu := range utf16.Encode([]rune(s)) {
		h = h*hashBase + uint32(cu)
	}
	return h
}

// Seed returns the seed string the RNG was created with.
func (r *RNG) Seed() string {
	return r.seed
}

// State returns the current internal state.
func (r *RNG) State() uint32 {
	return r.state
}

// Restore sets the internal state, typically to a value State returned
// earlier. The seed string is unchanged.
func (r *RNG) Restore(state uint32) {
	r.state = state
}

// Next advances the generator and returns a float in [0,1).
func (r *RNG) Next() float64 {
	r.state = r.state*lcgMultiplier + lcgIncrement
	return float64(r.state) / twoPow32
}

// NextInt returns an integer in [min, max], both inclusive.
// If max < min, min is returned and the generator still advances.
func (r *RNG) NextInt(min, max int) int {
	f := r.Next()
	if max < min {
		return min
	}
	return min + int(f*float64(max-min+1))
}

// NextBoolean returns true with probability p.
func (r *RNG) NextBoolean(p float64) bool {
	return r.Next() < p
}

// Choose returns a uniformly selected element of items.
// The second return value is false when items is empty; the generator does
// not advance in that case.
func Choose[T any](r *RNG, items []T) (T, bool) {
	var zero T
	if len(items) == 0 {
		return zero, false
	}
	return items[r.NextInt(0, len(items)-1)], true
}

// Weighted pairs an item with a non-negative weight.
type Weighted[T any] struct {
	Item   T
	Weight float64
}

// WeightedChoose selects an item with probability proportional to its
// weight using cumulative subtraction. Rounding that leaves no item selected
// falls back to the last item. Negative weights count as zero.
func WeightedChoose[T any](r *RNG, items []Weighted[T]) (T, bool) {
	var zero T
	if len(items) == 0 {
		return zero, false
	}
	total := 0.0
	for _, it := range items {
		if it.Weight > 0 {
			total += it.Weight
		}
	}
	if total <= 0 {
		return Choose(r, itemsOf(items))
	}
	target := r.Next() * total
	for _, it := range items {
		if it.Weight <= 0 {
			continue
		}
		target -= it.Weight
		if target <= 0 {
			return it.Item, true
		}
	}
	return items[len(items)-1].Item, true
}

func itemsOf[T any](items []Weighted[T]) []T {
	out := make([]T, len(items))
	for i, it := range items {
		out[i] = it.Item
	}
	return out
}
