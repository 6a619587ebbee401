// Package lcg implements the 32-bit linear congruential generator that
// gives every execution unit its private random stream.
//
// A State is a plain value. Each unit seeds its own copy from its identity
// and advances it in place; nothing is shared between units.
package lcg

import "math/rand"

// Recurrence constants: state = (Multiplier*state + Increment) mod Modulus.
// Modulus is implied by uint32 wraparound.
const (
	Multiplier = 1664525
	Increment  = 1013904223
	Modulus    = 1 << 32
)

// State is the generator state. The zero value is a valid seed.
type State uint32

var _ rand.Source64 = (*State)(nil)

// NewState returns a generator seeded with id.
func NewState(id uint32) State {
	return State(id)
}

// Next advances the generator one step and returns the new state.
func (s *State) Next() uint32 {
	*s = *s*Multiplier + Increment
	return uint32(*s)
}

// Float64 advances one step and returns state/2^32, a value in [0, 1).
func (s *State) Float64() float64 {
	return float64(s.Next()) / Modulus
}

// Skip advances the generator n steps in O(log n) by composing the affine
// step map with itself.
func (s *State) Skip(n uint64) {
	accMul, accAdd := uint32(1), uint32(0)
	curMul, curAdd := uint32(Multiplier), uint32(Increment)
	for n > 0 {
		if n&1 == 1 {
			accMul *= curMul
			accAdd = accAdd*curMul + curAdd
		}
		curAdd *= curMul + 1
		curMul *= curMul
		n >>= 1
	}
	*s = State(accMul*uint32(*s) + accAdd)
}

// Seed implements rand.Source. Only the low 32 bits of seed are used.
func (s *State) Seed(seed int64) {
	*s = State(uint32(seed))
}

// Uint64 implements rand.Source64 from two consecutive steps.
func (s *State) Uint64() uint64 {
	hi := uint64(s.Next())
	return hi<<32 | uint64(s.Next())
}

// Int63 implements rand.Source.
func (s *State) Int63() int64 {
	return int64(s.Uint64() >> 1)
}
