package montecarlo

import (
	guda "github.com/LynnColeArt/guda-mc"
	"github.com/LynnColeArt/guda-mc/lcg"
)

// Predicate decides whether a sample point (u, v) in [0,1)² is accepted.
// It must be a pure function: units call it concurrently.
type Predicate func(u, v float64) bool

// QuarterDisk accepts points inside the unit circle. The accepted fraction
// of the unit square converges to π/4.
func QuarterDisk(u, v float64) bool {
	return u*u+v*v <= 1
}

// PiScale converts the QuarterDisk acceptance fraction into an estimate of π.
const PiScale = 4

// CountInside is the body of one execution unit. It seeds a private
// generator with identity, draws samplesPerUnit points (two steps per
// point) and returns how many were accepted. A nil accept means QuarterDisk.
func CountInside(identity uint32, samplesPerUnit uint64, accept Predicate) uint64 {
	if accept == nil {
		accept = QuarterDisk
	}
	state := lcg.NewState(identity)
	var inside uint64
	for i := uint64(0); i < samplesPerUnit; i++ {
		u := state.Float64()
		v := state.Float64()
		if accept(u, v) {
			inside++
		}
	}
	return inside
}

// Kernel runs CountInside for one thread of a launch and stores the count
// in the slot indexed by the thread's global identity. Launch arguments:
//
//	args[0] guda.DevicePtr  results buffer, one uint64 per unit
//	args[1] int             total units; threads past it exit
//	args[2] uint64          samples per unit
//	args[3] Predicate       acceptance predicate
var Kernel guda.KernelFunc = func(tid guda.ThreadID, args ...interface{}) {
	counts := args[0].(guda.DevicePtr).Uint64()
	totalUnits := args[1].(int)
	samplesPerUnit := args[2].(uint64)
	accept := args[3].(Predicate)

	id := tid.Global()
	if id >= totalUnits {
		return
	}
	counts[id] = CountInside(uint32(id), samplesPerUnit, accept)
}
