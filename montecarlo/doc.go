// Package montecarlo estimates π (or the area of any region of the unit
// square) by plain Monte Carlo on the guda runtime.
//
// Each execution unit owns one identity in [0, totalUnits), seeds an lcg
// generator with it, and counts accepted samples into its own slot of a
// device-resident results buffer. The host waits on a single completion
// barrier, copies the buffer back, and reduces it:
//
//	res, err := montecarlo.Estimate(ctx, 10_000_000, 1024)
//	if err != nil {
//		return err
//	}
//	fmt.Printf("π ≈ %.5f ± %.5f\n", res.Estimate, res.AbsoluteErrorBound)
//
// Seeding by identity alone is weak: neighbouring identities start from
// neighbouring states. It is kept because changing it would change every
// reported estimate.
package montecarlo
