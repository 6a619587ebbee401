package montecarlo

import (
	"context"
	"fmt"
	"math"
	"math/bits"
	"time"

	guda "github.com/LynnColeArt/guda-mc"
)

// Result is the outcome of one Estimate call.
type Result struct {
	Estimate           float64 // scale * Inside / RealizedSamples
	AbsoluteErrorBound float64 // one standard error of Estimate

	Inside           uint64 // accepted samples over all units
	RequestedSamples uint64
	RealizedSamples  uint64 // SamplesPerUnit * Units, >= RequestedSamples
	SamplesPerUnit   uint64
	Units            uint32
	UnitsPerGroup    uint32
	Groups           uint32
	Elapsed          time.Duration

	// PerUnit is the host copy of the results buffer, indexed by identity.
	PerUnit []uint64
}

// ConfidenceInterval returns Estimate ± z standard errors.
func (r Result) ConfidenceInterval(z float64) (lo, hi float64) {
	return r.Estimate - z*r.AbsoluteErrorBound, r.Estimate + z*r.AbsoluteErrorBound
}

// StandardError is the binomial standard error of scale*inside/n:
// scale * sqrt(p(1-p)/n) with p = inside/n.
func StandardError(inside, n uint64, scale float64) float64 {
	if n == 0 {
		return math.Inf(1)
	}
	p := float64(inside) / float64(n)
	return scale * math.Sqrt(p*(1-p)/float64(n))
}

// Estimate runs totalUnits execution units over a budget of totalSamples
// points and reduces their counts into an estimate with a one-sigma error
// bound. The sample budget is split by ceiling division, so up to
// totalUnits-1 extra samples may be drawn.
//
// Errors are *guda.GUDAError values: InvalidArgument for bad inputs,
// Device when the buffer cannot be allocated or the grid cannot be
// launched, and Timeout when the completion barrier is not reached before
// ctx or the WithTimeout limit expires. A ctx that is already done is
// reported as a Timeout before any device work. Nothing is retried.
func Estimate(ctx context.Context, totalSamples uint64, totalUnits uint32, opts ...Option) (Result, error) {
	cfg := newConfig(opts)

	if err := validate(totalSamples, totalUnits, cfg); err != nil {
		estimatesTotal.WithLabelValues(outcome(err)).Inc()
		return Result{}, err
	}

	samplesPerUnit := ceilDiv(totalSamples, uint64(totalUnits))
	realized := samplesPerUnit * uint64(totalUnits)
	groups := uint32(ceilDiv(uint64(totalUnits), uint64(cfg.unitsPerGroup)))

	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	if err := ctx.Err(); err != nil {
		estimatesTotal.WithLabelValues("timeout").Inc()
		return Result{}, deviceTimeout(err)
	}

	start := time.Now()
	log := cfg.logger.With("samples", totalSamples, "units", totalUnits, "group", cfg.unitsPerGroup)
	log.Debug("estimate starting", "samples_per_unit", samplesPerUnit, "groups", groups)

	counts, err := launch(ctx, cfg, totalUnits, groups, samplesPerUnit)
	if err != nil {
		estimatesTotal.WithLabelValues(outcome(err)).Inc()
		log.Warn("estimate failed", "err", err)
		return Result{}, err
	}

	var inside uint64
	for _, c := range counts {
		inside += c
	}

	res := Result{
		Estimate:           cfg.scale * float64(inside) / float64(realized),
		AbsoluteErrorBound: StandardError(inside, realized, cfg.scale),
		Inside:             inside,
		RequestedSamples:   totalSamples,
		RealizedSamples:    realized,
		SamplesPerUnit:     samplesPerUnit,
		Units:              totalUnits,
		UnitsPerGroup:      cfg.unitsPerGroup,
		Groups:             groups,
		Elapsed:            time.Since(start),
		PerUnit:            counts,
	}

	estimatesTotal.WithLabelValues("ok").Inc()
	samplesTotal.Add(float64(realized))
	estimateDuration.Observe(res.Elapsed.Seconds())
	log.Info("estimate complete",
		"estimate", res.Estimate, "stderr", res.AbsoluteErrorBound, "elapsed", res.Elapsed)
	return res, nil
}

// validate rejects inputs before any device resource is touched.
func validate(totalSamples uint64, totalUnits uint32, cfg config) error {
	if totalSamples == 0 {
		return invalidArgument("total samples must be positive")
	}
	if totalUnits == 0 {
		return invalidArgument("total units must be positive")
	}
	if cfg.unitsPerGroup == 0 {
		return invalidArgument("units per group must be positive")
	}
	if cfg.accept == nil {
		return invalidArgument("predicate must not be nil")
	}
	if cfg.scale <= 0 || math.IsInf(cfg.scale, 0) || math.IsNaN(cfg.scale) {
		return invalidArgument(fmt.Sprintf("scale must be positive and finite, got %v", cfg.scale))
	}
	hi, _ := bits.Mul64(ceilDiv(totalSamples, uint64(totalUnits)), uint64(totalUnits))
	if hi != 0 {
		return invalidArgument("realized sample count overflows uint64")
	}
	return nil
}

// launch moves the computation through the device: allocate the results
// buffer, run the grid on a private stream, wait for it to complete, and copy
// the counts back into host memory.
func launch(ctx context.Context, cfg config, totalUnits, groups uint32, samplesPerUnit uint64) ([]uint64, error) {
	dev := cfg.device
	bufBytes := int(totalUnits) * 8

	d_counts, err := dev.Malloc(bufBytes)
	if err != nil {
		return nil, deviceUnavailable("cannot allocate results buffer", err)
	}

	stream := dev.CreateStream()
	release := func() {
		// DestroyStream drains the queue, so the buffer is never freed
		// under a running unit.
		dev.DestroyStream(stream)
		dev.Free(d_counts)
	}

	grid := guda.Dim3{X: int(groups), Y: 1, Z: 1}
	block := guda.Dim3{X: int(cfg.unitsPerGroup), Y: 1, Z: 1}
	done, err := dev.StartFunc(Kernel, grid, block, stream,
		d_counts, int(totalUnits), samplesPerUnit, cfg.accept)
	if err != nil {
		release()
		return nil, deviceUnavailable("cannot launch grid", err)
	}

	// The launch's own completion, so a concurrent Synchronize on the
	// device cannot consume a kernel failure meant for this estimate.
	if err := done.Wait(ctx); err != nil {
		if guda.IsTimeoutError(err) {
			go release()
			return nil, deviceTimeout(err)
		}
		release()
		return nil, deviceUnavailable("kernel did not complete", err)
	}

	counts := make([]uint64, totalUnits)
	err = dev.Memcpy(counts, d_counts, bufBytes, guda.MemcpyDeviceToHost)
	release()
	if err != nil {
		return nil, deviceUnavailable("cannot copy results to host", err)
	}
	return counts, nil
}

func ceilDiv(a, b uint64) uint64 {
	return a/b + min(a%b, 1)
}
