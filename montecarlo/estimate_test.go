package montecarlo

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	guda "github.com/LynnColeArt/guda-mc"
)

func TestEstimateConverges(t *testing.T) {
	if testing.Short() {
		t.Skip("10M samples")
	}
	res, err := Estimate(context.Background(), 10_000_000, 1024)
	require.NoError(t, err)

	assert.InDelta(t, 3.14159, res.Estimate, 0.01)
	assert.Equal(t, uint64(10_000_384), res.RealizedSamples)
	assert.Equal(t, uint32(4), res.Groups)
	assert.Less(t, res.AbsoluteErrorBound, 0.001)
}

func TestEstimateSingleSample(t *testing.T) {
	res, err := Estimate(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Contains(t, []float64{0.0, 4.0}, res.Estimate)
	assert.Equal(t, uint64(1), res.RealizedSamples)
	assert.Equal(t, uint32(1), res.Groups)
}

func TestEstimatePartition(t *testing.T) {
	tests := []struct {
		samples uint64
		units   uint32
		spu     uint64
	}{
		{1000, 8, 125},
		{1000, 7, 143},
		{5, 10, 1},
		{1, 3, 1},
		{100_003, 64, 1563},
	}
	for _, tt := range tests {
		res, err := Estimate(context.Background(), tt.samples, tt.units)
		require.NoError(t, err)

		assert.Equal(t, tt.spu, res.SamplesPerUnit)
		assert.Equal(t, tt.spu*uint64(tt.units), res.RealizedSamples)
		assert.GreaterOrEqual(t, res.RealizedSamples, tt.samples)
		assert.Less(t, res.RealizedSamples-tt.samples, uint64(tt.units))
		require.Len(t, res.PerUnit, int(tt.units))

		var sum uint64
		for _, c := range res.PerUnit {
			assert.LessOrEqual(t, c, res.SamplesPerUnit)
			sum += c
		}
		assert.Equal(t, res.Inside, sum)
		assert.LessOrEqual(t, sum, res.RealizedSamples)
	}
}

func TestEstimateMatchesKernel(t *testing.T) {
	res, err := Estimate(context.Background(), 1000, 8)
	require.NoError(t, err)
	for id, c := range res.PerUnit {
		assert.Equal(t, CountInside(uint32(id), res.SamplesPerUnit, nil), c, "unit %d", id)
	}
	assert.InDelta(t, 3.124, res.Estimate, 1e-12)
}

func TestEstimateGroupingDoesNotChangeResults(t *testing.T) {
	base, err := Estimate(context.Background(), 50_000, 300, WithUnitsPerGroup(256))
	require.NoError(t, err)

	for _, g := range []uint32{1, 3, 32, 299, 300, 1024} {
		res, err := Estimate(context.Background(), 50_000, 300, WithUnitsPerGroup(g))
		require.NoError(t, err, "group size %d", g)
		assert.Equal(t, base.PerUnit, res.PerUnit, "group size %d", g)
		assert.Equal(t, base.Estimate, res.Estimate, "group size %d", g)
		assert.Equal(t, uint32((300+g-1)/g), res.Groups)
	}
}

func TestEstimateDeterministic(t *testing.T) {
	a, err := Estimate(context.Background(), 20_000, 16)
	require.NoError(t, err)
	b, err := Estimate(context.Background(), 20_000, 16)
	require.NoError(t, err)
	assert.Equal(t, a.Estimate, b.Estimate)
	assert.Equal(t, a.AbsoluteErrorBound, b.AbsoluteErrorBound)
}

func TestEstimateErrorBoundShrinks(t *testing.T) {
	var prev float64 = math.Inf(1)
	for _, n := range []uint64{1_000, 10_000, 100_000, 1_000_000} {
		res, err := Estimate(context.Background(), n, 64)
		require.NoError(t, err)
		assert.Less(t, res.AbsoluteErrorBound, prev, "%d samples", n)
		prev = res.AbsoluteErrorBound
	}
}

func TestEstimateInvalidArgument(t *testing.T) {
	tests := []struct {
		name    string
		samples uint64
		units   uint32
		opts    []Option
	}{
		{"zero samples", 0, 8, nil},
		{"zero units", 100, 0, nil},
		{"zero group", 100, 8, []Option{WithUnitsPerGroup(0)}},
		{"nil predicate", 100, 8, []Option{WithPredicate(nil, 4)}},
		{"zero scale", 100, 8, []Option{WithPredicate(QuarterDisk, 0)}},
		{"nan scale", 100, 8, []Option{WithPredicate(QuarterDisk, math.NaN())}},
		{"overflow", math.MaxUint64, 2, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// A one-byte device proves no allocation is attempted.
			dev := guda.NewContext(guda.WithMemoryLimit(1))
			defer dev.Destroy()

			res, err := Estimate(context.Background(), tt.samples, tt.units, append(tt.opts, WithDevice(dev))...)
			require.Error(t, err)
			assert.True(t, IsInvalidArgument(err), "got %v", err)
			assert.Zero(t, res)
		})
	}
}

func TestEstimateDeviceUnavailable(t *testing.T) {
	t.Run("buffer too large", func(t *testing.T) {
		dev := guda.NewContext(guda.WithMemoryLimit(1024))
		defer dev.Destroy()

		res, err := Estimate(context.Background(), 10_000, 1024, WithDevice(dev))
		require.Error(t, err)
		assert.True(t, IsDeviceUnavailable(err), "got %v", err)
		assert.True(t, guda.IsDeviceError(err))
		assert.Zero(t, res)
	})

	t.Run("group too large", func(t *testing.T) {
		dev := guda.NewContext()
		defer dev.Destroy()

		res, err := Estimate(context.Background(), 10_000, 4096,
			WithDevice(dev), WithUnitsPerGroup(guda.MaxThreadsPerBlock+1))
		require.Error(t, err)
		assert.True(t, IsDeviceUnavailable(err), "got %v", err)
		assert.Zero(t, res)

		live, _ := dev.MemoryStats()
		assert.Zero(t, live, "results buffer leaked")
	})
}

func TestEstimateTimeout(t *testing.T) {
	dev := guda.NewContext()
	defer dev.Destroy()

	release := make(chan struct{})
	blocking := func(u, v float64) bool {
		<-release
		return true
	}

	res, err := Estimate(context.Background(), 4, 4,
		WithDevice(dev), WithPredicate(blocking, 1), WithTimeout(20*time.Millisecond))
	require.Error(t, err)
	assert.True(t, IsDeviceTimeout(err), "got %v", err)
	assert.Zero(t, res)

	close(release)
	require.Eventually(t, func() bool {
		live, _ := dev.MemoryStats()
		return live == 0
	}, 5*time.Second, 5*time.Millisecond, "results buffer not released after the grid drained")
}

func TestEstimateContextDeadline(t *testing.T) {
	dev := guda.NewContext()
	defer dev.Destroy()

	release := make(chan struct{})
	defer close(release)
	blocking := func(u, v float64) bool {
		<-release
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := Estimate(ctx, 1, 1, WithDevice(dev), WithPredicate(blocking, 1))
	assert.True(t, IsDeviceTimeout(err), "got %v", err)
}

func TestEstimateCancelledContext(t *testing.T) {
	dev := guda.NewContext()
	defer dev.Destroy()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Estimate(ctx, 1000, 8, WithDevice(dev))
	require.Error(t, err)
	assert.True(t, IsDeviceTimeout(err), "got %v", err)
	assert.ErrorIs(t, err, context.Canceled)

	// Rejected before the results buffer was allocated
	_, peak := dev.MemoryStats()
	assert.Zero(t, peak)
}

func TestEstimateKernelFailureWithConcurrentSynchronize(t *testing.T) {
	for i := 0; i < 20; i++ {
		dev := guda.NewContext()

		running := make(chan struct{})
		gate := make(chan struct{})
		var once sync.Once
		failing := func(u, v float64) bool {
			once.Do(func() { close(running) })
			<-gate
			panic("boom")
		}

		errc := make(chan error, 1)
		go func() {
			_, err := Estimate(context.Background(), 4, 1, WithDevice(dev), WithPredicate(failing, 1))
			errc <- err
		}()

		<-running
		syncDone := make(chan struct{})
		go func() {
			defer close(syncDone)
			dev.Synchronize()
		}()
		close(gate)

		err := <-errc
		<-syncDone
		dev.Destroy()

		require.Error(t, err, "kernel failure hidden behind a result (iteration %d)", i)
		assert.True(t, IsDeviceUnavailable(err), "got %v", err)
		assert.ErrorIs(t, err, guda.ErrKernelFailed)
	}
}

func TestEstimateCustomRegion(t *testing.T) {
	// Lower triangle u > v covers half of the unit square.
	half := func(u, v float64) bool { return u > v }
	res, err := Estimate(context.Background(), 200_000, 32, WithPredicate(half, 1))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.Estimate, 5*res.AbsoluteErrorBound+0.005)
}

func TestEstimateReleasesBuffer(t *testing.T) {
	dev := guda.NewContext()
	defer dev.Destroy()

	_, err := Estimate(context.Background(), 10_000, 100, WithDevice(dev))
	require.NoError(t, err)

	live, peak := dev.MemoryStats()
	assert.Zero(t, live)
	assert.Positive(t, peak)
}

func TestStandardError(t *testing.T) {
	assert.InDelta(t, 4*math.Sqrt(0.25/100), StandardError(50, 100, 4), 1e-12)
	assert.Zero(t, StandardError(0, 100, 4))
	assert.Zero(t, StandardError(100, 100, 4))
	assert.True(t, math.IsInf(StandardError(0, 0, 4), 1))
}

func TestConfidenceInterval(t *testing.T) {
	r := Result{Estimate: 3.1, AbsoluteErrorBound: 0.01}
	lo, hi := r.ConfidenceInterval(2)
	assert.InDelta(t, 3.08, lo, 1e-12)
	assert.InDelta(t, 3.12, hi, 1e-12)
}

func BenchmarkEstimate(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := Estimate(context.Background(), 1_000_000, 1024); err != nil {
			b.Fatal(err)
		}
	}
}
