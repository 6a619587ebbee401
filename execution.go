package guda

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// chunksPerWorker oversubscribes lanes so uneven blocks still balance.
const chunksPerWorker = 4

// validateLaunch checks a launch configuration against the device limits.
func (ctx *Context) validateLaunch(grid, block Dim3) error {
	if grid.X <= 0 || grid.Y <= 0 || grid.Z <= 0 {
		return NewInvalidArgError("Launch", fmt.Sprintf("grid dimensions must be positive, got %+v", grid))
	}
	if block.X <= 0 || block.Y <= 0 || block.Z <= 0 {
		return NewInvalidArgError("Launch", fmt.Sprintf("block dimensions must be positive, got %+v", block))
	}
	if block.Size() > ctx.device.MaxThreadsPerBlock {
		return NewDeviceError("Launch",
			fmt.Sprintf("block of %d threads exceeds device limit %d", block.Size(), ctx.device.MaxThreadsPerBlock),
			ErrLaunchTooLarge)
	}
	if grid.Size() > ctx.device.MaxGridSize {
		return NewDeviceError("Launch",
			fmt.Sprintf("grid of %d blocks exceeds device limit %d", grid.Size(), ctx.device.MaxGridSize),
			ErrLaunchTooLarge)
	}
	return nil
}

// launchInternal implements the core kernel execution logic
func (ctx *Context) launchInternal(
	kernelFunc func(ThreadID, ...interface{}),
	grid, block Dim3,
	stream *Stream,
	args ...interface{},
) (*Completion, error) {
	if ctx.destroyed.Load() {
		return nil, ErrContextDestroyed
	}
	if stream == nil {
		return nil, NewInvalidArgError("Launch", "nil stream")
	}
	if err := ctx.validateLaunch(grid, block); err != nil {
		kernelLaunches.WithLabelValues("rejected").Inc()
		return nil, err
	}

	// Calculate total work items
	gridSize := grid.Size()
	blockSize := block.Size()

	// Cache-aware scheduling: each chunk is a contiguous run of blocks
	numChunks := min(gridSize, ctx.workers*chunksPerWorker)
	blocksPerChunk := (gridSize + numChunks - 1) / numChunks

	ctx.logger.Debug("launching kernel",
		"stream", stream.id, "grid", grid, "block", block, "chunks", numChunks)

	done := &Completion{done: make(chan struct{})}

	// Submit work to stream
	err := stream.Submit(func() (taskErr error) {
		defer done.finish(&taskErr)
		start := time.Now()
		var g errgroup.Group
		g.SetLimit(ctx.workers)

		for startBlock := 0; startBlock < gridSize; startBlock += blocksPerChunk {
			endBlock := min(startBlock+blocksPerChunk, gridSize)
			g.Go(func() error {
				return runBlocks(kernelFunc, grid, block, blockSize, startBlock, endBlock, args)
			})
		}

		err := g.Wait()
		kernelDuration.Observe(time.Since(start).Seconds())
		kernelThreads.Add(float64(gridSize * blockSize))
		if err != nil {
			kernelLaunches.WithLabelValues("failed").Inc()
			ctx.logger.Error("kernel failed", "stream", stream.id, "err", err)
			return err
		}
		kernelLaunches.WithLabelValues("ok").Inc()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return done, nil
}

// Completion reports the outcome of one kernel launch. Unlike a stream
// barrier, which hands a failure to whichever barrier reaches it first,
// every Wait on a Completion sees the launch's own error.
type Completion struct {
	done chan struct{}
	err  error
}

func (c *Completion) finish(err *error) {
	c.err = *err
	close(c.done)
}

// Done is closed once every block of the launch has run.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the launch finishes or ctx is done. A launch that has
// already finished is reported even when ctx has expired too.
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		select {
		case <-c.done:
			return c.err
		default:
		}
		return NewTimeoutError("Wait", "kernel did not complete in time", ctx.Err())
	}
}

// runBlocks executes blocks [startBlock, endBlock) on the calling goroutine.
// For CPU, threads within a block run sequentially to maximize cache reuse.
// A panicking thread is reported as an execution error and ends its chunk;
// other chunks run to completion.
func runBlocks(
	kernelFunc func(ThreadID, ...interface{}),
	grid, block Dim3,
	blockSize, startBlock, endBlock int,
	args []interface{},
) (err error) {
	var tid ThreadID
	defer func() {
		if r := recover(); r != nil {
			err = NewExecutionError("Kernel",
				fmt.Sprintf("panic in block %+v thread %+v: %v", tid.BlockIdx, tid.ThreadIdx, r),
				ErrKernelFailed)
		}
	}()

	for blockID := startBlock; blockID < endBlock; blockID++ {
		blockIdx := linearTo3D(blockID, grid)
		for threadID := 0; threadID < blockSize; threadID++ {
			tid = ThreadID{
				BlockIdx:  blockIdx,
				ThreadIdx: linearTo3D(threadID, block),
				BlockDim:  block,
				GridDim:   grid,
			}
			kernelFunc(tid, args...)
		}
	}
	return nil
}

// linearTo3D converts a linear index to 3D coordinates
func linearTo3D(linear int, dim Dim3) Dim3 {
	z := linear / (dim.X * dim.Y)
	y := (linear % (dim.X * dim.Y)) / dim.X
	x := linear % dim.X
	return Dim3{X: x, Y: y, Z: z}
}
