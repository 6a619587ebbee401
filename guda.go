// Package guda provides a CUDA-compatible API for CPU execution.
// It runs data-parallel kernels on CPU cores with the CUDA programming
// model: device memory, host/device copies, grids of thread blocks, and
// streams with explicit synchronization.
//
// Example usage:
//
//	ctx := guda.NewContext()
//	defer ctx.Destroy()
//
//	// Allocate device memory
//	d_counts, _ := ctx.Malloc(n * 8) // n uint64s
//	defer ctx.Free(d_counts)
//
//	// Launch kernel
//	grid := guda.Dim3{X: (n + 255) / 256, Y: 1, Z: 1}
//	block := guda.Dim3{X: 256, Y: 1, Z: 1}
//	ctx.LaunchFunc(myKernel, grid, block, args...)
//
//	// Wait and copy back
//	ctx.Synchronize()
//	ctx.Memcpy(h_counts, d_counts, n*8, guda.MemcpyDeviceToHost)
package guda

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"
)

// Device represents a compute device. In GUDA, this is the CPU with its
// cores and available memory. Each device has a unique ID and capabilities.
type Device struct {
	ID                 int      // Unique device identifier
	Name               string   // Human-readable device name
	TotalMem           uint64   // Total available memory in bytes
	NumCores           int      // Number of CPU cores
	MaxThreads         int      // Maximum concurrent threads
	MaxThreadsPerBlock int      // Largest block a launch may request
	MaxGridSize        int      // Largest number of blocks in a launch
	Features           []string // Detected SIMD extensions
}

// Context represents an execution context for GUDA operations.
// It manages device resources, memory allocation, and stream execution.
// A Context must be created before any GUDA operations and should be
// destroyed when no longer needed.
type Context struct {
	device        *Device
	mu            sync.Mutex
	streams       map[int]*Stream
	streamID      int32
	memory        *MemoryPool
	defaultStream *Stream
	workers       int
	logger        *slog.Logger
	destroyed     atomic.Bool
}

// Stream represents an ordered sequence of operations that execute
// asynchronously. Operations within a stream execute in order, but
// operations in different streams may execute concurrently.
type Stream struct {
	id     int
	tasks  chan func() error
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
	errMu  sync.Mutex
	err    error
}

// Dim3 represents 3D dimensions for grid and block configurations.
// This matches CUDA's dim3 structure for kernel launch parameters.
type Dim3 struct {
	X, Y, Z int
}

// ThreadID identifies a thread's position within the execution hierarchy.
// It provides the same indexing semantics as CUDA's built-in variables:
// blockIdx, threadIdx, blockDim, and gridDim.
type ThreadID struct {
	BlockIdx  Dim3 // Block index within the grid
	ThreadIdx Dim3 // Thread index within the block
	BlockDim  Dim3 // Dimensions of the block
	GridDim   Dim3 // Dimensions of the grid
}

// Kernel represents a compute kernel that can be executed in parallel.
// Implementations should be thread-safe as Execute will be called
// concurrently from multiple threads.
type Kernel interface {
	Execute(tid ThreadID, args ...interface{})
}

// KernelFunc is a function that can be launched as a kernel.
// It receives thread identification and variadic arguments.
type KernelFunc func(tid ThreadID, args ...interface{})

// DevicePtr represents a pointer to device memory. It provides type-safe
// access to device memory and supports pointer arithmetic through the
// Offset method. Use the type conversion methods (Uint64, Float64, etc.)
// to access the underlying data.
type DevicePtr struct {
	ptr  unsafe.Pointer
	size int
}

// Global runtime state
var (
	defaultDevice  *Device
	defaultContext *Context
	initOnce       sync.Once
)

// Initialize GUDA runtime
func init() {
	initOnce.Do(func() {
		defaultDevice = &Device{
			ID:                 0,
			Name:               getCPUModel(),
			TotalMem:           getSystemMemory(),
			NumCores:           runtime.NumCPU(),
			MaxThreads:         runtime.NumCPU() * 2, // Hyperthreading
			MaxThreadsPerBlock: MaxThreadsPerBlock,
			MaxGridSize:        MaxGridSize,
			Features:           cpuFeatures.List(),
		}
		defaultContext = NewContext()
	})
}

// NewContext creates an execution context on the CPU device.
func NewContext(opts ...ContextOption) *Context {
	cfg := newContextConfig(defaultDevice, opts)
	ctx := &Context{
		device:  defaultDevice,
		streams: make(map[int]*Stream),
		memory:  NewMemoryPool(cfg.memLimit),
		workers: cfg.workers,
		logger:  cfg.logger,
	}

	// Create default stream
	ctx.defaultStream = ctx.CreateStream()
	return ctx
}

// DefaultContext returns the context backing the package-level functions.
func DefaultContext() *Context {
	return defaultContext
}

// Malloc allocates zeroed device memory of the specified size in bytes.
// The returned DevicePtr can be used with all GUDA operations.
//
// Example:
//
//	d_data, err := guda.Malloc(1024 * 8) // Allocate 1024 uint64s
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer guda.Free(d_data)
func Malloc(size int) (DevicePtr, error) {
	return defaultContext.Malloc(size)
}

// Free releases device memory allocated by Malloc.
// It is safe to call Free with a zero-value DevicePtr.
func Free(ptr DevicePtr) error {
	return defaultContext.Free(ptr)
}

// Memcpy copies memory between host and device.
// Supports Go slices ([]byte, []int32, []uint32, []uint64, []float32,
// []float64) and DevicePtr on either side.
//
// Parameters:
//   - dst: Destination (DevicePtr or Go slice)
//   - src: Source (DevicePtr or Go slice)
//   - size: Number of bytes to copy
//   - kind: Transfer direction (MemcpyHostToDevice, MemcpyDeviceToHost, etc.)
func Memcpy(dst, src interface{}, size int, kind MemcpyKind) error {
	return defaultContext.Memcpy(dst, src, size, kind)
}

// Launch executes a kernel on the default stream.
// The kernel is executed across a grid of thread blocks.
//
// Parameters:
//   - kernel: The kernel to execute
//   - grid: Grid dimensions (number of blocks)
//   - block: Block dimensions (threads per block)
//   - args: Kernel arguments
func Launch(kernel Kernel, grid, block Dim3, args ...interface{}) error {
	return defaultContext.Launch(kernel, grid, block, args...)
}

// LaunchFunc executes a kernel function
func LaunchFunc(fn KernelFunc, grid, block Dim3, args ...interface{}) error {
	return defaultContext.LaunchFunc(fn, grid, block, args...)
}

// Synchronize waits for all operations on all streams to complete.
// It returns the first kernel failure recorded since the last Synchronize.
func Synchronize() error {
	return defaultContext.Synchronize()
}

// GetDevice returns the current device information.
// In GUDA, this always returns the CPU device.
func GetDevice() *Device {
	return defaultDevice
}

// SetDevice sets the active device (no-op for CPU)
func SetDevice(id int) error {
	if id != 0 {
		return ErrInvalidDevice
	}
	return nil
}

// GetDeviceCount returns the number of available devices.
// GUDA always returns 1 as it only supports CPU execution.
func GetDeviceCount() int {
	return 1 // Only CPU
}

// GetDeviceProperties returns device properties
func GetDeviceProperties(id int) (*Device, error) {
	if id != 0 {
		return nil, NewInvalidArgError("GetDeviceProperties", fmt.Sprintf("invalid device ID: %d", id))
	}
	return defaultDevice, nil
}

// Context methods

// Device returns the device this context executes on.
func (ctx *Context) Device() *Device {
	return ctx.device
}

// Workers returns the number of parallel lanes a launch may use.
func (ctx *Context) Workers() int {
	return ctx.workers
}

// MemoryStats returns the live and peak device bytes held by this context.
func (ctx *Context) MemoryStats() (allocated, peak int64) {
	return ctx.memory.GetStats()
}

// MemoryLimit returns the most live device bytes this context hands out.
func (ctx *Context) MemoryLimit() int64 {
	return ctx.memory.Limit()
}

// CreateStream creates a new execution stream
func (ctx *Context) CreateStream() *Stream {
	id := int(atomic.AddInt32(&ctx.streamID, 1))
	stream := &Stream{
		id:    id,
		tasks: make(chan func() error, StreamQueueDepth),
		done:  make(chan struct{}),
	}

	// Start worker goroutine for stream
	go stream.worker()

	ctx.mu.Lock()
	ctx.streams[id] = stream
	ctx.mu.Unlock()
	return stream
}

// DestroyStream drains the stream and releases its worker.
// Destroying the default stream is not allowed.
func (ctx *Context) DestroyStream(stream *Stream) error {
	if stream == nil || stream == ctx.defaultStream {
		return NewInvalidArgError("DestroyStream", "cannot destroy nil or default stream")
	}
	ctx.mu.Lock()
	delete(ctx.streams, stream.id)
	ctx.mu.Unlock()
	stream.close()
	return nil
}

// Destroy waits for outstanding work and stops every stream.
// The context must not be used afterwards.
func (ctx *Context) Destroy() {
	if !ctx.destroyed.CompareAndSwap(false, true) {
		return
	}
	ctx.mu.Lock()
	streams := make([]*Stream, 0, len(ctx.streams))
	for _, s := range ctx.streams {
		streams = append(streams, s)
	}
	ctx.streams = make(map[int]*Stream)
	ctx.mu.Unlock()
	for _, s := range streams {
		s.close()
	}
}

// Launch executes a kernel on the default stream
func (ctx *Context) Launch(kernel Kernel, grid, block Dim3, args ...interface{}) error {
	return ctx.LaunchStream(kernel, grid, block, ctx.defaultStream, args...)
}

// LaunchFunc executes a kernel function on the default stream
func (ctx *Context) LaunchFunc(fn KernelFunc, grid, block Dim3, args ...interface{}) error {
	return ctx.LaunchFuncStream(fn, grid, block, ctx.defaultStream, args...)
}

// LaunchStream executes a kernel on a specific stream
func (ctx *Context) LaunchStream(kernel Kernel, grid, block Dim3, stream *Stream, args ...interface{}) error {
	_, err := ctx.launchInternal(kernel.Execute, grid, block, stream, args...)
	return err
}

// LaunchFuncStream executes a kernel function on a specific stream
func (ctx *Context) LaunchFuncStream(fn KernelFunc, grid, block Dim3, stream *Stream, args ...interface{}) error {
	_, err := ctx.launchInternal(fn, grid, block, stream, args...)
	return err
}

// StartFunc launches fn on stream like LaunchFuncStream and returns a
// Completion that reports this launch alone. A failure is still recorded
// on the stream for its next barrier.
func (ctx *Context) StartFunc(fn KernelFunc, grid, block Dim3, stream *Stream, args ...interface{}) (*Completion, error) {
	return ctx.launchInternal(fn, grid, block, stream, args...)
}

// Synchronize waits for all streams to complete
func (ctx *Context) Synchronize() error {
	return ctx.SynchronizeContext(context.Background())
}

// SynchronizeContext waits for all streams to complete or for c to be done,
// whichever happens first. Work that is still running when c expires keeps
// running; only the wait is abandoned.
func (ctx *Context) SynchronizeContext(c context.Context) error {
	ctx.mu.Lock()
	streams := make([]*Stream, 0, len(ctx.streams))
	for _, s := range ctx.streams {
		streams = append(streams, s)
	}
	ctx.mu.Unlock()

	var first error
	for _, s := range streams {
		err := s.SynchronizeContext(c)
		if errors.Is(err, ErrContextDestroyed) {
			// destroyed after the snapshot; it drained on close
			continue
		}
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Stream methods

// worker processes tasks for a stream
func (s *Stream) worker() {
	for task := range s.tasks {
		if err := task(); err != nil {
			s.recordErr(err)
		}
	}
	close(s.done)
}

func (s *Stream) recordErr(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
}

// takeErr returns and clears the first recorded task error.
func (s *Stream) takeErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	err := s.err
	s.err = nil
	return err
}

// ID returns the stream identifier.
func (s *Stream) ID() int {
	return s.id
}

// Synchronize waits for all tasks in the stream to complete
func (s *Stream) Synchronize() error {
	return s.SynchronizeContext(context.Background())
}

// SynchronizeContext waits for every task submitted before the call to
// finish and returns the first failure among them that no earlier barrier
// has reported. If c is done first it returns a timeout error; the queued
// work still runs to completion and its failure is left for the next
// barrier.
func (s *Stream) SynchronizeContext(c context.Context) error {
	marker := make(chan error)
	abandoned := make(chan struct{})
	err := s.Submit(func() error {
		// runs on the worker, after every earlier task
		err := s.takeErr()
		select {
		case marker <- err:
		case <-abandoned:
			if err != nil {
				s.recordErr(err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	select {
	case err := <-marker:
		return err
	case <-c.Done():
		select {
		case err := <-marker:
			return err
		default:
		}
		close(abandoned)
		return NewTimeoutError("Synchronize", fmt.Sprintf("stream %d did not drain in time", s.id), c.Err())
	}
}

// Submit adds a task to the stream
func (s *Stream) Submit(task func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrContextDestroyed
	}
	s.tasks <- task
	return nil
}

// close stops accepting work and waits for the queue to drain.
func (s *Stream) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	close(s.tasks)
	s.mu.Unlock()
	<-s.done
}

// Helper functions

// Global returns the global thread index
func (tid ThreadID) Global() int {
	return tid.BlockIdx.X*tid.BlockDim.X + tid.ThreadIdx.X
}

// GlobalX returns the global X index
func (tid ThreadID) GlobalX() int {
	return tid.BlockIdx.X*tid.BlockDim.X + tid.ThreadIdx.X
}

// GlobalY returns the global Y index
func (tid ThreadID) GlobalY() int {
	return tid.BlockIdx.Y*tid.BlockDim.Y + tid.ThreadIdx.Y
}

// GlobalZ returns the global Z index
func (tid ThreadID) GlobalZ() int {
	return tid.BlockIdx.Z*tid.BlockDim.Z + tid.ThreadIdx.Z
}

// Size returns the total number of elements
func (d Dim3) Size() int {
	return d.X * d.Y * d.Z
}

// Implement KernelFunc as Kernel
func (fn KernelFunc) Execute(tid ThreadID, args ...interface{}) {
	fn(tid, args...)
}
