package guda

import (
	"fmt"
	"sync"
	"unsafe"
)

// MemcpyKind specifies the direction of memory transfer.
// In GUDA's unified memory model, these are provided for CUDA compatibility
// but may be treated identically since all memory is CPU-accessible.
type MemcpyKind int

const (
	MemcpyHostToHost     MemcpyKind = iota // Host to host transfer
	MemcpyHostToDevice                     // Host to device transfer
	MemcpyDeviceToHost                     // Device to host transfer
	MemcpyDeviceToDevice                   // Device to device transfer
	MemcpyDefault                          // Default transfer (infer direction)
)

// MemoryPool manages device memory allocation with efficient reuse.
// It maintains a free list of previously allocated blocks to reduce
// allocation overhead and memory fragmentation.
type MemoryPool struct {
	mu         sync.Mutex
	allocated  map[uintptr]*allocation
	freeList   []*allocation
	totalAlloc int64
	peakAlloc  int64
	limit      int64
}

type allocation struct {
	buf  []byte
	size int
	used bool
}

// NewMemoryPool creates a new memory pool that refuses allocations once
// limit live bytes are in use. The pool tracks allocations and provides
// statistics on memory usage.
func NewMemoryPool(limit int64) *MemoryPool {
	return &MemoryPool{
		allocated: make(map[uintptr]*allocation),
		limit:     limit,
	}
}

// Malloc allocates zeroed device memory of the specified size in bytes.
//
// Example:
//
//	ptr, err := ctx.Malloc(1024 * 8)
//	if err != nil {
//	    return err
//	}
//	defer ctx.Free(ptr)
func (ctx *Context) Malloc(size int) (DevicePtr, error) {
	if ctx.destroyed.Load() {
		return DevicePtr{}, ErrContextDestroyed
	}
	ptr, err := ctx.memory.Allocate(size)
	if err != nil {
		ctx.logger.Warn("device allocation refused", "bytes", size, "err", err)
		return DevicePtr{}, err
	}
	return ptr, nil
}

// Free releases device memory allocated by Malloc.
// It is safe to call Free with a zero DevicePtr.
// The memory may be retained in the pool for future allocations.
func (ctx *Context) Free(ptr DevicePtr) error {
	return ctx.memory.Free(ptr)
}

// Memcpy copies memory between host and device.
// Supports various combinations of DevicePtr and Go slices. The two sides
// never alias: the bytes are always copied.
//
// Parameters:
//   - dst: Destination (DevicePtr or Go slice)
//   - src: Source (DevicePtr or Go slice)
//   - size: Number of bytes to copy
//   - kind: Transfer direction (for CUDA compatibility)
func (ctx *Context) Memcpy(dst, src interface{}, size int, kind MemcpyKind) error {
	if size < 0 {
		return NewInvalidArgError("Memcpy", fmt.Sprintf("negative size %d", size))
	}
	if kind < MemcpyHostToHost || kind > MemcpyDefault {
		return NewInvalidArgError("Memcpy", fmt.Sprintf("unknown copy kind %d", kind))
	}

	dstBytes, err := asBytes(dst)
	if err != nil {
		return memcpyArgError("dst", dst, err)
	}
	srcBytes, err := asBytes(src)
	if err != nil {
		return memcpyArgError("src", src, err)
	}

	if size > len(dstBytes) || size > len(srcBytes) {
		return NewInvalidArgError("Memcpy",
			fmt.Sprintf("copy of %d bytes exceeds dst (%d) or src (%d)", size, len(dstBytes), len(srcBytes)))
	}

	copy(dstBytes[:size], srcBytes[:size])
	return nil
}

func memcpyArgError(side string, v interface{}, err error) error {
	if err == ErrNullPointer {
		return err
	}
	return NewInvalidArgError("Memcpy", fmt.Sprintf("unsupported %s type: %T", side, v))
}

// asBytes returns the byte extent behind a DevicePtr or host slice.
func asBytes(v interface{}) ([]byte, error) {
	switch d := v.(type) {
	case DevicePtr:
		if d.ptr == nil {
			return nil, ErrNullPointer
		}
		return d.Byte(), nil
	case []byte:
		return d, nil
	case []int32:
		return sliceBytes(d), nil
	case []uint32:
		return sliceBytes(d), nil
	case []uint64:
		return sliceBytes(d), nil
	case []float32:
		return sliceBytes(d), nil
	case []float64:
		return sliceBytes(d), nil
	default:
		return nil, ErrNotSupported
	}
}

func sliceBytes[T int32 | uint32 | uint64 | float32 | float64](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}

// MemoryPool methods

// Allocate allocates zeroed memory from the pool
func (mp *MemoryPool) Allocate(size int) (DevicePtr, error) {
	if size <= 0 {
		return DevicePtr{}, ErrInvalidSize
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	// Round up to alignment
	alignedSize := (size + MemoryAlignment - 1) &^ (MemoryAlignment - 1)

	// Try to reuse from free list
	for i, alloc := range mp.freeList {
		if alloc.size >= alignedSize {
			if err := mp.reserve(alloc.size, size); err != nil {
				return DevicePtr{}, err
			}
			mp.freeList = append(mp.freeList[:i], mp.freeList[i+1:]...)
			alloc.used = true
			clear(alloc.buf)

			return DevicePtr{
				ptr:  unsafe.Pointer(&alloc.buf[0]),
				size: size,
			}, nil
		}
	}

	if err := mp.reserve(alignedSize, size); err != nil {
		return DevicePtr{}, err
	}

	// make zeroes the block and the pool's map keeps it reachable
	buf := make([]byte, alignedSize)
	ptr := unsafe.Pointer(&buf[0])
	mp.allocated[uintptr(ptr)] = &allocation{
		buf:  buf,
		size: alignedSize,
		used: true,
	}

	return DevicePtr{
		ptr:  ptr,
		size: size,
	}, nil
}

// reserve accounts for n bytes or refuses when the limit would be exceeded.
// mp.mu must be held.
func (mp *MemoryPool) reserve(n, requested int) error {
	if mp.limit > 0 && mp.totalAlloc+int64(n) > mp.limit {
		allocationFailures.Inc()
		return NewMemoryError("Malloc",
			fmt.Sprintf("cannot allocate %d bytes: %d of %d bytes in use", requested, mp.totalAlloc, mp.limit),
			ErrOutOfMemory)
	}
	mp.totalAlloc += int64(n)
	if mp.totalAlloc > mp.peakAlloc {
		mp.peakAlloc = mp.totalAlloc
	}
	deviceMemoryBytes.Add(float64(n))
	return nil
}

// Free returns memory to the pool
func (mp *MemoryPool) Free(ptr DevicePtr) error {
	if ptr.ptr == nil {
		return nil
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	alloc, ok := mp.allocated[uintptr(ptr.ptr)]
	if !ok {
		return NewMemoryError("Free", "pointer not found in allocation pool", nil)
	}

	if !alloc.used {
		return ErrDoubleFree
	}

	// Mark as free and add to free list
	alloc.used = false
	mp.freeList = append(mp.freeList, alloc)
	mp.totalAlloc -= int64(alloc.size)
	deviceMemoryBytes.Sub(float64(alloc.size))

	return nil
}

// GetStats returns memory pool statistics
func (mp *MemoryPool) GetStats() (allocated, peak int64) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.totalAlloc, mp.peakAlloc
}

// Limit returns the maximum number of live bytes the pool hands out.
func (mp *MemoryPool) Limit() int64 {
	return mp.limit
}

// DevicePtr methods for convenience

// Uint64 returns a uint64 slice view of the device memory.
//
// Example:
//
//	d_counts, _ := guda.Malloc(1024 * 8)
//	counts := d_counts.Uint64()
//	counts[0] = 42
func (d DevicePtr) Uint64() []uint64 {
	if d.ptr == nil {
		return nil
	}
	return unsafe.Slice((*uint64)(d.ptr), d.size/8)
}

// Uint32 returns a uint32 slice view of the device memory.
func (d DevicePtr) Uint32() []uint32 {
	if d.ptr == nil {
		return nil
	}
	return unsafe.Slice((*uint32)(d.ptr), d.size/4)
}

// Int32 returns an int32 slice view of the device memory.
func (d DevicePtr) Int32() []int32 {
	if d.ptr == nil {
		return nil
	}
	return unsafe.Slice((*int32)(d.ptr), d.size/4)
}

// Float32 returns a float32 slice view of the device memory.
func (d DevicePtr) Float32() []float32 {
	if d.ptr == nil {
		return nil
	}
	return unsafe.Slice((*float32)(d.ptr), d.size/4)
}

// Float64 returns a float64 slice view of the device memory.
func (d DevicePtr) Float64() []float64 {
	if d.ptr == nil {
		return nil
	}
	return unsafe.Slice((*float64)(d.ptr), d.size/8)
}

// Byte returns a byte slice view of the device memory.
// The slice covers the entire allocated memory region.
func (d DevicePtr) Byte() []byte {
	if d.ptr == nil {
		return nil
	}
	return unsafe.Slice((*byte)(d.ptr), d.size)
}

// Offset returns a new DevicePtr offset by the given number of bytes.
// The returned DevicePtr shares the same underlying memory and cannot be
// passed to Free.
func (d DevicePtr) Offset(bytes int) DevicePtr {
	return DevicePtr{
		ptr:  unsafe.Add(d.ptr, bytes),
		size: d.size - bytes,
	}
}

// Size returns the size in bytes of the memory region
func (d DevicePtr) Size() int {
	return d.size
}

// IsNil reports whether the pointer refers to no memory.
func (d DevicePtr) IsNil() bool {
	return d.ptr == nil
}
