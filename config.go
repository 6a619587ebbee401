// Package guda configuration constants
package guda

import (
	"log/slog"
	"runtime"
)

// Thread and block dimensions
const (
	// Default block size for kernels
	DefaultBlockSize = 256

	// Maximum threads per block (CUDA compatibility)
	MaxThreadsPerBlock = 1024

	// Maximum number of blocks in a launch (CUDA's gridDim.x limit)
	MaxGridSize = 1<<31 - 1
)

// Memory pool parameters
const (
	// Memory alignment for allocations
	MemoryAlignment = 64

	// Fallback when the host memory size cannot be probed
	DefaultTotalMem = 16 * 1024 * 1024 * 1024
)

// Stream parameters
const (
	// Pending tasks a stream buffers before Submit blocks
	StreamQueueDepth = 1000
)

// contextConfig collects the settings applied by ContextOption values.
type contextConfig struct {
	memLimit int64
	workers  int
	logger   *slog.Logger
}

// ContextOption configures a Context created by NewContext.
type ContextOption func(*contextConfig)

// WithMemoryLimit caps the number of live bytes the context may allocate.
// A limit <= 0 means the device's total memory.
func WithMemoryLimit(bytes int64) ContextOption {
	return func(c *contextConfig) {
		c.memLimit = bytes
	}
}

// WithWorkers sets the number of parallel lanes used to execute blocks.
// n <= 0 selects runtime.NumCPU().
func WithWorkers(n int) ContextOption {
	return func(c *contextConfig) {
		c.workers = n
	}
}

// WithLogger routes runtime diagnostics to logger.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *contextConfig) {
		c.logger = logger
	}
}

func newContextConfig(dev *Device, opts []ContextOption) contextConfig {
	cfg := contextConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.memLimit <= 0 {
		cfg.memLimit = int64(dev.TotalMem)
	}
	if cfg.workers <= 0 {
		cfg.workers = runtime.NumCPU()
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	return cfg
}
