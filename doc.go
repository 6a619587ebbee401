// Copyright ©2019 The Gonum Authors. All rights reserved.
// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package guda provides a CUDA-compatible API for CPU execution.
//
// The runtime mirrors the CUDA host API closely enough that GPU-style
// data-parallel programs port with little change:
//   - Malloc/Free hand out zeroed device buffers from a bounded pool
//   - Memcpy moves bytes between host slices and device buffers
//   - Launch runs a kernel over a grid of thread blocks on CPU cores
//   - Synchronize is the completion barrier between launch and readback
//
// Kernels are plain Go functions invoked once per thread with a ThreadID.
// Blocks are spread over worker goroutines; threads inside a block run
// sequentially. The montecarlo subpackage builds a parallel stochastic
// estimator on top of this runtime.
package guda
