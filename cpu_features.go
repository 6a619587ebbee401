package guda

import (
	"context"
	"runtime"
	"strings"
	"time"

	gcpu "github.com/shirou/gopsutil/v4/cpu"
	gmem "github.com/shirou/gopsutil/v4/mem"
	"golang.org/x/sys/cpu"
)

// CPUFeatures tracks available CPU instruction set extensions
type CPUFeatures struct {
	HasAVX      bool
	HasAVX2     bool
	HasAVX512F  bool // Foundation
	HasAVX512DQ bool // Double/Quad precision
	HasAVX512BW bool // Byte/Word
	HasAVX512VL bool // Vector Length
	HasFMA      bool
	HasSSE4     bool
	HasNEON     bool // ARM64 ASIMD
	HasFP16     bool // ARM64 half precision
}

// Global CPU feature detection, resolved before any init function runs
var cpuFeatures = detectCPUFeatures()

// detectCPUFeatures reads the extensions reported by golang.org/x/sys/cpu
func detectCPUFeatures() CPUFeatures {
	return CPUFeatures{
		HasSSE4:     cpu.X86.HasSSE41 || cpu.X86.HasSSE42,
		HasAVX:      cpu.X86.HasAVX,
		HasAVX2:     cpu.X86.HasAVX2,
		HasAVX512F:  cpu.X86.HasAVX512F,
		HasAVX512DQ: cpu.X86.HasAVX512DQ,
		HasAVX512BW: cpu.X86.HasAVX512BW,
		HasAVX512VL: cpu.X86.HasAVX512VL,
		HasFMA:      cpu.X86.HasFMA,
		HasNEON:     cpu.ARM64.HasASIMD,
		HasFP16:     cpu.ARM64.HasFPHP && cpu.ARM64.HasASIMDHP,
	}
}

// List returns the names of the detected extensions.
func (f CPUFeatures) List() []string {
	features := []string{}
	add := func(ok bool, name string) {
		if ok {
			features = append(features, name)
		}
	}
	add(f.HasSSE4, "SSE4")
	add(f.HasAVX, "AVX")
	add(f.HasAVX2, "AVX2")
	add(f.HasFMA, "FMA")
	add(f.HasAVX512F, "AVX512F")
	add(f.HasAVX512DQ, "AVX512DQ")
	add(f.HasAVX512BW, "AVX512BW")
	add(f.HasAVX512VL, "AVX512VL")
	add(f.HasNEON, "NEON")
	add(f.HasFP16, "FP16")
	return features
}

// GetCPUInfo returns a string describing available CPU features
func GetCPUInfo() string {
	features := cpuFeatures.List()
	if len(features) == 0 {
		return "No SIMD extensions detected"
	}
	return "CPU features: " + strings.Join(features, ", ")
}

// probeTimeout bounds host probes so runtime init never hangs on a slow /proc.
const probeTimeout = 2 * time.Second

// getSystemMemory returns total system memory in bytes
func getSystemMemory() uint64 {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	vm, err := gmem.VirtualMemoryWithContext(ctx)
	if err != nil || vm.Total == 0 {
		return DefaultTotalMem
	}
	return vm.Total
}

// getCPUModel returns the host CPU model name, or "CPU" if unknown.
func getCPUModel() string {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	info, err := gcpu.InfoWithContext(ctx)
	if err != nil || len(info) == 0 || info[0].ModelName == "" {
		return "CPU (" + runtime.GOARCH + ")"
	}
	return strings.TrimSpace(info[0].ModelName)
}
