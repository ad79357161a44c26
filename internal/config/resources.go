package config

import (
	"runtime"

	"github.com/klauspost/cpuid"
	"github.com/pbnjay/memory"
)

// Scoring a full-resolution image holds the decoded planes plus per-patch
// scratch buffers; this is the per-worker memory budget used for sizing.
const workerMemoryMiB = 256

// HostInfo describes the machine the engine runs on.
type HostInfo struct {
	CPU           string `json:"cpu"`
	PhysicalCores int    `json:"physical_cores"`
	LogicalCores  int    `json:"logical_cores"`
	AVX2          bool   `json:"avx2"`
	MemoryMiB     uint64 `json:"memory_mib"`
	GOMAXPROCS    int    `json:"gomaxprocs"`
}

// DescribeHost collects CPU and memory facts for startup logs and /health.
func DescribeHost() HostInfo {
	return HostInfo{
		CPU:           cpuid.CPU.BrandName,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
		AVX2:          cpuid.CPU.AVX2(),
		MemoryMiB:     memory.TotalMemory() / 1024 / 1024,
		GOMAXPROCS:    runtime.GOMAXPROCS(0),
	}
}

// DefaultWorkers sizes the scoring worker pool from the CPU count, capped
// by available memory. It never returns less than one.
func DefaultWorkers() int {
	return workersFor(runtime.GOMAXPROCS(0), memory.TotalMemory()/1024/1024)
}

func workersFor(cpus int, memMiB uint64) int {
	workers := cpus
	if memMiB > 0 {
		if byMem := int(memMiB / workerMemoryMiB); byMem < workers {
			workers = byMem
		}
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}
