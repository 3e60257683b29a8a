package metrics

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemSnapshot holds a point-in-time view of host and runtime state for
// the /status endpoint.
type SystemSnapshot struct {
	CPUUsagePercent    float64 `json:"cpu_usage_percent"`
	MemoryUsagePercent float64 `json:"memory_usage_percent"`
	MemoryUsedBytes    uint64  `json:"memory_used_bytes"`
	MemoryTotalBytes   uint64  `json:"memory_total_bytes"`
	GoVersion          string  `json:"go_version"`
	Goroutines         int     `json:"goroutines"`
	HeapAllocBytes     uint64  `json:"heap_alloc_bytes"`
	NumGC              uint32  `json:"num_gc"`
	Timestamp          int64   `json:"timestamp"`
}

// CollectSystem gathers CPU, memory and Go runtime statistics. Collection
// failures degrade to zero values rather than failing the status request.
func CollectSystem() *SystemSnapshot {
	snapshot := &SystemSnapshot{
		GoVersion:  runtime.Version(),
		Goroutines: runtime.NumGoroutine(),
		Timestamp:  time.Now().Unix(),
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	snapshot.HeapAllocBytes = memStats.HeapAlloc
	snapshot.NumGC = memStats.NumGC

	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		snapshot.CPUUsagePercent = percentages[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		snapshot.MemoryUsagePercent = vm.UsedPercent
		snapshot.MemoryUsedBytes = vm.Used
		snapshot.MemoryTotalBytes = vm.Total
	}

	return snapshot
}
