package metrics

import (
	"fmt"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/process"
)

var (
	residentMemory = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "botctl",
			Subsystem: "process",
			Name:      "resident_memory_bytes",
			Help:      "Resident set size of the managed process.",
		}, []string{"process"},
	)
	cpuPercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "botctl",
			Subsystem: "process",
			Name:      "cpu_percent",
			Help:      "Average CPU usage of the managed process since it started.",
		}, []string{"process"},
	)
	numThreads = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "botctl",
			Subsystem: "process",
			Name:      "num_threads",
			Help:      "Number of threads of the managed process.",
		}, []string{"process"},
	)
	openFDs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "botctl",
			Subsystem: "process",
			Name:      "open_fds",
			Help:      "Open file descriptors of the managed process (Unix only).",
		}, []string{"process"},
	)
)

// Usage is a point-in-time resource snapshot of a process.
type Usage struct {
	PID        int32
	CPUPercent float64
	MemoryRSS  uint64
	NumThreads int32
	NumFDs     int32 // Unix only
}

// Sample reads the resource usage of pid and, when metrics are registered,
// records it under the given process label.
func Sample(name string, pid int) (Usage, error) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return Usage{}, fmt.Errorf("failed to create process handle: %w", err)
	}
	memInfo, err := proc.MemoryInfo()
	if err != nil {
		return Usage{}, fmt.Errorf("failed to get memory info: %w", err)
	}
	u := Usage{PID: int32(pid), MemoryRSS: memInfo.RSS}
	// A single sample has no previous reading, so this is lifetime average.
	if c, err := proc.CPUPercent(); err == nil {
		u.CPUPercent = c
	}
	if n, err := proc.NumThreads(); err == nil {
		u.NumThreads = n
	}
	if runtime.GOOS != "windows" {
		if n, err := proc.NumFDs(); err == nil {
			u.NumFDs = n
		}
	}
	if regOK.Load() {
		residentMemory.WithLabelValues(name).Set(float64(u.MemoryRSS))
		cpuPercent.WithLabelValues(name).Set(u.CPUPercent)
		numThreads.WithLabelValues(name).Set(float64(u.NumThreads))
		if runtime.GOOS != "windows" {
			openFDs.WithLabelValues(name).Set(float64(u.NumFDs))
		}
	}
	return u, nil
}
