package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"streambench/internal/bench"
	"streambench/internal/monitor"
	"streambench/internal/workload"
)

// SystemInfo captures the host the benchmark ran on. Zero values mean the
// reading was unavailable.
type SystemInfo struct {
	PhysicalCores        int    `json:"physical_cores"`
	LogicalCores         int    `json:"logical_cores"`
	MemoryTotalBytes     uint64 `json:"memory_total_bytes"`
	MemoryAvailableBytes uint64 `json:"memory_available_bytes"`
	Accelerator          string `json:"accelerator,omitempty"`
}

// CollectSystemInfo reads host specs once, at report time.
func CollectSystemInfo(accel monitor.AcceleratorProvider) SystemInfo {
	var info SystemInfo
	if n, err := cpu.Counts(false); err == nil {
		info.PhysicalCores = n
	}
	if n, err := cpu.Counts(true); err == nil {
		info.LogicalCores = n
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.MemoryTotalBytes = vm.Total
		info.MemoryAvailableBytes = vm.Available
	}
	if accel != nil {
		info.Accelerator = accel.Device()
	}
	return info
}

// Report is the full sweep output written to disk.
type Report struct {
	SystemInfo SystemInfo                                   `json:"system_info"`
	Records    []bench.TrialRecord                          `json:"benchmark_results"`
	Analysis   map[workload.BackendMode]bench.OptimalConfig `json:"analysis"`
	Timestamp  time.Time                                    `json:"timestamp"`
}

func New(info SystemInfo, records []bench.TrialRecord, analysis map[workload.BackendMode]bench.OptimalConfig) Report {
	return Report{
		SystemInfo: info,
		Records:    records,
		Analysis:   analysis,
		Timestamp:  time.Now(),
	}
}

// WriteJSON writes the full report.
func (r Report) WriteJSON(filename string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return os.WriteFile(filename, data, 0644)
}

// Load reads a report back, e.g. for re-analysis.
func Load(filename string) (Report, error) {
	var r Report
	data, err := os.ReadFile(filename)
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("parse report %s: %w", filename, err)
	}
	return r, nil
}
