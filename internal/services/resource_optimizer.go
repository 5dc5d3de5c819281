package services

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
)

// ResourceOptimizerConfig holds the bounds for the computed parallelism.
type ResourceOptimizerConfig struct {
	MinWorkers      int     `json:"min_workers"`
	MaxWorkers      int     `json:"max_workers"`
	MemoryThreshold float64 `json:"memory_threshold"` // used percent above which parallelism is cut
}

// ResourceSnapshot is the host state a parallelism decision was based on.
type ResourceSnapshot struct {
	CPUCores      int     `json:"cpu_cores"`
	MemoryGB      float64 `json:"memory_gb"`
	MemoryUsedPct float64 `json:"memory_used_pct"`
	Workers       int     `json:"workers"`
}

// ResourceOptimizer sizes the asset loading pool from the host's cores and
// memory. It is used when analysis.max_parallel is left at zero.
type ResourceOptimizer struct {
	config ResourceOptimizerConfig
	logger *logrus.Logger

	cpuCounts func(ctx context.Context) (int, error)
	memory    func(ctx context.Context) (*mem.VirtualMemoryStat, error)
}

// NewResourceOptimizer creates a new resource optimizer
func NewResourceOptimizer(config ResourceOptimizerConfig, logger *logrus.Logger) *ResourceOptimizer {
	if config.MinWorkers <= 0 {
		config.MinWorkers = 2
	}
	if config.MaxWorkers < config.MinWorkers {
		config.MaxWorkers = 20
	}
	if config.MemoryThreshold <= 0 {
		config.MemoryThreshold = 85.0
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ResourceOptimizer{
		config:    config,
		logger:    logger,
		cpuCounts: func(ctx context.Context) (int, error) { return cpu.CountsWithContext(ctx, true) },
		memory:    mem.VirtualMemoryWithContext,
	}
}

// Optimize returns the worker count for the current host state.
func (ro *ResourceOptimizer) Optimize(ctx context.Context) ResourceSnapshot {
	snap := ResourceSnapshot{CPUCores: runtime.NumCPU(), MemoryGB: 8.0}
	if n, err := ro.cpuCounts(ctx); err == nil && n > 0 {
		snap.CPUCores = n
	}
	if vm, err := ro.memory(ctx); err == nil {
		snap.MemoryGB = float64(vm.Total) / (1024 * 1024 * 1024)
		snap.MemoryUsedPct = vm.UsedPercent
	} else {
		ro.logger.WithError(err).Warn("Could not get memory info, assuming 8GB")
	}

	workers := float64(snap.CPUCores * 2)
	switch {
	case snap.MemoryGB < 4.0:
		workers *= 0.5
	case snap.MemoryGB < 8.0:
		workers *= 0.75
	}
	if snap.MemoryUsedPct > ro.config.MemoryThreshold {
		workers *= 0.8
	}

	snap.Workers = int(workers)
	if snap.Workers < ro.config.MinWorkers {
		snap.Workers = ro.config.MinWorkers
	}
	if snap.Workers > ro.config.MaxWorkers {
		snap.Workers = ro.config.MaxWorkers
	}

	ro.logger.WithFields(logrus.Fields{
		"cpu_cores":       snap.CPUCores,
		"memory_gb":       snap.MemoryGB,
		"memory_used_pct": snap.MemoryUsedPct,
		"workers":         snap.Workers,
	}).Info("Calculated load parallelism")
	return snap
}
