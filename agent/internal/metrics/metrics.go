// Package metrics collects host resource utilization for heartbeat reporting.
package metrics

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/arkeep-io/arkeep/shared/wire"
)

// collectTimeout bounds how long a single sample may take — heartbeats run
// on a fixed interval and must not stall behind a slow /proc read.
const collectTimeout = 2 * time.Second

// Collect returns a snapshot of current host resource usage. Any individual
// sampler that fails contributes a zero value rather than aborting the
// whole heartbeat — a missing metric is better than a missed heartbeat.
func Collect() wire.AgentMetrics {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	var m wire.AgentMetrics

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		m.CPUPercent = percents[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		m.MemoryUsedBytes = vm.Used
	}

	if usage, err := disk.UsageWithContext(ctx, "/"); err == nil {
		m.DiskFreeBytes = usage.Free
	}

	return m
}
