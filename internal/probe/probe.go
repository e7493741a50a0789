// Package probe abstracts the host's instantaneous resource counters behind
// a small capability interface. The monitor talks only to this interface;
// the concrete reads are done by gopsutil. Platforms where the counters
// cannot be read get a no-op implementation so callers degrade gracefully
// instead of failing.
package probe

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// IOCounters holds cumulative system-wide disk I/O counters. The field set
// and order are the fixed contract between the sampler and the monitor;
// component-wise arithmetic below depends on it.
type IOCounters struct {
	ReadCount  uint64 `json:"read_count"`
	WriteCount uint64 `json:"write_count"`
	ReadBytes  uint64 `json:"read_bytes"`
	WriteBytes uint64 `json:"write_bytes"`
	ReadTime   uint64 `json:"read_time"`
	WriteTime  uint64 `json:"write_time"`
}

// Delta returns the component-wise difference c - prev. Counters that moved
// backwards (counter wrap, device removal) clamp to zero rather than
// underflowing.
func (c IOCounters) Delta(prev IOCounters) IOCounters {
	return IOCounters{
		ReadCount:  sub(c.ReadCount, prev.ReadCount),
		WriteCount: sub(c.WriteCount, prev.WriteCount),
		ReadBytes:  sub(c.ReadBytes, prev.ReadBytes),
		WriteBytes: sub(c.WriteBytes, prev.WriteBytes),
		ReadTime:   sub(c.ReadTime, prev.ReadTime),
		WriteTime:  sub(c.WriteTime, prev.WriteTime),
	}
}

// Add returns the component-wise sum c + other.
func (c IOCounters) Add(other IOCounters) IOCounters {
	return IOCounters{
		ReadCount:  c.ReadCount + other.ReadCount,
		WriteCount: c.WriteCount + other.WriteCount,
		ReadBytes:  c.ReadBytes + other.ReadBytes,
		WriteBytes: c.WriteBytes + other.WriteBytes,
		ReadTime:   c.ReadTime + other.ReadTime,
		WriteTime:  c.WriteTime + other.WriteTime,
	}
}

func sub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}

// MemoryStats holds a virtual-memory snapshot.
type MemoryStats struct {
	Total       uint64  `json:"total"`
	Available   uint64  `json:"available"`
	Used        uint64  `json:"used"`
	Free        uint64  `json:"free"`
	Cached      uint64  `json:"cached"`
	Buffers     uint64  `json:"buffers"`
	UsedPercent float64 `json:"used_percent"`
}

// SwapStats holds a swap snapshot.
type SwapStats struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"used_percent"`
}

// Probe reads instantaneous host resource counters. Implementations must be
// safe to call repeatedly from a single goroutine; they are not required to
// be safe for concurrent use.
type Probe interface {
	// CPUPercent returns per-core utilization percentages measured over
	// the given interval. The call blocks for the full interval — the
	// sampler uses this as its pacing tick.
	CPUPercent(ctx context.Context, interval time.Duration) ([]float64, error)

	// DiskIOCounters returns cumulative system-wide disk I/O counters.
	DiskIOCounters(ctx context.Context) (IOCounters, error)

	// VirtualMemory returns the current virtual-memory stats.
	VirtualMemory(ctx context.Context) (MemoryStats, error)

	// SwapMemory returns the current swap stats.
	SwapMemory(ctx context.Context) (SwapStats, error)

	// IsAvailable reports whether this probe can read real counters on
	// the current platform.
	IsAvailable() bool
}

// Detect selects the probe implementation once, at construction time. It
// exercises every counter the sampler needs; if any read fails the whole
// capability is treated as absent and the no-op probe is returned, so the
// monitor degrades to empty results instead of erroring per call.
func Detect(logger *zap.Logger) Probe {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p := NewSystemProbe()
	if _, err := p.CPUPercent(ctx, 0); err != nil {
		logger.Warn("CPU counters unavailable, monitoring disabled", zap.Error(err))
		return NewNoopProbe()
	}
	if _, err := p.DiskIOCounters(ctx); err != nil {
		logger.Warn("Disk I/O counters unavailable, monitoring disabled", zap.Error(err))
		return NewNoopProbe()
	}
	if _, err := p.VirtualMemory(ctx); err != nil {
		logger.Warn("Memory counters unavailable, monitoring disabled", zap.Error(err))
		return NewNoopProbe()
	}
	if _, err := p.SwapMemory(ctx); err != nil {
		logger.Warn("Swap counters unavailable, monitoring disabled", zap.Error(err))
		return NewNoopProbe()
	}
	return p
}
