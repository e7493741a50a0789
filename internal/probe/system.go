// Host-backed probe — reads real counters through gopsutil.
package probe

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemProbe reads host counters via gopsutil.
type SystemProbe struct{}

// NewSystemProbe creates a probe backed by the host OS counters.
func NewSystemProbe() *SystemProbe {
	return &SystemProbe{}
}

// CPUPercent returns per-core utilization measured over interval. gopsutil
// blocks for the interval while the OS accumulates the average.
func (p *SystemProbe) CPUPercent(ctx context.Context, interval time.Duration) ([]float64, error) {
	return cpu.PercentWithContext(ctx, interval, true)
}

// DiskIOCounters returns cumulative disk I/O summed across all devices.
func (p *SystemProbe) DiskIOCounters(ctx context.Context) (IOCounters, error) {
	perDevice, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		return IOCounters{}, err
	}

	var total IOCounters
	for _, d := range perDevice {
		total = total.Add(IOCounters{
			ReadCount:  d.ReadCount,
			WriteCount: d.WriteCount,
			ReadBytes:  d.ReadBytes,
			WriteBytes: d.WriteBytes,
			ReadTime:   d.ReadTime,
			WriteTime:  d.WriteTime,
		})
	}
	return total, nil
}

// VirtualMemory returns the current virtual-memory stats.
func (p *SystemProbe) VirtualMemory(ctx context.Context) (MemoryStats, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemoryStats{}, err
	}
	return MemoryStats{
		Total:       v.Total,
		Available:   v.Available,
		Used:        v.Used,
		Free:        v.Free,
		Cached:      v.Cached,
		Buffers:     v.Buffers,
		UsedPercent: v.UsedPercent,
	}, nil
}

// SwapMemory returns the current swap stats.
func (p *SystemProbe) SwapMemory(ctx context.Context) (SwapStats, error) {
	s, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		return SwapStats{}, err
	}
	return SwapStats{
		Total:       s.Total,
		Used:        s.Used,
		Free:        s.Free,
		UsedPercent: s.UsedPercent,
	}, nil
}

// IsAvailable returns true — availability is decided by Detect, which only
// hands out a SystemProbe after every counter read succeeded once.
func (p *SystemProbe) IsAvailable() bool { return true }
