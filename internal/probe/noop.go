// No-op probe for platforms where the host counters cannot be read.
// Every read succeeds with zero values; IsAvailable reports false so the
// monitor can skip sampling entirely.
package probe

import (
	"context"
	"time"
)

// NoopProbe is the null implementation of Probe.
type NoopProbe struct{}

// NewNoopProbe creates a probe that reads nothing.
func NewNoopProbe() *NoopProbe {
	return &NoopProbe{}
}

// CPUPercent returns no cores. It still honors the pacing interval so a
// caller that loops on it does not spin.
func (p *NoopProbe) CPUPercent(ctx context.Context, interval time.Duration) ([]float64, error) {
	if interval > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
	return nil, nil
}

// DiskIOCounters returns zero counters.
func (p *NoopProbe) DiskIOCounters(ctx context.Context) (IOCounters, error) {
	return IOCounters{}, nil
}

// VirtualMemory returns zero stats.
func (p *NoopProbe) VirtualMemory(ctx context.Context) (MemoryStats, error) {
	return MemoryStats{}, nil
}

// SwapMemory returns zero stats.
func (p *NoopProbe) SwapMemory(ctx context.Context) (SwapStats, error) {
	return SwapStats{}, nil
}

// IsAvailable returns false.
func (p *NoopProbe) IsAvailable() bool { return false }
