// Sampler goroutine and the tagged-entry protocol between the sampler and
// the monitor. The sampler buffers entries locally while running and flushes
// everything on exit, so its loop never blocks on the channel and never
// touches the monitor's storage directly.
package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/resmon-dev/resmon/internal/probe"
)

// entryKind tags one value on the sampler→monitor channel.
type entryKind uint8

const (
	entryTime entryKind = iota
	entryIO
	entryVirt
	entrySwap
	entryCPU
	entryDone
)

// entry is the tagged union carried on the channel. Exactly one payload
// field is meaningful, selected by kind; entryDone carries none.
type entry struct {
	kind entryKind
	time time.Time
	cpu  []float64
	io   probe.IOCounters
	virt probe.MemoryStats
	swap probe.SwapStats
}

// sampler polls the probe on its own goroutine until the stop channel is
// closed. It owns the sending end of out and closes it when done.
type sampler struct {
	probe    probe.Probe
	interval time.Duration
	out      chan<- entry
	stop     <-chan struct{}
	logger   *zap.Logger
}

// run is the sampler main loop. On every exit path it flushes the buffered
// entries, sends the terminal sentinel, and closes the channel — a failed
// counter read loses the rest of the run, not the data already collected.
func (s *sampler) run() {
	var buf []entry

	defer func() {
		for _, e := range buf {
			s.out <- e
		}
		s.out <- entry{kind: entryDone}
		close(s.out)
	}()

	ctx := context.Background()

	// Baseline for the first I/O delta.
	ioLast, err := s.probe.DiskIOCounters(ctx)
	if err != nil {
		s.logger.Warn("Baseline I/O read failed, sampler exiting", zap.Error(err))
		return
	}

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		io, err := s.probe.DiskIOCounters(ctx)
		if err != nil {
			s.logger.Warn("I/O counter read failed, sampler exiting", zap.Error(err))
			return
		}

		virt, err := s.probe.VirtualMemory(ctx)
		if err != nil {
			s.logger.Warn("Memory read failed, sampler exiting", zap.Error(err))
			return
		}

		swap, err := s.probe.SwapMemory(ctx)
		if err != nil {
			s.logger.Warn("Swap read failed, sampler exiting", zap.Error(err))
			return
		}

		buf = append(buf, entry{kind: entryTime, time: time.Now()})
		buf = append(buf, entry{kind: entryIO, io: io.Delta(ioLast)})
		ioLast = io
		buf = append(buf, entry{kind: entryVirt, virt: virt})
		buf = append(buf, entry{kind: entrySwap, swap: swap})

		// The CPU read blocks for the poll interval while the OS
		// measures the average — it is the loop's pacing tick, so no
		// extra sleep here. Shutdown latency is bounded by it.
		cores, err := s.probe.CPUPercent(ctx, s.interval)
		if err != nil {
			s.logger.Warn("CPU read failed, sampler exiting", zap.Error(err))
			// Drop the partial round so the series stay aligned.
			buf = buf[:len(buf)-4]
			return
		}
		buf = append(buf, entry{kind: entryCPU, cpu: cores})
	}
}
