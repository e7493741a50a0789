// Package monitor measures system-wide resource usage over the lifetime of
// a run. A Monitor samples CPU, memory, swap, and disk I/O counters on a
// background goroutine at a fixed interval, and after Stop lets callers
// slice the collected timeline into named phases and point events for
// aggregate analysis.
//
// Each Monitor is one-shot: start it, optionally record events and phases
// while it runs, stop it, then query. Data is not available until Stop has
// returned. On platforms where the host counters cannot be read the Monitor
// degrades to a no-op: Start and Stop succeed and every query returns an
// empty result.
package monitor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/resmon-dev/resmon/internal/probe"
)

// Lifecycle and phase errors. State errors mean the operation is undefined
// in the monitor's current state; ErrUnknownPhase is a lookup failure.
var (
	ErrAlreadyStarted = errors.New("monitor already started")
	ErrNotRunning     = errors.New("monitor not running")
	ErrAlreadyStopped = errors.New("monitor already stopped")
	ErrNotStopped     = errors.New("monitor not stopped")
	ErrPhaseActive    = errors.New("phase already active")
	ErrPhaseNotActive = errors.New("phase not active")
	ErrUnknownPhase   = errors.New("unknown phase")
)

// DefaultPollInterval is used when New is given a non-positive interval.
const DefaultPollInterval = time.Second

// drainTimeout is the grace period added to the poll interval to bound each
// receive while Stop drains the channel, so a sampler that died without
// sending the terminal sentinel cannot hang the caller. On timeout the
// monitor keeps whatever arrived.
const drainTimeout = time.Second

// Window is the usage between two adjacent samples: counters from the later
// sample, bounded by the timestamps of both. Range queries synthesize
// windows on demand; they are never stored.
type Window struct {
	Start time.Time
	End   time.Time
	CPU   []float64
	IO    probe.IOCounters
	Virt  probe.MemoryStats
	Swap  probe.SwapStats
}

// Phase is a named, closed interval of the run.
type Phase struct {
	Name  string
	Start time.Time
	End   time.Time
}

// Duration returns the phase length.
func (p Phase) Duration() time.Duration { return p.End.Sub(p.Start) }

// Event is a zero-duration timestamped marker.
type Event struct {
	Time time.Time
	Name string
}

type state uint8

const (
	stateNotStarted state = iota
	stateRunning
	stateStopped
)

// Monitor owns the sampler lifecycle and, once stopped, the collected
// timeline. The timeline is five index-aligned series; index i in each
// belongs to the same sample.
type Monitor struct {
	probe        probe.Probe
	pollInterval time.Duration
	logger       *zap.Logger

	state   state
	stopCh  chan struct{}
	entries chan entry
	wg      sync.WaitGroup

	startTime time.Time
	endTime   time.Time
	times     []time.Time
	cpu       [][]float64
	io        []probe.IOCounters
	virt      []probe.MemoryStats
	swap      []probe.SwapStats

	mu       sync.Mutex
	events   []Event
	phases   []Phase
	phaseIdx map[string]int
	active   map[string]time.Time
}

// New creates a Monitor that samples through p every pollInterval. A
// non-positive interval falls back to DefaultPollInterval; a nil logger is
// replaced with a no-op logger.
func New(p probe.Probe, pollInterval time.Duration, logger *zap.Logger) *Monitor {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		probe:        p,
		pollInterval: pollInterval,
		logger:       logger,
		phaseIdx:     make(map[string]int),
		active:       make(map[string]time.Time),
	}
}

// Start launches the sampler goroutine. Legal exactly once, before Stop.
// If the host counter capability is unavailable Start still succeeds and
// the monitor runs degraded: no sampler, empty results.
func (m *Monitor) Start() error {
	switch m.state {
	case stateRunning:
		return ErrAlreadyStarted
	case stateStopped:
		return ErrAlreadyStopped
	}

	m.state = stateRunning

	if !m.probe.IsAvailable() {
		m.logger.Warn("Host counters unavailable, monitor running degraded")
		return nil
	}

	m.stopCh = make(chan struct{})
	m.entries = make(chan entry)

	s := &sampler{
		probe:    m.probe,
		interval: m.pollInterval,
		out:      m.entries,
		stop:     m.stopCh,
		logger:   m.logger,
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		s.run()
	}()

	m.logger.Debug("Monitor started", zap.Duration("poll_interval", m.pollInterval))
	return nil
}

// Stop signals the sampler, drains the channel, and builds the timeline.
// Legal exactly once, after Start. After Stop returns the timeline is
// immutable and the query methods are live.
func (m *Monitor) Stop() error {
	switch m.state {
	case stateNotStarted:
		return ErrNotRunning
	case stateStopped:
		return ErrAlreadyStopped
	}

	m.state = stateStopped

	if m.stopCh == nil {
		// Degraded run: nothing was sampled.
		return nil
	}

	close(m.stopCh)
	m.drain()
	m.truncate()

	if len(m.times) > 0 {
		m.startTime = m.times[0]
		m.endTime = m.times[len(m.times)-1]
	}

	m.logger.Debug("Monitor stopped",
		zap.Int("samples", len(m.times)),
		zap.Time("start", m.startTime),
		zap.Time("end", m.endTime))
	return nil
}

// drain receives tagged entries until the channel closes behind the
// terminal sentinel, dispatching each into its series. Each receive is
// bounded by the poll interval plus drainTimeout: a healthy sampler cannot
// observe the stop signal until its blocking CPU read returns, so its flush
// may lag a full poll interval behind Stop.
func (m *Monitor) drain() {
	wait := m.pollInterval + drainTimeout
	done := false
	for {
		select {
		case e, ok := <-m.entries:
			if !ok {
				if !done {
					m.logger.Warn("Sampler channel closed without terminal entry")
				}
				m.wg.Wait()
				return
			}
			switch e.kind {
			case entryTime:
				m.times = append(m.times, e.time)
			case entryIO:
				m.io = append(m.io, e.io)
			case entryVirt:
				m.virt = append(m.virt, e.virt)
			case entrySwap:
				m.swap = append(m.swap, e.swap)
			case entryCPU:
				m.cpu = append(m.cpu, e.cpu)
			case entryDone:
				done = true
			default:
				// Protocol desync between sampler and monitor —
				// a defect, not a runtime condition.
				panic(fmt.Sprintf("monitor: unknown entry kind %d", e.kind))
			}
		case <-time.After(wait):
			// The sampler died without finishing the protocol.
			// Keep what arrived; truncation restores alignment.
			// If it is merely stuck it will still try to flush on
			// an unbuffered channel, so discard in the background
			// until it closes the channel and exits.
			m.logger.Warn("Timed out draining sampler, keeping partial data")
			go func() {
				for range m.entries {
				}
			}()
			return
		}
	}
}

// truncate enforces the equal-length invariant across the five series. A
// sampler killed mid-flush can leave them ragged; the shortest length wins.
func (m *Monitor) truncate() {
	n := len(m.times)
	for _, l := range []int{len(m.cpu), len(m.io), len(m.virt), len(m.swap)} {
		if l < n {
			n = l
		}
	}
	m.times = m.times[:n]
	m.cpu = m.cpu[:n]
	m.io = m.io[:n]
	m.virt = m.virt[:n]
	m.swap = m.swap[:n]
}

// RecordEvent records a named marker at the current time. Legal in any
// state; an event recorded outside the sampled run simply falls outside
// the timeline.
func (m *Monitor) RecordEvent(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, Event{Time: time.Now(), Name: name})
}

// Events returns the recorded events in recording order.
func (m *Monitor) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// BeginPhase marks name active as of now. Phases may overlap and nest, but
// a name cannot be active twice at once.
func (m *Monitor) BeginPhase(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.active[name]; ok {
		return fmt.Errorf("%w: %q", ErrPhaseActive, name)
	}
	m.active[name] = time.Now()
	return nil
}

// FinishPhase closes the named phase and returns its duration. Reusing a
// finished name replaces the earlier phase under that name (last write
// wins) while keeping its original position in phase order.
func (m *Monitor) FinishPhase(name string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start, ok := m.active[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrPhaseNotActive, name)
	}
	delete(m.active, name)

	p := Phase{Name: name, Start: start, End: time.Now()}
	if i, ok := m.phaseIdx[name]; ok {
		m.phases[i] = p
	} else {
		m.phaseIdx[name] = len(m.phases)
		m.phases = append(m.phases, p)
	}
	return p.Duration(), nil
}

// Phase runs fn inside a phase of the given name, finishing the phase on
// every exit path including a panic inside fn.
func (m *Monitor) Phase(name string, fn func() error) error {
	if err := m.BeginPhase(name); err != nil {
		return err
	}
	// The name was begun above, so the deferred finish can only fail if
	// fn finished it already — the phase is closed either way.
	defer func() {
		_, _ = m.FinishPhase(name)
	}()
	return fn()
}

// Phases returns the finished phases in the order their names were first
// finished.
func (m *Monitor) Phases() []Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Phase, len(m.phases))
	copy(out, m.phases)
	return out
}

// LookupPhase returns the finished phase with the given name.
func (m *Monitor) LookupPhase(name string) (Phase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.phaseIdx[name]
	if !ok {
		return Phase{}, fmt.Errorf("%w: %q", ErrUnknownPhase, name)
	}
	return m.phases[i], nil
}

// StartTime returns the first sample's timestamp; zero if nothing was
// collected.
func (m *Monitor) StartTime() time.Time { return m.startTime }

// EndTime returns the last sample's timestamp; zero if nothing was
// collected.
func (m *Monitor) EndTime() time.Time { return m.endTime }

// SampleCount returns the number of collected samples.
func (m *Monitor) SampleCount() int { return len(m.times) }

// RangeUsage returns one Window per sample in the queried range, in
// timeline order. A zero start or end defaults to the timeline's first or
// last timestamp. A sample's usage covers the interval since the previous
// sample, so a sample sitting exactly on the queried start belongs to the
// preceding range: adjacent queries split at a sample boundary tile the
// timeline without double counting. The first window's Start is clamped to
// the queried start, so no window stretches before the range. Before Stop,
// or when nothing was collected, the result is empty — never an error, so
// callers can query defensively.
func (m *Monitor) RangeUsage(start, end time.Time) []Window {
	if m.state != stateStopped || len(m.times) == 0 {
		return nil
	}
	if start.IsZero() {
		start = m.times[0]
	}
	if end.IsZero() {
		end = m.times[len(m.times)-1]
	}

	var out []Window
	last := start
	for i, t := range m.times {
		if t.After(end) {
			break
		}
		if i == 0 {
			// The first sample's delta has no preceding sample;
			// it belongs to any range starting at or before it.
			if t.Before(start) {
				continue
			}
		} else if !t.After(start) {
			continue
		}
		out = append(out, Window{
			Start: last,
			End:   t,
			CPU:   m.cpu[i],
			IO:    m.io[i],
			Virt:  m.virt[i],
			Swap:  m.swap[i],
		})
		last = t
	}
	return out
}

// PhaseUsage returns the windows covered by a finished phase.
func (m *Monitor) PhaseUsage(name string) ([]Window, error) {
	if m.state != stateStopped {
		return nil, ErrNotStopped
	}
	p, err := m.LookupPhase(name)
	if err != nil {
		return nil, err
	}
	return m.RangeUsage(p.Start, p.End), nil
}

// AggregateCPU returns the mean utilization per core across all windows in
// [start, end] (zero bounds default to the whole run). Nil when the range
// holds no windows.
func (m *Monitor) AggregateCPU(start, end time.Time) []float64 {
	return meanPerCore(m.RangeUsage(start, end))
}

// PhaseCPU is AggregateCPU over a finished phase's interval.
func (m *Monitor) PhaseCPU(name string) ([]float64, error) {
	windows, err := m.PhaseUsage(name)
	if err != nil {
		return nil, err
	}
	return meanPerCore(windows), nil
}

// OverallCPU collapses AggregateCPU to a single scalar: the mean of the
// per-core means. The second return is false when the range holds no
// windows.
func (m *Monitor) OverallCPU(start, end time.Time) (float64, bool) {
	perCore := m.AggregateCPU(start, end)
	if len(perCore) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range perCore {
		sum += v
	}
	return sum / float64(len(perCore)), true
}

// AggregateIO sums the I/O counter deltas component-wise across all windows
// in [start, end]. Zero-valued when the range holds no windows.
func (m *Monitor) AggregateIO(start, end time.Time) probe.IOCounters {
	var total probe.IOCounters
	for _, w := range m.RangeUsage(start, end) {
		total = total.Add(w.IO)
	}
	return total
}

// PhaseIO is AggregateIO over a finished phase's interval.
func (m *Monitor) PhaseIO(name string) (probe.IOCounters, error) {
	windows, err := m.PhaseUsage(name)
	if err != nil {
		return probe.IOCounters{}, err
	}
	var total probe.IOCounters
	for _, w := range windows {
		total = total.Add(w.IO)
	}
	return total, nil
}

// meanPerCore averages each core's percentage across the windows. Samples
// taken while a core count change was in flight are tolerated by averaging
// over the windows that actually carry each core.
func meanPerCore(windows []Window) []float64 {
	if len(windows) == 0 {
		return nil
	}
	cores := 0
	for _, w := range windows {
		if len(w.CPU) > cores {
			cores = len(w.CPU)
		}
	}
	if cores == 0 {
		return nil
	}

	sums := make([]float64, cores)
	counts := make([]int, cores)
	for _, w := range windows {
		for i, v := range w.CPU {
			sums[i] += v
			counts[i]++
		}
	}
	out := make([]float64, cores)
	for i := range sums {
		if counts[i] > 0 {
			out[i] = sums[i] / float64(counts[i])
		}
	}
	return out
}
