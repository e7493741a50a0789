// Package report turns a stopped monitor into a run summary and renders it
// as text, JSON, or YAML. The summary is a plain data structure so callers
// can also serialize it themselves.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/resmon-dev/resmon/internal/monitor"
	"github.com/resmon-dev/resmon/internal/probe"
)

// Summary is the aggregate view of one monitored run.
type Summary struct {
	Start      time.Time        `json:"start" yaml:"start"`
	End        time.Time        `json:"end" yaml:"end"`
	WallTime   float64          `json:"wall_time_seconds" yaml:"wall_time_seconds"`
	Samples    int              `json:"samples" yaml:"samples"`
	CPUPerCore []float64        `json:"cpu_per_core,omitempty" yaml:"cpu_per_core,omitempty"`
	CPUOverall float64          `json:"cpu_overall" yaml:"cpu_overall"`
	IO         probe.IOCounters `json:"io" yaml:"io"`
	PeakMemory uint64           `json:"peak_memory_used" yaml:"peak_memory_used"`
	PeakSwap   uint64           `json:"peak_swap_used" yaml:"peak_swap_used"`
	Phases     []PhaseSummary   `json:"phases,omitempty" yaml:"phases,omitempty"`
	Events     []EventSummary   `json:"events,omitempty" yaml:"events,omitempty"`
}

// PhaseSummary is the aggregate view of one named phase.
type PhaseSummary struct {
	Name       string           `json:"name" yaml:"name"`
	Duration   float64          `json:"duration_seconds" yaml:"duration_seconds"`
	CPUOverall float64          `json:"cpu_overall" yaml:"cpu_overall"`
	IO         probe.IOCounters `json:"io" yaml:"io"`
}

// EventSummary is one recorded marker, with its offset from the run start.
type EventSummary struct {
	Name   string  `json:"name" yaml:"name"`
	Offset float64 `json:"offset_seconds" yaml:"offset_seconds"`
}

// Build assembles a Summary from a stopped monitor. A degraded or empty run
// produces a summary with zero samples and zero aggregates.
func Build(m *monitor.Monitor) Summary {
	s := Summary{
		Start:      m.StartTime(),
		End:        m.EndTime(),
		Samples:    m.SampleCount(),
		CPUPerCore: m.AggregateCPU(time.Time{}, time.Time{}),
		IO:         m.AggregateIO(time.Time{}, time.Time{}),
	}
	if !s.Start.IsZero() {
		s.WallTime = s.End.Sub(s.Start).Seconds()
	}
	if overall, ok := m.OverallCPU(time.Time{}, time.Time{}); ok {
		s.CPUOverall = overall
	}
	for _, w := range m.RangeUsage(time.Time{}, time.Time{}) {
		if w.Virt.Used > s.PeakMemory {
			s.PeakMemory = w.Virt.Used
		}
		if w.Swap.Used > s.PeakSwap {
			s.PeakSwap = w.Swap.Used
		}
	}

	for _, p := range m.Phases() {
		ps := PhaseSummary{
			Name:     p.Name,
			Duration: p.Duration().Seconds(),
		}
		if overall, ok := m.OverallCPU(p.Start, p.End); ok {
			ps.CPUOverall = overall
		}
		ps.IO = m.AggregateIO(p.Start, p.End)
		s.Phases = append(s.Phases, ps)
	}

	for _, e := range m.Events() {
		es := EventSummary{Name: e.Name}
		if !s.Start.IsZero() {
			es.Offset = e.Time.Sub(s.Start).Seconds()
		}
		s.Events = append(s.Events, es)
	}

	return s
}

// Render writes the summary to w in the given format ("text", "json", or
// "yaml").
func Render(w io.Writer, s Summary, format string) error {
	switch format {
	case "text":
		return renderText(w, s)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case "yaml":
		return yaml.NewEncoder(w).Encode(s)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func renderText(w io.Writer, s Summary) error {
	if s.Samples == 0 {
		_, err := fmt.Fprintln(w, "no resource samples collected")
		return err
	}

	fmt.Fprintf(w, "wall time:    %.2fs (%d samples)\n", s.WallTime, s.Samples)
	fmt.Fprintf(w, "cpu overall:  %.1f%%\n", s.CPUOverall)
	for i, v := range s.CPUPerCore {
		fmt.Fprintf(w, "  core %-3d    %.1f%%\n", i, v)
	}
	fmt.Fprintf(w, "disk reads:   %d (%d bytes)\n", s.IO.ReadCount, s.IO.ReadBytes)
	fmt.Fprintf(w, "disk writes:  %d (%d bytes)\n", s.IO.WriteCount, s.IO.WriteBytes)
	fmt.Fprintf(w, "peak memory:  %d bytes\n", s.PeakMemory)
	fmt.Fprintf(w, "peak swap:    %d bytes\n", s.PeakSwap)

	if len(s.Phases) > 0 {
		fmt.Fprintln(w, "phases:")
		for _, p := range s.Phases {
			fmt.Fprintf(w, "  %-20s %.2fs  cpu %.1f%%  io %d/%d bytes\n",
				p.Name, p.Duration, p.CPUOverall, p.IO.ReadBytes, p.IO.WriteBytes)
		}
	}
	if len(s.Events) > 0 {
		fmt.Fprintln(w, "events:")
		for _, e := range s.Events {
			fmt.Fprintf(w, "  %-20s +%.2fs\n", e.Name, e.Offset)
		}
	}
	return nil
}
