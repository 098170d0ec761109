package telemetry

import (
	"log/slog"
	"sort"
	"time"
)

// Phase names for a CLI run.
const (
	PhaseTrain    = "train"
	PhaseSimulate = "simulate"
	PhaseOutput   = "output"
)

// Timings records wall-clock durations per named phase. Not safe for concurrent use.
type Timings struct {
	phases map[string]time.Duration
	order  []string
}

// NewTimings creates an empty timing table.
func NewTimings() *Timings {
	return &Timings{phases: make(map[string]time.Duration)}
}

// Record adds d to the named phase.
func (t *Timings) Record(name string, d time.Duration) {
	if _, ok := t.phases[name]; !ok {
		t.order = append(t.order, name)
	}
	t.phases[name] += d
}

// Time runs fn and records its duration under name.
func (t *Timings) Time(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	t.Record(name, time.Since(start))
	return err
}

// Get returns the recorded duration for name.
func (t *Timings) Get(name string) time.Duration {
	return t.phases[name]
}

// Total returns the sum of all phases.
func (t *Timings) Total() time.Duration {
	var total time.Duration
	for _, d := range t.phases {
		total += d
	}
	return total
}

// SortedNames returns phase names sorted by duration (descending).
func (t *Timings) SortedNames() []string {
	names := make([]string, len(t.order))
	copy(names, t.order)
	sort.SliceStable(names, func(i, j int) bool {
		return t.phases[names[i]] > t.phases[names[j]]
	})
	return names
}

// LogValue implements slog.LogValuer.
func (t *Timings) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(t.order)+1)
	for _, name := range t.order {
		attrs = append(attrs, slog.Duration(name, t.phases[name]))
	}
	attrs = append(attrs, slog.Duration("total", t.Total()))
	return slog.GroupValue(attrs...)
}
