// Package telemetry reports progress and summarizes finished runs.
package telemetry

import (
	"log/slog"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/nanosim/components"
)

// Task status values used in ParticleRecord.Status.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ParticleRecord is the final state of one task slot.
type ParticleRecord struct {
	ID     int    `csv:"id"`
	Status string `csv:"status"`

	StartX float64 `csv:"start_x"`
	StartY float64 `csv:"start_y"`
	StartZ float64 `csv:"start_z"`

	// Final position (zero for failed tasks)
	X float64 `csv:"x"`
	Y float64 `csv:"y"`
	Z float64 `csv:"z"`

	VelX float64 `csv:"vel_x"`
	VelY float64 `csv:"vel_y"`
	VelZ float64 `csv:"vel_z"`

	Displacement float64 `csv:"displacement"` // euclidean distance start -> final
	Error        string  `csv:"error"`
}

// NewParticleRecord builds a record from a task's initial and final state.
func NewParticleRecord(initial, final components.Particle, err error) ParticleRecord {
	r := ParticleRecord{
		ID:     initial.ID,
		Status: StatusCompleted,
		StartX: initial.Position[0],
		StartY: initial.Position[1],
		StartZ: initial.Position[2],
		VelX:   initial.Velocity[0],
		VelY:   initial.Velocity[1],
		VelZ:   initial.Velocity[2],
	}
	if err != nil {
		r.Status = StatusFailed
		r.Error = err.Error()
		return r
	}
	r.X, r.Y, r.Z = final.Position[0], final.Position[1], final.Position[2]
	r.Displacement = floats.Distance(final.Position[:], initial.Position[:], 2)
	return r
}

// RunSummary holds aggregate statistics for a finished run.
type RunSummary struct {
	Particles  int     `csv:"particles"`
	Completed  int     `csv:"completed"`
	Failed     int     `csv:"failed"`
	Steps      int     `csv:"steps"`
	ElapsedSec float64 `csv:"elapsed_sec"`

	// Displacement over completed particles
	DispMean float64 `csv:"disp_mean"`
	DispStd  float64 `csv:"disp_std"`
	DispP10  float64 `csv:"disp_p10"`
	DispP50  float64 `csv:"disp_p50"`
	DispP90  float64 `csv:"disp_p90"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Summarize aggregates the records of one run.
func Summarize(records []ParticleRecord, steps int, elapsed time.Duration) RunSummary {
	s := RunSummary{
		Particles:  len(records),
		Steps:      steps,
		ElapsedSec: elapsed.Seconds(),
	}

	disp := make([]float64, 0, len(records))
	for _, r := range records {
		if r.Status == StatusFailed {
			s.Failed++
			continue
		}
		s.Completed++
		disp = append(disp, r.Displacement)
	}
	if len(disp) == 0 {
		return s
	}

	s.DispMean = stat.Mean(disp, nil)
	if len(disp) > 1 {
		s.DispStd = stat.PopStdDev(disp, nil)
	}

	sort.Float64s(disp)
	s.DispP10 = Percentile(disp, 0.10)
	s.DispP50 = Percentile(disp, 0.50)
	s.DispP90 = Percentile(disp, 0.90)
	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s RunSummary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("particles", s.Particles),
		slog.Int("completed", s.Completed),
		slog.Int("failed", s.Failed),
		slog.Int("steps", s.Steps),
		slog.Float64("elapsed_sec", s.ElapsedSec),
		slog.Float64("disp_mean", s.DispMean),
		slog.Float64("disp_std", s.DispStd),
		slog.Float64("disp_p10", s.DispP10),
		slog.Float64("disp_p50", s.DispP50),
		slog.Float64("disp_p90", s.DispP90),
	)
}
