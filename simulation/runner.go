package simulation

import (
	"log/slog"
	"time"

	"github.com/pthm-cable/nanosim/components"
	"github.com/pthm-cable/nanosim/systems"
	"github.com/pthm-cable/nanosim/telemetry"
)

// StepFunc advances a particle by one step.
type StepFunc func(*components.Particle)

// Runner executes the fixed step sequence for one particle:
// step, report, then sleep, Steps times.
type Runner struct {
	Steps    int
	Interval time.Duration
	Reporter telemetry.Reporter
	Step     StepFunc // nil = systems.Advance
}

// Run takes ownership of p and returns it after the last step.
// Sleeping parks only the calling goroutine.
func (r *Runner) Run(p components.Particle) components.Particle {
	step := r.Step
	if step == nil {
		step = systems.Advance
	}
	reporter := r.Reporter
	if reporter == nil {
		reporter = telemetry.Discard
	}

	for i := 0; i < r.Steps; i++ {
		step(&p)

		if err := reporter.Report(telemetry.Progress{
			ID:       p.ID,
			Step:     i,
			Steps:    r.Steps,
			Position: p.Position,
		}); err != nil {
			slog.Warn("progress report dropped", "particle", p.ID, "step", i, "error", err)
		}

		if r.Interval > 0 {
			time.Sleep(r.Interval)
		}
	}
	return p
}
