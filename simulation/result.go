package simulation

import (
	"errors"
	"fmt"
	"time"

	"github.com/pthm-cable/nanosim/components"
	"github.com/pthm-cable/nanosim/telemetry"
)

// TaskError is a particle task that panicked.
type TaskError struct {
	ID    int
	Value any
	Stack []byte
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("particle %d task failed: %v", e.ID, e.Value)
}

// Unwrap returns the panic value when it was an error.
func (e *TaskError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Result is the outcome of one task slot.
type Result struct {
	Slot    int
	Initial components.Particle
	Final   components.Particle // zero when Err != nil
	Err     error
}

// OK reports whether the task completed.
func (r Result) OK() bool {
	return r.Err == nil
}

// Outcome holds one Result per launched task, in slot order.
type Outcome struct {
	Results []Result
	Elapsed time.Duration
}

// Particles returns the final state of every completed task in slot order.
func (o Outcome) Particles() []components.Particle {
	out := make([]components.Particle, 0, len(o.Results))
	for _, r := range o.Results {
		if r.OK() {
			out = append(out, r.Final)
		}
	}
	return out
}

// Failed returns the results of tasks that did not complete.
func (o Outcome) Failed() []Result {
	var out []Result
	for _, r := range o.Results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Completed returns the number of tasks that completed.
func (o Outcome) Completed() int {
	return len(o.Results) - len(o.Failed())
}

// Err joins the errors of all failed slots, or returns nil.
func (o Outcome) Err() error {
	var errs []error
	for _, r := range o.Results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}

// Records converts every slot into a telemetry record, in slot order.
func (o Outcome) Records() []telemetry.ParticleRecord {
	out := make([]telemetry.ParticleRecord, len(o.Results))
	for i, r := range o.Results {
		out[i] = telemetry.NewParticleRecord(r.Initial, r.Final, r.Err)
	}
	return out
}
