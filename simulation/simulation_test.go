package simulation

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/pthm-cable/nanosim/components"
	"github.com/pthm-cable/nanosim/config"
	"github.com/pthm-cable/nanosim/systems"
	"github.com/pthm-cable/nanosim/telemetry"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

// recorder collects reports from concurrent tasks.
type recorder struct {
	mu      sync.Mutex
	reports []telemetry.Progress
}

func (r *recorder) Report(p telemetry.Progress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, p)
	return nil
}

func (r *recorder) byID() map[int][]telemetry.Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int][]telemetry.Progress)
	for _, p := range r.reports {
		out[p.ID] = append(out[p.ID], p)
	}
	return out
}

type failingReporter struct{}

func (failingReporter) Report(telemetry.Progress) error { return errors.New("sink closed") }

func testOptions(n, steps int, interval time.Duration, rep telemetry.Reporter) Options {
	return Options{
		Particles: n,
		Steps:     steps,
		Interval:  interval,
		Seed:      42,
		Sampling:  config.Defaults().Sampling,
		Reporter:  rep,
	}
}

func TestRunnerSingleParticleScenario(t *testing.T) {
	rec := &recorder{}
	r := &Runner{Steps: 3, Interval: time.Millisecond, Reporter: rec}

	final := r.Run(components.Particle{ID: 0, Velocity: components.Vec3{1, 0, 0}})

	if final.Position != (components.Vec3{3, 0, 0}) {
		t.Errorf("final position = %v, want [3 0 0]", final.Position)
	}
	if final.ID != 0 {
		t.Errorf("final id = %d, want 0", final.ID)
	}

	reports := rec.byID()[0]
	if len(reports) != 3 {
		t.Fatalf("got %d reports, want 3", len(reports))
	}
	for i, p := range reports {
		if p.Step != i {
			t.Errorf("report %d has step %d", i, p.Step)
		}
		want := components.Vec3{float64(i + 1), 0, 0}
		if p.Position != want {
			t.Errorf("report %d position = %v, want %v", i, p.Position, want)
		}
	}
}

func TestRunnerZeroSteps(t *testing.T) {
	rec := &recorder{}
	r := &Runner{Steps: 0, Interval: time.Hour, Reporter: rec}

	p := components.Particle{ID: 4, Position: components.Vec3{1, 2, 3}, Velocity: components.Vec3{1, 1, 1}}
	if got := r.Run(p); got != p {
		t.Errorf("zero steps changed particle: %+v", got)
	}
	if len(rec.reports) != 0 {
		t.Errorf("zero steps emitted %d reports", len(rec.reports))
	}
}

func TestRunnerSurvivesReporterErrors(t *testing.T) {
	r := &Runner{Steps: 4, Reporter: failingReporter{}}
	final := r.Run(components.Particle{Velocity: components.Vec3{0, 0, 2}})
	if final.Position != (components.Vec3{0, 0, 8}) {
		t.Errorf("final position = %v, want [0 0 8]", final.Position)
	}
}

func TestRunParticleCounts(t *testing.T) {
	for _, n := range []int{0, 1, 5, 64} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			outcome, err := NewCoordinator(testOptions(n, 2, 0, nil)).Run()
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(outcome.Results) != n {
				t.Fatalf("n=%d: got %d results", n, len(outcome.Results))
			}
			if outcome.Completed() != n {
				t.Errorf("n=%d: completed %d", n, outcome.Completed())
			}

			seen := make(map[int]bool, n)
			for slot, r := range outcome.Results {
				if r.Slot != slot {
					t.Errorf("result %d reports slot %d", slot, r.Slot)
				}
				if r.Final.ID != slot {
					t.Errorf("slot %d holds particle %d, want sequential ids", slot, r.Final.ID)
				}
				if seen[r.Final.ID] {
					t.Errorf("duplicate id %d", r.Final.ID)
				}
				seen[r.Final.ID] = true
			}
		})
	}
}

func TestRunFinalPositionClosedForm(t *testing.T) {
	const steps = 10
	outcome, err := NewCoordinator(testOptions(5, steps, time.Millisecond, nil)).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for i, r := range outcome.Results {
		if r.Final.ID != r.Initial.ID || r.Slot != i {
			t.Fatalf("slot %d: final %d read back for initial %d", i, r.Final.ID, r.Initial.ID)
		}
		want := r.Initial.Position.Add(r.Initial.Velocity.Scale(steps))
		for axis := range want {
			if math.Abs(r.Final.Position[axis]-want[axis]) > 1e-9 {
				t.Errorf("particle %d axis %d = %v, want %v", r.Final.ID, axis, r.Final.Position[axis], want[axis])
			}
		}
		if r.Final.Velocity != r.Initial.Velocity {
			t.Errorf("particle %d velocity changed", r.Final.ID)
		}
	}
}

func TestRunIsConcurrent(t *testing.T) {
	const (
		n        = 5
		steps    = 10
		interval = 20 * time.Millisecond
	)
	outcome, err := NewCoordinator(testOptions(n, steps, interval, nil)).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	perTask := steps * interval
	if outcome.Elapsed < perTask {
		t.Errorf("elapsed %v shorter than one task's sleeps %v", outcome.Elapsed, perTask)
	}
	// Sequential execution would take n*perTask.
	if outcome.Elapsed > 3*perTask {
		t.Errorf("elapsed %v, want close to %v (sequential would be %v)", outcome.Elapsed, perTask, n*perTask)
	}
}

func TestReportsOrderedPerParticle(t *testing.T) {
	rec := &recorder{}
	const steps = 6
	if _, err := NewCoordinator(testOptions(8, steps, time.Millisecond, rec)).Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	byID := rec.byID()
	if len(byID) != 8 {
		t.Fatalf("reports from %d particles, want 8", len(byID))
	}
	for id, reports := range byID {
		if len(reports) != steps {
			t.Errorf("particle %d: %d reports, want %d", id, len(reports), steps)
		}
		for i, p := range reports {
			if p.Step != i {
				t.Errorf("particle %d: report %d has step %d", id, i, p.Step)
			}
		}
	}
}

func TestTaskFailureIsolated(t *testing.T) {
	const failID = 2
	opts := testOptions(5, 3, time.Millisecond, nil)
	opts.Step = func(p *components.Particle) {
		if p.ID == failID {
			panic("boom")
		}
		systems.Advance(p)
	}

	outcome, err := NewCoordinator(opts).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(outcome.Results) != 5 {
		t.Fatalf("got %d results, want 5", len(outcome.Results))
	}
	if outcome.Completed() != 4 {
		t.Errorf("completed = %d, want 4", outcome.Completed())
	}

	failed := outcome.Failed()
	if len(failed) != 1 || failed[0].Slot != failID {
		t.Fatalf("failed = %+v, want slot %d only", failed, failID)
	}

	var taskErr *TaskError
	if !errors.As(outcome.Err(), &taskErr) {
		t.Fatalf("Err() = %v, want a *TaskError", outcome.Err())
	}
	if taskErr.ID != failID || taskErr.Value != "boom" {
		t.Errorf("task error = %+v", taskErr)
	}
	if len(taskErr.Stack) == 0 {
		t.Error("task error has no stack")
	}

	for _, r := range outcome.Results {
		if r.Slot == failID {
			continue
		}
		want := r.Initial.Position.Add(r.Initial.Velocity.Scale(3))
		for axis := range want {
			if math.Abs(r.Final.Position[axis]-want[axis]) > 1e-9 {
				t.Errorf("sibling %d was affected: %v, want %v", r.Final.ID, r.Final.Position, want)
			}
		}
	}
}

func TestRunParticlesRejectsDuplicateIDs(t *testing.T) {
	var mu sync.Mutex
	stepped := 0
	opts := testOptions(0, 3, 0, nil)
	opts.Step = func(p *components.Particle) {
		mu.Lock()
		stepped++
		mu.Unlock()
		systems.Advance(p)
	}

	particles := []components.Particle{{ID: 0}, {ID: 1}, {ID: 0}}
	outcome, err := NewCoordinator(opts).RunParticles(particles)
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("err = %v, want ErrDuplicateID", err)
	}
	if len(outcome.Results) != 0 {
		t.Errorf("got %d results, want none", len(outcome.Results))
	}
	mu.Lock()
	defer mu.Unlock()
	if stepped != 0 {
		t.Errorf("%d steps ran after duplicate ids were rejected", stepped)
	}
}

func TestTaskErrorUnwrap(t *testing.T) {
	cause := errors.New("cause")
	err := &TaskError{ID: 1, Value: cause}
	if !errors.Is(err, cause) {
		t.Error("TaskError should unwrap an error panic value")
	}
	if (&TaskError{ID: 1, Value: 3}).Unwrap() != nil {
		t.Error("non-error panic value should not unwrap")
	}
}

func TestOutcomeNoFailures(t *testing.T) {
	o := Outcome{Results: []Result{{Slot: 0}, {Slot: 1}}}
	if o.Err() != nil {
		t.Errorf("Err() = %v, want nil", o.Err())
	}
	if len(o.Particles()) != 2 {
		t.Errorf("Particles() = %d, want 2", len(o.Particles()))
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Simulation.Seed = 99

	rec := &recorder{}
	opts := OptionsFromConfig(cfg, rec)
	if opts.Particles != 5 || opts.Steps != 10 || opts.Interval != 100*time.Millisecond {
		t.Errorf("opts = %+v", opts)
	}
	if opts.Seed != 99 {
		t.Errorf("seed = %d, want 99", opts.Seed)
	}
	if opts.Reporter != rec {
		t.Error("reporter not passed through")
	}

	cfg.Simulation.Seed = 0
	cfg.Telemetry.Progress = false
	opts = OptionsFromConfig(cfg, rec)
	if opts.Seed == 0 {
		t.Error("zero seed should be replaced")
	}
	if opts.Reporter != telemetry.Discard {
		t.Error("progress disabled should discard reports")
	}
}

func TestOutcomeRecords(t *testing.T) {
	o := Outcome{Results: []Result{
		{Slot: 0, Initial: components.Particle{ID: 0}, Final: components.Particle{ID: 0, Position: components.Vec3{3, 4, 0}}},
		{Slot: 1, Initial: components.Particle{ID: 1}, Err: &TaskError{ID: 1, Value: "boom"}},
	}}

	records := o.Records()
	if len(records) != 2 {
		t.Fatalf("got %d records", len(records))
	}
	if records[0].Status != telemetry.StatusCompleted || math.Abs(records[0].Displacement-5) > 1e-12 {
		t.Errorf("record 0 = %+v", records[0])
	}
	if records[1].Status != telemetry.StatusFailed || records[1].ID != 1 {
		t.Errorf("record 1 = %+v", records[1])
	}
}
