// Package simulation runs one concurrent task per particle and joins them.
package simulation

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"runtime/debug"
	"sync"
	"time"

	"github.com/pthm-cable/nanosim/components"
	"github.com/pthm-cable/nanosim/config"
	"github.com/pthm-cable/nanosim/systems"
	"github.com/pthm-cable/nanosim/telemetry"
)

// ErrDuplicateID is returned when two particles handed to one run share an id.
var ErrDuplicateID = errors.New("simulation: duplicate particle id")

// Options configures a run.
type Options struct {
	Particles int
	Steps     int
	Interval  time.Duration
	Seed      int64
	Sampling  config.SamplingConfig
	Reporter  telemetry.Reporter
	Step      StepFunc // nil = systems.Advance
}

// OptionsFromConfig builds run options from the loaded config.
// A zero seed in the config is replaced by the clock.
func OptionsFromConfig(cfg *config.Config, reporter telemetry.Reporter) Options {
	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if !cfg.Telemetry.Progress {
		reporter = telemetry.Discard
	}
	return Options{
		Particles: cfg.Simulation.Particles,
		Steps:     cfg.Simulation.Steps,
		Interval:  cfg.Derived.StepInterval,
		Seed:      seed,
		Sampling:  cfg.Sampling,
		Reporter:  reporter,
	}
}

// Coordinator creates the population, launches one task per particle and
// waits for all of them.
type Coordinator struct {
	opts   Options
	runner *Runner
}

// NewCoordinator creates a coordinator for opts.
func NewCoordinator(opts Options) *Coordinator {
	return &Coordinator{
		opts: opts,
		runner: &Runner{
			Steps:    opts.Steps,
			Interval: opts.Interval,
			Reporter: opts.Reporter,
			Step:     opts.Step,
		},
	}
}

// Run spawns Options.Particles particles with ids 0..N-1, runs them
// concurrently and returns once every task has completed or failed.
func (c *Coordinator) Run() (Outcome, error) {
	pop := NewPopulation()
	defer pop.Release()

	sampler := systems.NewSampler(rand.New(rand.NewSource(c.opts.Seed)), c.opts.Sampling)
	if err := pop.Spawn(c.opts.Particles, sampler); err != nil {
		return Outcome{}, fmt.Errorf("spawning population: %w", err)
	}

	outcome, err := c.RunParticles(pop.Detach())
	if err != nil {
		return outcome, err
	}
	if err := pop.Apply(outcome.Results); err != nil {
		return outcome, err
	}

	// Finals are read back from the registry, not from the task copies.
	finals := pop.Detach()
	for i := range outcome.Results {
		if outcome.Results[i].OK() {
			outcome.Results[i].Final = finals[i]
		}
	}
	return outcome, nil
}

// RunParticles launches one task per particle. Each task owns its copy;
// nothing is shared between tasks. Results are in input order.
// Ids must be unique; otherwise ErrDuplicateID is returned and no task starts.
func (c *Coordinator) RunParticles(particles []components.Particle) (Outcome, error) {
	seen := make(map[int]int, len(particles))
	for slot, p := range particles {
		if prev, dup := seen[p.ID]; dup {
			return Outcome{}, fmt.Errorf("%w: id %d in slots %d and %d", ErrDuplicateID, p.ID, prev, slot)
		}
		seen[p.ID] = slot
	}

	slog.Info("starting simulation",
		"particles", len(particles),
		"steps", c.runner.Steps,
		"interval", c.runner.Interval,
		"seed", c.opts.Seed,
	)

	start := time.Now()
	results := make([]Result, len(particles))

	var wg sync.WaitGroup
	for i, p := range particles {
		wg.Add(1)
		go func(slot int, p components.Particle) {
			defer wg.Done()
			results[slot] = c.runTask(slot, p)
		}(i, p)
	}
	wg.Wait()

	outcome := Outcome{Results: results, Elapsed: time.Since(start)}
	for _, r := range outcome.Failed() {
		slog.Error("particle task failed", "particle", r.Initial.ID, "slot", r.Slot, "error", r.Err)
	}
	slog.Info("simulation finished",
		"completed", outcome.Completed(),
		"failed", len(results)-outcome.Completed(),
		"elapsed", outcome.Elapsed,
	)
	return outcome, nil
}

// runTask runs one particle and converts a panic into a TaskError for its slot.
func (c *Coordinator) runTask(slot int, p components.Particle) (res Result) {
	res = Result{Slot: slot, Initial: p}
	defer func() {
		if v := recover(); v != nil {
			res.Final = components.Particle{}
			res.Err = &TaskError{ID: p.ID, Value: v, Stack: debug.Stack()}
		}
	}()
	res.Final = c.runner.Run(p)
	return res
}
