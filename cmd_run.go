package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/nanosim/config"
	"github.com/pthm-cable/nanosim/simulation"
	"github.com/pthm-cable/nanosim/telemetry"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Train the model, then run the particle simulation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := applyRunOverrides(cmd, cfg); err != nil {
				return err
			}
			return runSimulation(cmd, cfg)
		},
	}

	cmd.Flags().Int64("seed", 0, "RNG seed (0 = config value, then time-based)")
	cmd.Flags().Int("particles", -1, "Number of particles (-1 = config value)")
	cmd.Flags().Int("steps", -1, "Steps per particle (-1 = config value)")
	cmd.Flags().Int("interval-ms", -1, "Milliseconds between steps (-1 = config value)")
	cmd.Flags().String("data", "", "Training data CSV with columns x1,x2,x3,target (empty = config dataset)")
	cmd.Flags().String("output-dir", "", "Directory for results.csv, summary.csv and config.yaml")
	cmd.Flags().Bool("strict", false, "Exit non-zero if any particle task fails")
	return cmd
}

// applyRunOverrides copies explicitly set CLI flags into cfg.
func applyRunOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if seed, _ := flags.GetInt64("seed"); seed != 0 {
		cfg.Simulation.Seed = seed
	}
	if n, _ := flags.GetInt("particles"); n >= 0 {
		cfg.Simulation.Particles = n
	}
	if k, _ := flags.GetInt("steps"); k >= 0 {
		cfg.Simulation.Steps = k
	}
	if d, _ := flags.GetInt("interval-ms"); d >= 0 {
		cfg.Simulation.StepIntervalMS = d
	}
	cfg.Refresh()
	return cfg.Validate()
}

func runSimulation(cmd *cobra.Command, cfg *config.Config) error {
	dataPath, _ := cmd.Flags().GetString("data")
	outputDir, _ := cmd.Flags().GetString("output-dir")
	strict, _ := cmd.Flags().GetBool("strict")

	timings := telemetry.NewTimings()

	// The model is fitted and discarded; any failure here is fatal and
	// happens before the simulation produces output.
	if err := timings.Time(telemetry.PhaseTrain, func() error {
		_, err := trainModel(cfg, dataPath)
		return err
	}); err != nil {
		return fmt.Errorf("training model: %w", err)
	}

	om, err := telemetry.NewOutputManager(outputDir)
	if err != nil {
		return err
	}
	defer om.Close()

	opts := simulation.OptionsFromConfig(cfg, telemetry.NewProgressSink(cmd.OutOrStdout()))
	cfg.Simulation.Seed = opts.Seed

	var outcome simulation.Outcome
	if err := timings.Time(telemetry.PhaseSimulate, func() error {
		outcome, err = simulation.NewCoordinator(opts).Run()
		return err
	}); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}

	finals := outcome.Particles()
	slog.Info("final particles", "completed", len(finals), "total", len(outcome.Results))
	for _, p := range finals {
		slog.Debug("particle final", "id", p.ID, "position", p.Position.String(), "velocity", p.Velocity.String())
	}

	records := outcome.Records()
	summary := telemetry.Summarize(records, opts.Steps, outcome.Elapsed)
	slog.Info("run summary", "summary", summary)

	if err := timings.Time(telemetry.PhaseOutput, func() error {
		if err := om.WriteConfig(cfg); err != nil {
			return err
		}
		if err := om.WriteResults(records); err != nil {
			return err
		}
		return om.WriteSummary(summary)
	}); err != nil {
		return err
	}
	if om != nil {
		slog.Info("results written", "dir", om.Dir())
	}
	slog.Info("timings", "phases", timings)

	if strict {
		if err := outcome.Err(); err != nil {
			return fmt.Errorf("%d of %d particle tasks failed: %w", len(outcome.Failed()), len(outcome.Results), err)
		}
	}
	return nil
}
