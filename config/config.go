// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Weight schemes accepted by model.weights.
const (
	WeightsUniform  = "uniform"
	WeightsDistance = "distance"
)

// Config holds all simulation configuration parameters.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Sampling   SamplingConfig   `yaml:"sampling"`
	Model      ModelConfig      `yaml:"model"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SimulationConfig holds the run shape: how many particles, how many steps, how fast.
type SimulationConfig struct {
	Particles      int   `yaml:"particles"`        // N
	Steps          int   `yaml:"steps"`            // K
	StepIntervalMS int   `yaml:"step_interval_ms"` // D in milliseconds
	Seed           int64 `yaml:"seed"`             // 0 = time-based
}

// Range is a half-open sampling interval [Min, Max).
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// SamplingConfig holds the per-axis intervals for initial kinematics.
type SamplingConfig struct {
	Position Range `yaml:"position"`
	Velocity Range `yaml:"velocity"`
}

// ModelConfig holds the regression model parameters and its fixed training set.
type ModelConfig struct {
	Neighbors int            `yaml:"neighbors"`
	Weights   string         `yaml:"weights"`
	Training  TrainingConfig `yaml:"training"`
}

// TrainingConfig is the inline training dataset.
type TrainingConfig struct {
	Features [][]float64 `yaml:"features"`
	Targets  []float64   `yaml:"targets"`
}

// TelemetryConfig holds output parameters.
type TelemetryConfig struct {
	Progress bool `yaml:"progress"` // emit one line per particle step
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	StepInterval time.Duration // Simulation.StepIntervalMS as a duration
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Defaults returns the embedded default configuration.
func Defaults() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := cfg.Merge(data); err != nil {
			return nil, err
		}
	}

	cfg.computeDerived()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Merge overlays YAML data onto c. Only fields present in data are overwritten.
// Derived values are recomputed.
func (c *Config) Merge(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	c.computeDerived()
	return nil
}

// Refresh recomputes derived values after fields were changed in code.
func (c *Config) Refresh() {
	c.computeDerived()
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.StepInterval = time.Duration(c.Simulation.StepIntervalMS) * time.Millisecond
}

// Validate reports every setting that would make a run meaningless.
func (c *Config) Validate() error {
	var errs []error
	if c.Simulation.Particles < 0 {
		errs = append(errs, fmt.Errorf("simulation.particles must be >= 0, got %d", c.Simulation.Particles))
	}
	if c.Simulation.Steps < 0 {
		errs = append(errs, fmt.Errorf("simulation.steps must be >= 0, got %d", c.Simulation.Steps))
	}
	if c.Simulation.StepIntervalMS < 0 {
		errs = append(errs, fmt.Errorf("simulation.step_interval_ms must be >= 0, got %d", c.Simulation.StepIntervalMS))
	}
	if c.Sampling.Position.Min >= c.Sampling.Position.Max {
		errs = append(errs, fmt.Errorf("sampling.position: min %v must be below max %v", c.Sampling.Position.Min, c.Sampling.Position.Max))
	}
	if c.Sampling.Velocity.Min >= c.Sampling.Velocity.Max {
		errs = append(errs, fmt.Errorf("sampling.velocity: min %v must be below max %v", c.Sampling.Velocity.Min, c.Sampling.Velocity.Max))
	}
	if c.Model.Neighbors < 1 {
		errs = append(errs, fmt.Errorf("model.neighbors must be >= 1, got %d", c.Model.Neighbors))
	}
	switch c.Model.Weights {
	case WeightsUniform, WeightsDistance:
	default:
		errs = append(errs, fmt.Errorf("model.weights: unknown scheme %q", c.Model.Weights))
	}
	return errors.Join(errs...)
}

// Encode writes the configuration as YAML to w.
func (c *Config) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
