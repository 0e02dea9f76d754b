// Package config provides unified configuration loading for neurogrid.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/neurogrid/internal/brain"
	"github.com/nvandessel/neurogrid/internal/lattice"
)

// NeurogridConfig contains all neurogrid configuration settings.
type NeurogridConfig struct {
	// Grid is the default lattice size for scenarios that omit one.
	Grid lattice.Size `json:"grid" yaml:"grid"`

	// Neuron holds the tunable neuron parameters.
	Neuron NeuronConfig `json:"neuron" yaml:"neuron"`

	// Random configures the per-brain generator.
	Random RandomConfig `json:"random" yaml:"random"`

	// Logging contains settings for operational and event logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Store configures snapshot persistence.
	Store StoreConfig `json:"store" yaml:"store"`
}

// NeuronConfig mirrors brain.Params with file-friendly names.
type NeuronConfig struct {
	FiringThreshold       int           `json:"firing_threshold" yaml:"firing_threshold"`
	MaxLevel              int           `json:"max_level" yaml:"max_level"`
	InitialImportance     int           `json:"initial_importance" yaml:"initial_importance"`
	InitialAge            int           `json:"initial_age" yaml:"initial_age"`
	InitialConnectionAge  int           `json:"initial_connection_age" yaml:"initial_connection_age"`
	AgeStep               int           `json:"age_step" yaml:"age_step"`
	StrikeLimit           int           `json:"strike_limit" yaml:"strike_limit"`
	BlacklistResetFirings int           `json:"blacklist_reset_firings" yaml:"blacklist_reset_firings"`
	DecayPercent          int           `json:"decay_percent" yaml:"decay_percent"`
	Refractory            time.Duration `json:"refractory" yaml:"refractory"`
}

// Params converts the section into brain parameters.
func (c NeuronConfig) Params() brain.Params {
	return brain.Params{
		FiringThreshold:       c.FiringThreshold,
		MaxLevel:              c.MaxLevel,
		InitialImportance:     c.InitialImportance,
		InitialAge:            c.InitialAge,
		InitialConnectionAge:  c.InitialConnectionAge,
		AgeStep:               c.AgeStep,
		StrikeLimit:           c.StrikeLimit,
		BlacklistResetFirings: c.BlacklistResetFirings,
		DecayPercent:          c.DecayPercent,
		Refractory:            c.Refractory,
	}
}

func neuronConfigFrom(p brain.Params) NeuronConfig {
	return NeuronConfig{
		FiringThreshold:       p.FiringThreshold,
		MaxLevel:              p.MaxLevel,
		InitialImportance:     p.InitialImportance,
		InitialAge:            p.InitialAge,
		InitialConnectionAge:  p.InitialConnectionAge,
		AgeStep:               p.AgeStep,
		StrikeLimit:           p.StrikeLimit,
		BlacklistResetFirings: p.BlacklistResetFirings,
		DecayPercent:          p.DecayPercent,
		Refractory:            p.Refractory,
	}
}

// RandomConfig configures randomness.
type RandomConfig struct {
	// Seed for the generator. Zero seeds from the current time.
	Seed uint64 `json:"seed" yaml:"seed"`
}

// LoggingConfig configures neurogrid's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables the lifecycle event log at <dir>/events.jsonl.
	Level string `json:"level" yaml:"level"`

	// Dir is where the event log is written. Empty means the config directory.
	Dir string `json:"dir" yaml:"dir"`
}

// StoreConfig configures the snapshot store.
type StoreConfig struct {
	// Path to the SQLite database. Empty means ~/.neurogrid/neurogrid.db;
	// ":memory:" keeps snapshots for the life of the process only.
	Path string `json:"path" yaml:"path"`
}

// Default returns a NeurogridConfig with sensible defaults.
func Default() *NeurogridConfig {
	return &NeurogridConfig{
		Grid:    lattice.Size{X: 5, Y: 5, Z: 5},
		Neuron:  neuronConfigFrom(brain.DefaultParams()),
		Logging: LoggingConfig{Level: "info"},
	}
}

// Dir returns the per-user configuration directory, ~/.neurogrid.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".neurogrid"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.neurogrid/config.yaml -> environment variables
func Load() (*NeurogridConfig, error) {
	config := Default()

	if dir, err := Dir(); err == nil {
		configPath := filepath.Join(dir, "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFrom loads configuration from path, or from the default locations
// when path is empty. Environment overrides apply in both cases.
func LoadFrom(path string) (*NeurogridConfig, error) {
	if path == "" {
		return Load()
	}
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(config)
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Unset fields
// keep their defaults.
func LoadFromFile(path string) (*NeurogridConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Store.Path = os.ExpandEnv(config.Store.Path)
	config.Logging.Dir = os.ExpandEnv(config.Logging.Dir)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *NeurogridConfig) Validate() error {
	if err := c.Grid.Validate(); err != nil {
		return fmt.Errorf("grid: %w", err)
	}

	if err := c.Neuron.Params().Validate(); err != nil {
		return fmt.Errorf("neuron: %w", err)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Unparseable numeric values are ignored.
func applyEnvOverrides(config *NeurogridConfig) {
	if v := os.Getenv("NEUROGRID_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("NEUROGRID_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			config.Random.Seed = n
		}
	}

	if v := os.Getenv("NEUROGRID_DB"); v != "" {
		config.Store.Path = v
	}

	if v := os.Getenv("NEUROGRID_FIRING_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Neuron.FiringThreshold = n
		}
	}

	if v := os.Getenv("NEUROGRID_REFRACTORY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Neuron.Refractory = d
		}
	}
}
