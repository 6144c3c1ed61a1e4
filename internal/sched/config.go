package sched

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	yaml "github.com/goccy/go-yaml"
)

const (
	// DefaultClockHz is the rate of the free-running OS timer (P0 clock / 1).
	DefaultClockHz = 33_330_000.0

	// DefaultMaxTasks is the size of the task table.
	DefaultMaxTasks = 25

	// maxTaskSlots is the largest table a TaskID can address.
	maxTaskSlots = 127
)

// Config mirrors the scheduler section of config.yml.
type Config struct {
	MaxTasks      int     `yaml:"max_tasks"`       // 25 (by default)
	ClockHz       float64 `yaml:"clock_hz"`        // counter frequency
	CounterBits   int     `yaml:"counter_bits"`    // 32 (by default)
	StatsInterval float64 `yaml:"stats_interval"`  // seconds between stats dumps, 10 (by default)
	MaxYieldDepth int     `yaml:"max_yield_depth"` // nested yields allowed, 8 (by default)
	LogLevel      string  `yaml:"log_level"`       // "info" (by default)
	SimStepTicks  uint32  `yaml:"sim_step_ticks"`  // ticks consumed per read of a simulated counter
}

// DefaultConfig is used when no config file is given.
func DefaultConfig() Config {
	return Config{
		MaxTasks:      DefaultMaxTasks,
		ClockHz:       DefaultClockHz,
		CounterBits:   32,
		StatsInterval: 10,
		MaxYieldDepth: 8,
		LogLevel:      "info",
		SimStepTicks:  4,
	}
}

// Load reads YAML and overrides defaults; empty path or a missing file means
// defaults only.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg.normalize(), nil
}

// normalize applies sanity clamps.
func (c Config) normalize() Config {
	if c.MaxTasks <= 0 {
		c.MaxTasks = DefaultMaxTasks
	} else if c.MaxTasks > maxTaskSlots {
		c.MaxTasks = maxTaskSlots
	}
	if c.ClockHz <= 0 {
		c.ClockHz = DefaultClockHz
	}
	if c.CounterBits <= 0 || c.CounterBits > 32 {
		c.CounterBits = 32
	}
	if c.StatsInterval <= 0 {
		c.StatsInterval = 10
	}
	if c.MaxYieldDepth <= 0 {
		c.MaxYieldDepth = 8
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.SimStepTicks == 0 {
		c.SimStepTicks = 4
	}
	return c
}
