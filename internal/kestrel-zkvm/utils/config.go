// Package utils carries the configuration surface and logging setup shared
// by the pipeline components.
package utils

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// BackendCPU proves on a bounded pool of CPU workers. It is the only
// backend compiled into this build; device backends register under their
// own names.
const BackendCPU = "cpu"

// Config is the recognized option surface of the continuation pipeline.
type Config struct {
	// SegmentLimit is the maximum number of cycles per segment.
	// Must be a power of two.
	SegmentLimit uint64 `yaml:"segment_limit"`

	// MaxSegments caps how many segments one session may produce before
	// execution fails with a cycle-limit error.
	MaxSegments int `yaml:"max_segments"`

	// DevMode skips real proving and emits explicitly unsound dev-mode
	// receipts. Strict verification always rejects them.
	DevMode bool `yaml:"dev_mode"`

	// Backend selects the proving backend.
	Backend string `yaml:"backend"`

	// Workers bounds the proving/composition worker pool.
	// Zero means one worker per CPU.
	Workers int `yaml:"workers"`

	// ControlIDSet lists trusted recursion identities as hex digests.
	// Empty means the built-in allow-list.
	ControlIDSet []string `yaml:"control_id_set"`
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() *Config {
	return &Config{
		SegmentLimit: 1 << 20,
		MaxSegments:  1 << 16,
		Backend:      BackendCPU,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.SegmentLimit < 2 || c.SegmentLimit&(c.SegmentLimit-1) != 0 {
		return fmt.Errorf("segment limit must be a power of two, got %d", c.SegmentLimit)
	}
	if c.MaxSegments <= 0 {
		return fmt.Errorf("max segments must be positive, got %d", c.MaxSegments)
	}
	if c.Backend != BackendCPU {
		return fmt.Errorf("unknown backend %q (this build supports %q)", c.Backend, BackendCPU)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	return nil
}

// EffectiveWorkers resolves the worker count, defaulting to one per CPU.
func (c *Config) EffectiveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// WithSegmentLimit sets the per-segment cycle cap.
func (c *Config) WithSegmentLimit(limit uint64) *Config {
	c.SegmentLimit = limit
	return c
}

// WithMaxSegments sets the session segment budget.
func (c *Config) WithMaxSegments(n int) *Config {
	c.MaxSegments = n
	return c
}

// WithDevMode toggles unsound dev-mode proving.
func (c *Config) WithDevMode(on bool) *Config {
	c.DevMode = on
	return c
}

// WithBackend selects the proving backend.
func (c *Config) WithBackend(backend string) *Config {
	c.Backend = backend
	return c
}

// WithWorkers bounds the worker pool.
func (c *Config) WithWorkers(n int) *Config {
	c.Workers = n
	return c
}

// Clone creates a copy of the configuration.
func (c *Config) Clone() *Config {
	out := *c
	out.ControlIDSet = append([]string(nil), c.ControlIDSet...)
	return &out
}

// LoadConfig reads a YAML configuration file, filling unset options with
// defaults, and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
