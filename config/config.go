// Package config loads host configuration.
//
// Values start from Default, are overlaid by an optional YAML file, and
// finally by environment variables prefixed with FRAMEHOST_, for example
// FRAMEHOST_LOOP_FRAME_RATE or FRAMEHOST_RESOURCE_BASE.
// Environment names are the upper-cased, underscore-separated field path.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/framehost/errors"
	"github.com/wippyai/framehost/memview"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FRAMEHOST"

// Config holds all host configuration.
type Config struct {
	Loop     LoopConfig     `yaml:"loop"`
	Engine   EngineConfig   `yaml:"engine"`
	Resource ResourceConfig `yaml:"resource"`
	Guest    GuestConfig    `yaml:"guest"`
	Logging  LogConfig      `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// LoopConfig holds frame loop configuration.
type LoopConfig struct {
	FrameRate int    `yaml:"frame_rate" split_words:"true"`
	MaxFrames uint64 `yaml:"max_frames" split_words:"true"`
}

// EngineConfig holds wazero configuration.
type EngineConfig struct {
	CacheDir         string `yaml:"cache_dir" split_words:"true"`
	MemoryLimitPages uint32 `yaml:"memory_limit_pages" split_words:"true"`
}

// ResourceConfig holds guest resource fetch configuration.
type ResourceConfig struct {
	Base     string        `yaml:"base" split_words:"true"`
	Timeout  time.Duration `yaml:"timeout" split_words:"true"`
	Retries  int           `yaml:"retries" split_words:"true"`
	MaxBytes int64         `yaml:"max_bytes" split_words:"true"`
}

// GuestConfig holds per-guest host behavior.
type GuestConfig struct {
	TextPolicy string  `yaml:"text_policy" split_words:"true"`
	LogRate    float64 `yaml:"log_rate" split_words:"true"`
	LogBurst   int     `yaml:"log_burst" split_words:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `yaml:"level" split_words:"true"`
	Development bool   `yaml:"development" split_words:"true"`
}

// MetricsConfig holds the Prometheus endpoint configuration.
// An empty Address disables the endpoint.
type MetricsConfig struct {
	Address string `yaml:"address" split_words:"true"`
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Loop: LoopConfig{
			FrameRate: 60,
		},
		Resource: ResourceConfig{
			Timeout:  30 * time.Second,
			Retries:  3,
			MaxBytes: 64 << 20,
		},
		Guest: GuestConfig{
			TextPolicy: memview.TextStrict.String(),
			LogRate:    100,
			LogBurst:   200,
		},
		Logging: LogConfig{
			Level: "info",
		},
	}
}

// Load builds configuration from defaults, the YAML file at path (skipped
// when path is empty), and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read config file")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parse "+path)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf(format, args...))
	}

	if c.Loop.FrameRate < 1 || c.Loop.FrameRate > 1000 {
		return invalid("loop.frame_rate must be in [1, 1000], got %d", c.Loop.FrameRate)
	}
	if c.Engine.MemoryLimitPages > 65536 {
		return invalid("engine.memory_limit_pages must be at most 65536, got %d", c.Engine.MemoryLimitPages)
	}
	if c.Resource.Retries < 0 {
		return invalid("resource.retries must not be negative")
	}
	if c.Resource.MaxBytes < 0 {
		return invalid("resource.max_bytes must not be negative")
	}
	if c.Resource.Timeout < 0 {
		return invalid("resource.timeout must not be negative")
	}
	if _, err := memview.ParseTextPolicy(c.Guest.TextPolicy); err != nil {
		return err
	}
	if c.Guest.LogRate <= 0 {
		return invalid("guest.log_rate must be positive")
	}
	if c.Guest.LogBurst < 1 {
		return invalid("guest.log_burst must be at least 1")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return invalid("logging.level: %v", err)
	}
	return nil
}

// TextPolicy returns the parsed guest text policy.
func (c *Config) TextPolicy() memview.TextPolicy {
	p, _ := memview.ParseTextPolicy(c.Guest.TextPolicy)
	return p
}
