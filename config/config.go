package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/ncmat/catalog"
	"github.com/jonwraymond/ncmat/factory"
	"github.com/jonwraymond/ncmat/observe"
	"github.com/jonwraymond/ncmat/resilience"
)

// Defaults applied by Default.
const (
	DefaultServiceName         = "ncmat"
	DefaultMaxConcurrentBuilds = 8
	DefaultBuildWait           = 30 * time.Second
)

// ErrInvalidConfig indicates a configuration that fails validation.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the application configuration, loaded from YAML.
type Config struct {
	// ServiceName identifies the process in telemetry.
	// Default: DefaultServiceName
	ServiceName string `yaml:"service_name"`

	Catalog   CatalogConfig   `yaml:"catalog"`
	Factory   FactoryConfig   `yaml:"factory"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// CatalogConfig configures material file lookup.
type CatalogConfig struct {
	// Paths are searched in order for material files. Entries may use
	// ${VAR} references.
	Paths []string `yaml:"paths"`
}

// FactoryConfig configures material construction.
type FactoryConfig struct {
	// DefaultTemperature applies to materials without a temperature, in kelvin.
	// Default: factory.DefaultTemperature
	DefaultTemperature float64 `yaml:"default_temperature"`

	// MaxConcurrentBuilds caps concurrent derived builds. Zero disables the cap.
	// Default: DefaultMaxConcurrentBuilds
	MaxConcurrentBuilds int `yaml:"max_concurrent_builds"`

	// BuildWait bounds the wait for a build slot. Zero or negative waits
	// until the request context ends.
	// Default: DefaultBuildWait
	BuildWait time.Duration `yaml:"build_wait"`
}

// TelemetryConfig configures tracing, metrics and logging.
type TelemetryConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Exporter  string  `yaml:"exporter"`   // otlp|jaeger|stdout|none
	SamplePct float64 `yaml:"sample_pct"` // 0.0-1.0
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // otlp|prometheus|stdout|none
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"` // debug|info|warn|error
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		ServiceName: DefaultServiceName,
		Factory: FactoryConfig{
			DefaultTemperature:  factory.DefaultTemperature,
			MaxConcurrentBuilds: DefaultMaxConcurrentBuilds,
			BuildWait:           DefaultBuildWait,
		},
		Telemetry: TelemetryConfig{
			Tracing: TracingConfig{Exporter: "none", SamplePct: 1.0},
			Metrics: MetricsConfig{Exporter: "none"},
			Logging: LoggingConfig{Enabled: true, Level: "info"},
		},
	}
}

// Load reads the file at path over Default and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over Default and validates the result. Unknown fields
// are rejected.
func Parse(data []byte) (*Config, error) {
	expanded, err := catalog.ExpandEnvStrict(string(data))
	if err != nil {
		return nil, err
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks c, including the telemetry settings.
func (c *Config) Validate() error {
	if !(c.Factory.DefaultTemperature > 0) || math.IsInf(c.Factory.DefaultTemperature, 0) {
		return fmt.Errorf("%w: factory.default_temperature must be positive, got %g", ErrInvalidConfig, c.Factory.DefaultTemperature)
	}
	if c.Factory.MaxConcurrentBuilds < 0 {
		return fmt.Errorf("%w: factory.max_concurrent_builds must not be negative", ErrInvalidConfig)
	}
	oc := c.ObserveConfig()
	if err := oc.Validate(); err != nil {
		return fmt.Errorf("%w: telemetry: %w", ErrInvalidConfig, err)
	}
	return nil
}

// ObserveConfig maps the telemetry section onto observe.Config.
func (c *Config) ObserveConfig() observe.Config {
	t := c.Telemetry
	return observe.Config{
		ServiceName: c.ServiceName,
		Tracing: observe.TracingConfig{
			Enabled:   t.Tracing.Enabled,
			Exporter:  t.Tracing.Exporter,
			SamplePct: t.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  t.Metrics.Enabled,
			Exporter: t.Metrics.Exporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: t.Logging.Enabled,
			Level:   t.Logging.Level,
		},
	}
}

// CatalogConfig returns the catalog settings.
func (c *Config) CatalogConfig() catalog.Config {
	return catalog.Config{Paths: append([]string(nil), c.Catalog.Paths...)}
}

// BulkheadConfig returns the derived build limit, or false when builds are
// unlimited. A non-positive build wait blocks until the caller gives up.
func (c *Config) BulkheadConfig() (resilience.BulkheadConfig, bool) {
	if c.Factory.MaxConcurrentBuilds == 0 {
		return resilience.BulkheadConfig{}, false
	}
	wait := c.Factory.BuildWait
	if wait <= 0 {
		wait = -1
	}
	return resilience.BulkheadConfig{
		MaxConcurrent: c.Factory.MaxConcurrentBuilds,
		MaxWait:       wait,
	}, true
}
