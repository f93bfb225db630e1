// Package config loads qrscan settings from files, environment variables and
// command-line flags.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/batch"
	"github.com/MeKo-Tech/qrscan/internal/codec"
	"github.com/MeKo-Tech/qrscan/internal/history"
	"github.com/MeKo-Tech/qrscan/internal/normalize"
	"github.com/MeKo-Tech/qrscan/internal/scan"
)

// Config represents the complete configuration for qrscan. It covers every
// command (scan, batch, serve, history).
type Config struct {
	// Global settings
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format" json:"log_format"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Scan      ScanConfig      `mapstructure:"scan" yaml:"scan" json:"scan"`
	Normalize NormalizeConfig `mapstructure:"normalize" yaml:"normalize" json:"normalize"`
	Decode    DecodeConfig    `mapstructure:"decode" yaml:"decode" json:"decode"`
	Detect    DetectConfig    `mapstructure:"detect" yaml:"detect" json:"detect"`
	History   HistoryConfig   `mapstructure:"history" yaml:"history" json:"history"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server" json:"server"`
	Batch     BatchConfig     `mapstructure:"batch" yaml:"batch" json:"batch"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output" json:"output"`
}

// ScanConfig contains task lifetime settings.
type ScanConfig struct {
	// Timeout is a Go duration string, fixed at task creation.
	Timeout string `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	Preempt bool   `mapstructure:"preempt" yaml:"preempt" json:"preempt"`
}

// NormalizeConfig contains canonical image settings.
type NormalizeConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	TargetWidth int    `mapstructure:"target_width" yaml:"target_width" json:"target_width"`
	Format      string `mapstructure:"format" yaml:"format" json:"format"`
	JPEGQuality int    `mapstructure:"jpeg_quality" yaml:"jpeg_quality" json:"jpeg_quality"`
	Filter      string `mapstructure:"filter" yaml:"filter" json:"filter"`
}

// DecodeConfig contains the container format fallback order.
type DecodeConfig struct {
	Fallback []string `mapstructure:"fallback" yaml:"fallback" json:"fallback"`
}

// DetectConfig contains QR reader hints.
type DetectConfig struct {
	TryHarder   bool `mapstructure:"try_harder" yaml:"try_harder" json:"try_harder"`
	PureBarcode bool `mapstructure:"pure_barcode" yaml:"pure_barcode" json:"pure_barcode"`
}

// HistoryConfig selects the history backend.
type HistoryConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Backend    string `mapstructure:"backend" yaml:"backend" json:"backend"`
	Path       string `mapstructure:"path" yaml:"path" json:"path"`
	Key        string `mapstructure:"key" yaml:"key" json:"key"`
	MaxEntries int    `mapstructure:"max_entries" yaml:"max_entries" json:"max_entries"`
	RedisAddr  string `mapstructure:"redis_addr" yaml:"redis_addr" json:"redis_addr"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string  `mapstructure:"host" yaml:"host" json:"host"`
	Port            int     `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string  `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int     `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	ShutdownTimeout int     `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimitRPS    float64 `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps" json:"rate_limit_rps"`
	RateLimitBurst  int     `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst" json:"rate_limit_burst"`
}

// BatchConfig contains file discovery settings for batch scans.
type BatchConfig struct {
	Recursive       bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	ContinueOnError bool     `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
	Include         []string `mapstructure:"include" yaml:"include" json:"include"`
	Exclude         []string `mapstructure:"exclude" yaml:"exclude" json:"exclude"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	File   string `mapstructure:"file" yaml:"file" json:"file"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	ncfg := normalize.DefaultConfig()
	fallback := codec.DefaultFallbackPolicy()
	names := make([]string, len(fallback))
	for i, f := range fallback {
		names[i] = f.String()
	}

	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Scan: ScanConfig{
			Timeout: scan.DefaultTimeout.String(),
		},
		Normalize: NormalizeConfig{
			Enabled:     ncfg.Enabled,
			TargetWidth: ncfg.TargetWidth,
			Format:      ncfg.Format.String(),
			JPEGQuality: ncfg.JPEGQuality,
			Filter:      ncfg.Filter,
		},
		Decode: DecodeConfig{Fallback: names},
		Detect: DetectConfig{TryHarder: true},
		History: HistoryConfig{
			Enabled: true,
			Backend: "file",
			Path:    DefaultHistoryPath(),
			Key:     history.DefaultKey,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			ShutdownTimeout: 10,
			RateLimitRPS:    5,
			RateLimitBurst:  10,
		},
		Batch: BatchConfig{
			ContinueOnError: true,
		},
		Output: OutputConfig{
			Format: "text",
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	validLogFormats := []string{"text", "json"}
	if c.LogFormat != "" && !slices.Contains(validLogFormats, c.LogFormat) {
		return fmt.Errorf("invalid log format: %s (must be one of: %s)", c.LogFormat, strings.Join(validLogFormats, ", "))
	}

	validFormats := []string{"text", "json", "csv"}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	if _, err := c.ScanTimeout(); err != nil {
		return err
	}
	if _, err := c.ToNormalizeConfig(); err != nil {
		return err
	}
	if _, err := c.FallbackPolicy(); err != nil {
		return err
	}

	validBackends := []string{"memory", "file", "redis"}
	if !slices.Contains(validBackends, c.History.Backend) {
		return fmt.Errorf("invalid history backend: %s (must be one of: %s)", c.History.Backend, strings.Join(validBackends, ", "))
	}
	if c.History.Enabled && c.History.Backend == "file" && c.History.Path == "" {
		return fmt.Errorf("history.path is required for the file backend")
	}
	if c.History.MaxEntries < 0 {
		return fmt.Errorf("invalid history max entries: %d (must not be negative)", c.History.MaxEntries)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %d (must be positive)", c.Server.ShutdownTimeout)
	}
	if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 {
		return fmt.Errorf("invalid rate limit: %.2f rps, burst %d (must not be negative)", c.Server.RateLimitRPS, c.Server.RateLimitBurst)
	}

	return nil
}

// ScanTimeout parses scan.timeout.
func (c *Config) ScanTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Scan.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid scan timeout %q: %w", c.Scan.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid scan timeout %q (must be positive)", c.Scan.Timeout)
	}
	return d, nil
}

// ToScanConfig converts to scan.Config.
func (c *Config) ToScanConfig() (scan.Config, error) {
	timeout, err := c.ScanTimeout()
	if err != nil {
		return scan.Config{}, err
	}
	return scan.Config{Timeout: timeout, Preempt: c.Scan.Preempt, DeliverWait: scan.DefaultDeliverWait}, nil
}

// ToNormalizeConfig converts to normalize.Config.
func (c *Config) ToNormalizeConfig() (normalize.Config, error) {
	cfg := normalize.Config{
		Enabled:     c.Normalize.Enabled,
		TargetWidth: c.Normalize.TargetWidth,
		JPEGQuality: c.Normalize.JPEGQuality,
		Filter:      c.Normalize.Filter,
	}
	f, ok := codec.ParseFormat(c.Normalize.Format)
	if !ok {
		return normalize.Config{}, fmt.Errorf("invalid normalize format: %s", c.Normalize.Format)
	}
	cfg.Format = f
	if _, err := normalize.New(cfg); err != nil {
		return normalize.Config{}, fmt.Errorf("invalid normalize settings: %w", err)
	}
	return cfg, nil
}

// FallbackPolicy parses decode.fallback.
func (c *Config) FallbackPolicy() (codec.FallbackPolicy, error) {
	return codec.ParseFallbackPolicy(c.Decode.Fallback)
}

// ToDetectOptions converts to barcode.Options.
func (c *Config) ToDetectOptions() barcode.Options {
	return barcode.Options{TryHarder: c.Detect.TryHarder, PureBarcode: c.Detect.PureBarcode}
}

// ToHistoryOptions converts to history.Options.
func (c *Config) ToHistoryOptions() history.Options {
	return history.Options{
		Backend:    c.History.Backend,
		Path:       c.History.Path,
		Key:        c.History.Key,
		MaxEntries: c.History.MaxEntries,
		RedisAddr:  c.History.RedisAddr,
	}
}

// ToBatchConfig converts to batch.Config.
func (c *Config) ToBatchConfig() *batch.Config {
	cfg := batch.DefaultConfig()
	cfg.Recursive = c.Batch.Recursive
	cfg.ContinueOnError = c.Batch.ContinueOnError
	cfg.IncludePatterns = c.Batch.Include
	cfg.ExcludePatterns = c.Batch.Exclude
	cfg.Format = c.Output.Format
	cfg.OutputFile = c.Output.File
	return cfg
}

// BuildStages builds the scan pipeline stages from the configuration.
func (c *Config) BuildStages() (scan.Stages, error) {
	ncfg, err := c.ToNormalizeConfig()
	if err != nil {
		return scan.Stages{}, err
	}
	policy, err := c.FallbackPolicy()
	if err != nil {
		return scan.Stages{}, err
	}
	return scan.NewStages(ncfg, policy, c.ToDetectOptions())
}
