package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/codec"
	"github.com/MeKo-Tech/qrscan/internal/scan"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	timeout, err := cfg.ScanTimeout()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, timeout)
	assert.Equal(t, 500, cfg.Normalize.TargetWidth)
	assert.Equal(t, "png", cfg.Normalize.Format)
	assert.Equal(t, []string{"png", "jpeg"}, cfg.Decode.Fallback)
	assert.Equal(t, "scan_history", cfg.History.Key)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
		{"log format", func(c *Config) { c.LogFormat = "xml" }},
		{"output format", func(c *Config) { c.Output.Format = "pdf" }},
		{"timeout syntax", func(c *Config) { c.Scan.Timeout = "ten seconds" }},
		{"timeout sign", func(c *Config) { c.Scan.Timeout = "-1s" }},
		{"target width", func(c *Config) { c.Normalize.TargetWidth = 0 }},
		{"canonical format", func(c *Config) { c.Normalize.Format = "gif" }},
		{"unknown canonical format", func(c *Config) { c.Normalize.Format = "heic" }},
		{"filter", func(c *Config) { c.Normalize.Filter = "sharp" }},
		{"fallback", func(c *Config) { c.Decode.Fallback = []string{"png", "heic"} }},
		{"history backend", func(c *Config) { c.History.Backend = "sqlite" }},
		{"history path", func(c *Config) { c.History.Path = "" }},
		{"history cap", func(c *Config) { c.History.MaxEntries = -1 }},
		{"port", func(c *Config) { c.Server.Port = 70000 }},
		{"upload", func(c *Config) { c.Server.MaxUploadMB = 0 }},
		{"shutdown", func(c *Config) { c.Server.ShutdownTimeout = 0 }},
		{"rate", func(c *Config) { c.Server.RateLimitRPS = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scan.Timeout = "2500ms"
	cfg.Scan.Preempt = true
	cfg.Normalize.Format = "jpg"
	cfg.Decode.Fallback = []string{"jpeg", "webp"}
	cfg.Detect.PureBarcode = true
	cfg.History.MaxEntries = 20
	cfg.Batch.Include = []string{"*.png"}

	sc, err := cfg.ToScanConfig()
	require.NoError(t, err)
	assert.Equal(t, 2500*time.Millisecond, sc.Timeout)
	assert.True(t, sc.Preempt)
	assert.Equal(t, scan.DefaultDeliverWait, sc.DeliverWait)

	nc, err := cfg.ToNormalizeConfig()
	require.NoError(t, err)
	assert.Equal(t, codec.FormatJPEG, nc.Format)

	policy, err := cfg.FallbackPolicy()
	require.NoError(t, err)
	assert.Equal(t, codec.FallbackPolicy{codec.FormatJPEG, codec.FormatWebP}, policy)

	assert.True(t, cfg.ToDetectOptions().PureBarcode)
	assert.Equal(t, 20, cfg.ToHistoryOptions().MaxEntries)
	assert.Equal(t, []string{"*.png"}, cfg.ToBatchConfig().IncludePatterns)

	stages, err := cfg.BuildStages()
	require.NoError(t, err)
	assert.NotNil(t, stages.Normalizer)
	assert.NotNil(t, stages.Decoder)
	assert.NotNil(t, stages.Detector)
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := NewLoaderWithViper(viper.New()).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Scan, cfg.Scan)
	assert.Equal(t, DefaultConfig().Server, cfg.Server)
}

func TestLoadWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
scan:
  timeout: 3s
  preempt: true
normalize:
  target_width: 640
decode:
  fallback: [jpeg]
history:
  backend: memory
server:
  port: 9090
`), 0o600))

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "3s", cfg.Scan.Timeout)
	assert.True(t, cfg.Scan.Preempt)
	assert.Equal(t, 640, cfg.Normalize.TargetWidth)
	assert.Equal(t, "png", cfg.Normalize.Format, "unset keys keep defaults")
	assert.Equal(t, []string{"jpeg"}, cfg.Decode.Fallback)
	assert.Equal(t, "memory", cfg.History.Backend)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadWithMissingFile(t *testing.T) {
	_, err := NewLoaderWithViper(viper.New()).LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan:\n  timeout: soon\n"), 0o600))

	l := NewLoaderWithViper(viper.New())
	_, err := l.LoadWithFile(path)
	assert.ErrorContains(t, err, "validation failed")
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("QRSCAN_SCAN_TIMEOUT", "750ms")
	t.Setenv("QRSCAN_SERVER_PORT", "9999")
	t.Setenv("QRSCAN_HISTORY_BACKEND", "memory")

	cfg, err := NewLoaderWithViper(viper.New()).Load()
	require.NoError(t, err)
	assert.Equal(t, "750ms", cfg.Scan.Timeout)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.History.Backend)
}

func TestSearchPathFileIsFound(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "qrscan.yaml"), []byte("output:\n  format: json\n"), 0o600))

	l := NewLoaderWithViper(viper.New())
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Contains(t, l.GetConfigFileUsed(), "qrscan.yaml")
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "qrscan.yaml")
	require.NoError(t, GenerateDefaultConfigFile(path, false))
	assert.Error(t, GenerateDefaultConfigFile(path, false), "refuses to overwrite")
	require.NoError(t, GenerateDefaultConfigFile(path, true))

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	require.NoError(t, err)
	assertSameSettings(t, DefaultConfig(), *cfg)
}

// assertSameSettings ignores the nil versus empty distinction of list fields.
func assertSameSettings(t *testing.T, want, got Config) {
	t.Helper()
	assert.Equal(t, want.LogLevel, got.LogLevel)
	assert.Equal(t, want.Scan, got.Scan)
	assert.Equal(t, want.Normalize, got.Normalize)
	assert.Equal(t, want.Decode, got.Decode)
	assert.Equal(t, want.Detect, got.Detect)
	assert.Equal(t, want.History, got.History)
	assert.Equal(t, want.Server, got.Server)
	assert.Equal(t, want.Output, got.Output)
	assert.Equal(t, want.Batch.Recursive, got.Batch.Recursive)
	assert.Equal(t, want.Batch.ContinueOnError, got.Batch.ContinueOnError)
	assert.Empty(t, got.Batch.Include)
	assert.Empty(t, got.Batch.Exclude)
}

func TestWriteYAML(t *testing.T) {
	cfg := DefaultConfig()
	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, &cfg))

	var back Config
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	assertSameSettings(t, cfg, back)
	assert.Contains(t, buf.String(), "timeout: 10s")
}

func TestGetConfigSearchPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	paths := GetConfigSearchPaths()
	assert.Equal(t, ".", paths[0])
	assert.Contains(t, paths, filepath.Join("/tmp/xdg", "qrscan"))
	assert.Equal(t, "/etc/qrscan", paths[len(paths)-1])
}
