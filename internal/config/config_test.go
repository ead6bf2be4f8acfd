package config

import (
	"bytes"
	"log/slog"
	"runtime"
	"testing"

	"track-structure-analyzer/internal/types"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)

	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 0, cfg.Concurrency)
	assert.Equal(t, "aubio", cfg.AubioBin)
	require.NoError(t, cfg.Validate())

	// 默认配置与默认流水线参数一致
	assert.Equal(t, types.DefaultTuning(), cfg.Tuning())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CONCURRENCY", "3")
	t.Setenv("FRAME_SIZE", "4096")
	t.Setenv("HOP_SIZE", "1024")
	t.Setenv("KICK_THRESHOLD", "2.5")
	t.Setenv("HIHAT_MIN_SPACING", "0.08")
	t.Setenv("MIN_SECTION_LENGTH", "8")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 3, cfg.AnalyzerConfig().Concurrency)

	tuning := cfg.Tuning()
	assert.Equal(t, 4096, tuning.FrameSize)
	assert.Equal(t, 1024, tuning.HopSize)
	assert.Equal(t, 2.5, tuning.Kick.Threshold)
	assert.Equal(t, 0.08, tuning.HiHat.MinSpacing)
	assert.Equal(t, 8.0, tuning.MinSectionLength)
	assert.Equal(t, 200.0, tuning.Kick.HighHz)
}

func TestLoad_MalformedValue(t *testing.T) {
	_, err := load(envconfig.MapLookuper(map[string]string{"FRAME_SIZE": "big"}))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"frame size not a power of two", func(c *Config) { c.FrameSize = 1000 }},
		{"zero frame size", func(c *Config) { c.FrameSize = 0 }},
		{"hop larger than frame", func(c *Config) { c.HopSize = 4096 }},
		{"zero hop", func(c *Config) { c.HopSize = 0 }},
		{"threshold not above local mean", func(c *Config) { c.SnareThreshold = 1.0 }},
		{"negative spacing", func(c *Config) { c.KickMinSpacing = -0.1 }},
		{"change threshold above one", func(c *Config) { c.SectionChangeThreshold = 1.5 }},
		{"unknown log format", func(c *Config) { c.LogFormat = "xml" }},
		{"unknown log level", func(c *Config) { c.LogLevel = "trace" }},
		{"negative concurrency", func(c *Config) { c.Concurrency = -1 }},
		{"empty aubio binary", func(c *Config) { c.AubioBin = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := load(envconfig.MapLookuper(map[string]string{}))
			require.NoError(t, err)

			tt.mutate(cfg)

			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestValidateTuning_Default(t *testing.T) {
	assert.NoError(t, ValidateTuning(types.DefaultTuning()))

	tuning := types.DefaultTuning()
	tuning.Snare.HighHz = tuning.Snare.LowHz
	assert.ErrorIs(t, ValidateTuning(tuning), ErrInvalidConfig)
}

func TestAnalyzerConfig_AllCPUs(t *testing.T) {
	cfg := &Config{Concurrency: 0, AubioBin: "/opt/aubio"}

	got := cfg.AnalyzerConfig()

	assert.Equal(t, runtime.NumCPU(), got.Concurrency)
	assert.Equal(t, "/opt/aubio", got.AubioBin)
}

func TestNewLogger(t *testing.T) {
	t.Run("json format", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := &Config{LogFormat: "json", LogLevel: "info"}

		cfg.newLogger(&buf).Info("analysis completed", slog.String("run_id", "abc"))

		assert.Contains(t, buf.String(), `"run_id":"abc"`)
		assert.Contains(t, buf.String(), `"msg":"analysis completed"`)
	})

	t.Run("text format filters by level", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := &Config{LogFormat: "text", LogLevel: "warn"}

		logger := cfg.newLogger(&buf)
		logger.Info("hidden")
		logger.Warn("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "msg=shown")
	})
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.input))
		})
	}
}
