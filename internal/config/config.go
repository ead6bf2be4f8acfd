// Package config 从环境变量加载分析参数，命令行参数可以再覆盖它们。
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"track-structure-analyzer/internal/types"

	"github.com/sethvargo/go-envconfig"
)

// ErrInvalidConfig 配置值不合法
var ErrInvalidConfig = errors.New("config: 配置无效")

// Config 应用配置
type Config struct {
	// 日志
	LogFormat string `env:"LOG_FORMAT, default=text" validate:"oneof=text json" json:"log_format"`
	LogLevel  string `env:"LOG_LEVEL, default=info" validate:"oneof=debug info warn warning error" json:"log_level"`

	// 批量处理，0 表示使用全部 CPU
	Concurrency int    `env:"CONCURRENCY, default=0" validate:"gte=0" json:"concurrency"`
	AubioBin    string `env:"AUBIO_BIN, default=aubio" validate:"required" json:"aubio_bin"`

	// 频谱帧
	FrameSize int `env:"FRAME_SIZE, default=2048" json:"frame_size"`
	HopSize   int `env:"HOP_SIZE, default=512" json:"hop_size"`

	// 鼓点检测
	KickThreshold   float64 `env:"KICK_THRESHOLD, default=1.8" json:"kick_threshold"`
	SnareThreshold  float64 `env:"SNARE_THRESHOLD, default=2.0" json:"snare_threshold"`
	HiHatThreshold  float64 `env:"HIHAT_THRESHOLD, default=1.6" json:"hihat_threshold"`
	KickMinSpacing  float64 `env:"KICK_MIN_SPACING, default=0.15" json:"kick_min_spacing"`
	SnareMinSpacing float64 `env:"SNARE_MIN_SPACING, default=0.12" json:"snare_min_spacing"`
	HiHatMinSpacing float64 `env:"HIHAT_MIN_SPACING, default=0.05" json:"hihat_min_spacing"`

	// 段落与乐句
	SectionChangeThreshold float64 `env:"SECTION_CHANGE_THRESHOLD, default=0.15" json:"section_change_threshold"`
	MinSectionLength       float64 `env:"MIN_SECTION_LENGTH, default=4.0" json:"min_section_length"`
	PhraseMinSpacing       float64 `env:"PHRASE_MIN_SPACING, default=2.0" json:"phrase_min_spacing"`
	DownbeatStdFactor      float64 `env:"DOWNBEAT_STD_FACTOR, default=0.3" json:"downbeat_std_factor"`
}

// Load 从环境变量读取配置
func Load() (*Config, error) {
	return load(envconfig.OsLookuper())
}

func load(lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate 校验配置以及由它得到的分析参数
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return ValidateTuning(c.Tuning())
}

// ValidateTuning 校验分析参数
func ValidateTuning(tuning types.Tuning) error {
	if err := validate.Struct(tuning); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Tuning 转换为流水线参数，频段边界沿用默认值
func (c *Config) Tuning() types.Tuning {
	tuning := types.DefaultTuning()

	tuning.FrameSize = c.FrameSize
	tuning.HopSize = c.HopSize
	tuning.Kick.Threshold = c.KickThreshold
	tuning.Kick.MinSpacing = c.KickMinSpacing
	tuning.Snare.Threshold = c.SnareThreshold
	tuning.Snare.MinSpacing = c.SnareMinSpacing
	tuning.HiHat.Threshold = c.HiHatThreshold
	tuning.HiHat.MinSpacing = c.HiHatMinSpacing
	tuning.SectionChangeThreshold = c.SectionChangeThreshold
	tuning.MinSectionLength = c.MinSectionLength
	tuning.PhraseMinSpacing = c.PhraseMinSpacing
	tuning.DownbeatStdFactor = c.DownbeatStdFactor

	return tuning
}

// AnalyzerConfig 转换为批量分析配置
func (c *Config) AnalyzerConfig() *types.AnalyzerConfig {
	concurrency := c.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	return &types.AnalyzerConfig{
		Concurrency: concurrency,
		AubioBin:    c.AubioBin,
	}
}

// NewLogger 创建结构化日志记录器
//
// 日志写到 stderr，stdout 留给分析报告。
func (c *Config) NewLogger() *slog.Logger {
	return c.newLogger(os.Stderr)
}

func (c *Config) newLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// String 返回配置的可读形式
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{LogFormat: %s, LogLevel: %s, Concurrency: %d, AubioBin: %s, FrameSize: %d, HopSize: %d, SectionChangeThreshold: %.2f, MinSectionLength: %.1f}",
		c.LogFormat,
		c.LogLevel,
		c.Concurrency,
		c.AubioBin,
		c.FrameSize,
		c.HopSize,
		c.SectionChangeThreshold,
		c.MinSectionLength,
	)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
