package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"track-structure-analyzer/internal/analyzer"
	"track-structure-analyzer/internal/config"

	"github.com/spf13/cobra"
)

var (
	quiet       bool
	jsonOutput  bool
	concurrency int
	beatsPath   string
	useAubio    bool
	aubioBin    string
	logLevel    string
	logFormat   string

	kickThreshold    float64
	snareThreshold   float64
	hihatThreshold   float64
	changeThreshold  float64
	minSectionLength float64

	version = "0.3.0"
)

var rootCmd = &cobra.Command{
	Use:   "track-structure-analyzer [path]",
	Short: "分析音乐的段落结构、鼓点和乐句",
	Long: `Track Structure Analyzer 对 WAV/FLAC 文件做离线结构分析：
能量包络、底鼓/军鼓/踩镲检测、前奏/主歌/副歌/Drop/Breakdown/尾奏的段落划分，
以及重拍和乐句边界。

节拍来自 --beats 指定的文件、aubio（--aubio），或与音频同名的 .beats / .beats.json 文件。
所有参数都可以通过环境变量设置，命令行参数优先。`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runAnalysis,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.Flags()
	flags.BoolVarP(&quiet, "quiet", "q", false, "静默模式，每个文件只输出一行段落序列")
	flags.BoolVar(&jsonOutput, "json", false, "以JSON格式输出结果")
	flags.IntVarP(&concurrency, "concurrency", "j", 0, "并发处理文件数量 (0 表示 CPU 核数)")
	flags.StringVarP(&beatsPath, "beats", "b", "", "节拍文件 (每行一个时间戳或 JSON)")
	flags.BoolVar(&useAubio, "aubio", false, "使用 aubio 跟踪节拍")
	flags.StringVar(&aubioBin, "aubio-bin", "aubio", "aubio 可执行文件")
	flags.StringVar(&logLevel, "log-level", "info", "日志级别 (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", "text", "日志格式 (text, json)")

	flags.Float64Var(&kickThreshold, "kick-threshold", 1.8, "底鼓起音阈值 (局部均值的倍数)")
	flags.Float64Var(&snareThreshold, "snare-threshold", 2.0, "军鼓起音阈值")
	flags.Float64Var(&hihatThreshold, "hihat-threshold", 1.6, "踩镲起音阈值")
	flags.Float64Var(&changeThreshold, "change-threshold", 0.15, "段落边界的能量变化阈值")
	flags.Float64Var(&minSectionLength, "min-section", 4.0, "最短段落长度 (秒)")

	rootCmd.MarkFlagsMutuallyExclusive("beats", "aubio")
	rootCmd.MarkFlagsMutuallyExclusive("quiet", "json")

	rootCmd.SetVersionTemplate("track-structure-analyzer version {{.Version}}\n")
	rootCmd.Version = version
}

func runAnalysis(cmd *cobra.Command, args []string) error {
	targetPath := args[0]

	if _, err := os.Stat(targetPath); os.IsNotExist(err) {
		return fmt.Errorf("路径不存在: %s", targetPath)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := cfg.NewLogger()
	logger.Debug("configuration loaded", "config", cfg.String())

	analyzerConfig := cfg.AnalyzerConfig()
	analyzerConfig.Quiet = quiet
	analyzerConfig.JSONOutput = jsonOutput
	analyzerConfig.BeatsPath = beatsPath
	analyzerConfig.UseAubio = useAubio

	pipeline := analyzer.NewPipeline(cfg.Tuning(), analyzer.WithLogger(logger))
	audioAnalyzer := analyzer.NewAnalyzer(analyzerConfig, pipeline, logger)

	files, err := collectAudioFiles(targetPath, audioAnalyzer.SupportsFile)
	if err != nil {
		return fmt.Errorf("收集音频文件失败: %w", err)
	}

	if len(files) == 0 {
		fmt.Println("未找到支持的音频文件")
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = audioAnalyzer.AnalyzeFiles(ctx, files)
	return err
}

// applyFlags 只用显式给出的命令行参数覆盖环境变量配置
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("concurrency") {
		cfg.Concurrency = concurrency
	}
	if flags.Changed("aubio-bin") {
		cfg.AubioBin = aubioBin
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = logFormat
	}
	if flags.Changed("kick-threshold") {
		cfg.KickThreshold = kickThreshold
	}
	if flags.Changed("snare-threshold") {
		cfg.SnareThreshold = snareThreshold
	}
	if flags.Changed("hihat-threshold") {
		cfg.HiHatThreshold = hihatThreshold
	}
	if flags.Changed("change-threshold") {
		cfg.SectionChangeThreshold = changeThreshold
	}
	if flags.Changed("min-section") {
		cfg.MinSectionLength = minSectionLength
	}
}

func collectAudioFiles(path string, supported func(string) bool) ([]string, error) {
	var files []string

	err := filepath.Walk(path, func(filePath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		if supported(filePath) {
			files = append(files, filePath)
		}

		return nil
	})

	return files, err
}
