package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"track-structure-analyzer/internal/beatgrid"
	"track-structure-analyzer/internal/decoder"
	"track-structure-analyzer/internal/types"

	"github.com/schollz/progressbar/v3"
)

// Analyzer 批量分析音频文件的段落结构
type Analyzer struct {
	config          *types.AnalyzerConfig
	pipeline        *Pipeline
	decoderRegistry *decoder.DecoderRegistry
	beats           beatgrid.Source
	logger          *slog.Logger
	out             io.Writer
}

// NewAnalyzer 创建新的分析器
//
// 节拍来源：--aubio 优先，其次是 --beats 指定的文件，否则查找每个音频旁边的节拍文件。
func NewAnalyzer(config *types.AnalyzerConfig, pipeline *Pipeline, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}

	var beats beatgrid.Source
	switch {
	case config.UseAubio:
		beats = beatgrid.Aubio(config.AubioBin)
	case config.BeatsPath != "":
		beats = beatgrid.File(config.BeatsPath)
	default:
		beats = beatgrid.Sidecar()
	}

	return &Analyzer{
		config:          config,
		pipeline:        pipeline,
		decoderRegistry: decoder.NewDecoderRegistry(),
		beats:           beats,
		logger:          logger,
		out:             os.Stdout,
	}
}

// SupportsFile 判断文件是否为可解码的音频格式
func (a *Analyzer) SupportsFile(filePath string) bool {
	return a.decoderRegistry.Supports(filePath)
}

// AnalyzeFiles 分析多个音频文件并输出报告
func (a *Analyzer) AnalyzeFiles(ctx context.Context, filePaths []string) ([]*types.TrackReport, error) {
	interactive := !a.config.Quiet && !a.config.JSONOutput

	// 单个文件时显示分析进度，多个文件时显示完成的文件数
	var bar *progressbar.ProgressBar
	var onProgress ProgressFunc
	if interactive {
		if len(filePaths) == 1 {
			bar = progressbar.NewOptions(100,
				progressbar.OptionSetDescription(filepath.Base(filePaths[0])),
				progressbar.OptionSetWidth(50),
				progressbar.OptionShowElapsedTimeOnFinish(),
			)
			onProgress = func(value float64) {
				bar.Set(int(value * 100))
			}
		} else {
			bar = progressbar.NewOptions(len(filePaths),
				progressbar.OptionSetDescription("分析音频结构"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(50),
				progressbar.OptionShowIts(),
			)
		}
	}

	concurrency := max(1, a.config.Concurrency)
	jobs := make(chan string, len(filePaths))
	results := make(chan *types.TrackReport, len(filePaths))

	var wg sync.WaitGroup
	for range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for filePath := range jobs {
				results <- a.analyzeFile(ctx, filePath, onProgress)
				if bar != nil && onProgress == nil {
					bar.Add(1)
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, filePath := range filePaths {
			select {
			case jobs <- filePath:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var reports []*types.TrackReport
	for report := range results {
		reports = append(reports, report)
		a.outputResult(report)
	}

	if bar != nil {
		bar.Finish()
		fmt.Fprintln(a.out)
	}

	if err := ctx.Err(); err != nil {
		return reports, err
	}

	if interactive {
		a.printSummary(reports)
	}

	return reports, nil
}

// analyzeFile 分析单个音频文件，失败时返回状态为 ERROR 的报告
func (a *Analyzer) analyzeFile(ctx context.Context, filePath string, onProgress ProgressFunc) *types.TrackReport {
	report := &types.TrackReport{
		FilePath: filePath,
		Status:   "ERROR",
	}
	logger := a.logger.With(slog.String("file", filePath))

	wave, audioFile, err := a.decoderRegistry.ReadWaveform(filePath)
	if err != nil {
		report.Error = fmt.Sprintf("解码失败: %v", err)
		logger.Warn("decode failed", slog.String("error", err.Error()))
		return report
	}
	defer audioFile.Close()

	report.Format = audioFile.GetFormat()
	report.Metadata = audioFile.GetMetadata()

	grid, err := beatgrid.Load(ctx, a.beats, filePath)
	switch {
	case errors.Is(err, beatgrid.ErrNoBeats):
		// 没有节拍时仍可分析能量和鼓点
		logger.Warn("no beat grid, analysing without beats", slog.String("reason", err.Error()))
		grid = beatgrid.New(nil)
	case err != nil:
		report.Error = fmt.Sprintf("读取节拍失败: %v", err)
		logger.Warn("beat source failed", slog.String("error", err.Error()))
		return report
	}

	task := a.pipeline.Start(wave, grid)
	a.forwardProgress(ctx, task, onProgress)

	result, err := task.Wait(ctx)
	if err != nil {
		report.Error = fmt.Sprintf("结构分析失败: %v", err)
		return report
	}

	report.Structure = result
	report.Status = "OK"
	return report
}

// forwardProgress 转发进度直到分析结束；ctx 取消时立即返回，放弃仍在运行的分析
func (a *Analyzer) forwardProgress(ctx context.Context, task *Task, onProgress ProgressFunc) {
	progress := task.Progress()
	for {
		select {
		case value, ok := <-progress:
			if !ok {
				return
			}
			if onProgress != nil {
				onProgress(value)
			}
		case <-ctx.Done():
			return
		}
	}
}

// outputResult 输出单个分析结果
func (a *Analyzer) outputResult(report *types.TrackReport) {
	// 静默模式每个文件一行：路径和段落序列
	if a.config.Quiet {
		if report.Status != "OK" {
			fmt.Fprintf(os.Stderr, "%s: %s\n", report.FilePath, report.Error)
			return
		}
		fmt.Fprintf(a.out, "%s\t%s\n", report.FilePath, sectionSequence(report.Structure.Sections))
		return
	}

	if a.config.JSONOutput {
		jsonData, err := json.Marshal(report)
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON序列化失败: %v\n", err)
			return
		}
		fmt.Fprintln(a.out, string(jsonData))
		return
	}

	a.printDetailedResult(report)
}

func sectionSequence(sections []types.MusicSection) string {
	names := make([]string, len(sections))
	for i, section := range sections {
		names[i] = section.Type.String()
	}
	return strings.Join(names, ",")
}

// printDetailedResult 打印详细结果
func (a *Analyzer) printDetailedResult(report *types.TrackReport) {
	w := a.out
	fmt.Fprintf(w, "\n=== %s ===\n", filepath.Base(report.FilePath))
	fmt.Fprintf(w, "路径: %s\n", report.FilePath)
	fmt.Fprintf(w, "格式: %s\n", report.Format)
	fmt.Fprintf(w, "状态: %s\n", report.Status)

	if report.Error != "" {
		fmt.Fprintf(w, "错误: %s\n", report.Error)
		return
	}

	if report.Metadata.Title != "" {
		fmt.Fprintf(w, "标题: %s\n", report.Metadata.Title)
	}
	if report.Metadata.Artist != "" {
		fmt.Fprintf(w, "艺术家: %s\n", report.Metadata.Artist)
	}

	result := report.Structure
	fmt.Fprintf(w, "时长: %.2f 秒\n", result.Duration)
	fmt.Fprintf(w, "速度: %.1f BPM\n", result.Tempo)
	fmt.Fprintf(w, "节拍: %d (重拍 %d, 小节 %d)\n", len(result.BeatTimes), len(result.DownbeatTimes), len(result.BarTimes))

	fmt.Fprintf(w, "段落:\n")
	for _, section := range result.Sections {
		fmt.Fprintf(w, "  %7.2f - %7.2f  %-9s  能量 %.2f\n",
			section.StartTime, section.EndTime, section.Type, section.Energy)
	}

	fmt.Fprintf(w, "鼓点: 底鼓 %d, 军鼓 %d, 踩镲 %d",
		len(result.Drums.Kicks), len(result.Drums.Snares), len(result.Drums.HiHats))
	if result.Drums.PatternLength > 0 {
		fmt.Fprintf(w, ", 循环长度 %.2f 秒", result.Drums.PatternLength)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "乐句边界: %s\n", formatTimes(result.PhraseBoundaries))
}

func formatTimes(times []float64) string {
	parts := make([]string, len(times))
	for i, t := range times {
		parts[i] = fmt.Sprintf("%.2f", t)
	}
	return strings.Join(parts, " ")
}

// printSummary 打印统计摘要
func (a *Analyzer) printSummary(reports []*types.TrackReport) {
	ok := 0
	failed := 0
	sectionCounts := make(map[types.SectionType]int)

	for _, report := range reports {
		if report.Status != "OK" {
			failed++
			continue
		}
		ok++
		for _, section := range report.Structure.Sections {
			sectionCounts[section.Type]++
		}
	}

	w := a.out
	fmt.Fprintf(w, "\n=== 分析统计 ===\n")
	fmt.Fprintf(w, "总文件数: %d\n", len(reports))
	fmt.Fprintf(w, "成功: %d\n", ok)
	if failed > 0 {
		fmt.Fprintf(w, "失败: %d\n", failed)
	}

	for _, sectionType := range types.SectionTypes {
		if n := sectionCounts[sectionType]; n > 0 {
			fmt.Fprintf(w, "  %-9s %d\n", sectionType, n)
		}
	}
}
