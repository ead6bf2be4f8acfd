package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"track-structure-analyzer/internal/types"

	"github.com/google/uuid"
)

var (
	// ErrInvalidSampleRate 采样率不是正数
	ErrInvalidSampleRate = errors.New("analyzer: 采样率必须为正数")
	// ErrStageFailed 某个分析阶段失败，整条流水线中止
	ErrStageFailed = errors.New("analyzer: 分析阶段失败")
)

// 固定的进度里程碑，单调递增
const (
	progressInit      = 0.05
	progressValidated = 0.10
	progressBeats     = 0.35
	progressEnergy    = 0.45
	progressSections  = 0.60
	progressDrums     = 0.75
	progressPhrases   = 0.90
	progressDone      = 1.0

	progressSteps = 8
)

// ProgressFunc 进度回调，参数在 [0,1] 之间
type ProgressFunc func(float64)

// Pipeline 结构分析流水线
//
// Pipeline 本身只持有只读参数，可以被多个并发的分析共享；每次分析的数据都归该次运行所有。
type Pipeline struct {
	tuning types.Tuning
	logger *slog.Logger
}

// Option 配置 Pipeline
type Option func(*Pipeline)

// WithLogger 设置日志记录器
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline 创建分析流水线
func NewPipeline(tuning types.Tuning, opts ...Option) *Pipeline {
	p := &Pipeline{
		tuning: tuning,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run 顺序执行所有分析阶段
//
// 波形缓冲区的所有权转移给本次运行，调用方之后不应再修改它。
// 任一阶段失败都会中止整条流水线，只返回一个错误，不返回部分结果。
func (p *Pipeline) Run(wave types.Waveform, grid types.BeatGrid, progress ProgressFunc) (result *types.AnalysisResult, err error) {
	runID := uuid.NewString()
	logger := p.logger.With(slog.String("run_id", runID))
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: %v", ErrStageFailed, r)
			logger.Error("analysis aborted", slog.String("error", err.Error()))
		}
	}()

	report := func(value float64) {
		if progress != nil {
			progress(value)
		}
	}

	report(progressInit)

	if wave.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSampleRate, wave.SampleRate)
	}
	duration := wave.Duration()
	report(progressValidated)

	strengths := BeatStrengths(wave.Samples, wave.SampleRate, grid.Beats)
	downbeatIndices, downbeatTimes := Downbeats(grid.Beats, strengths, p.tuning.DownbeatStdFactor)
	logger.Debug("beat refinement done",
		slog.Int("beats", len(grid.Beats)),
		slog.Int("downbeats", len(downbeatIndices)),
	)
	report(progressBeats)

	env := Envelope(wave.Samples, wave.SampleRate)
	logger.Debug("energy envelope done", slog.Int("points", len(env)))
	report(progressEnergy)

	sectionAnalyzer := NewSectionAnalyzer(p.tuning)
	sections := sectionAnalyzer.Analyze(env, grid.Bars, duration)
	logger.Debug("sections done", slog.Int("sections", len(sections)))
	report(progressSections)

	drums := NewDrumDetector(p.tuning).Detect(wave.Samples, wave.SampleRate, grid.Beats)
	logger.Debug("drum detection done",
		slog.Int("kicks", len(drums.Kicks)),
		slog.Int("snares", len(drums.Snares)),
		slog.Int("hihats", len(drums.HiHats)),
	)
	report(progressDrums)

	phrases := sectionAnalyzer.PhraseBoundaries(grid.Bars, sections)
	report(progressPhrases)

	result = &types.AnalysisResult{
		RunID:            runID,
		Duration:         duration,
		SampleRate:       wave.SampleRate,
		Tempo:            grid.Tempo,
		BeatTimes:        slices.Clone(grid.Beats),
		BarTimes:         slices.Clone(grid.Bars),
		BeatStrengths:    strengths,
		DownbeatIndices:  downbeatIndices,
		DownbeatTimes:    downbeatTimes,
		Energy:           env,
		Sections:         sections,
		Drums:            drums,
		PhraseBoundaries: phrases,
	}

	logger.Info("analysis completed",
		slog.Float64("duration_sec", duration),
		slog.Float64("tempo", grid.Tempo),
		slog.Int("sections", len(sections)),
		slog.Int("phrases", len(phrases)),
		slog.Duration("elapsed", time.Since(started)),
	)
	report(progressDone)

	return result, nil
}

// Task 在独立 goroutine 中运行的一次分析
type Task struct {
	progress chan float64
	done     chan struct{}
	result   *types.AnalysisResult
	err      error
}

// Start 在新的 goroutine 中运行流水线，调用方的 goroutine 不会被阻塞
func (p *Pipeline) Start(wave types.Waveform, grid types.BeatGrid) *Task {
	task := &Task{
		// 缓冲区能容纳全部里程碑，发送进度永远不会阻塞计算
		progress: make(chan float64, progressSteps),
		done:     make(chan struct{}),
	}

	go func() {
		defer close(task.done)
		defer close(task.progress)

		task.result, task.err = p.Run(wave, grid, func(value float64) {
			select {
			case task.progress <- value:
			default:
			}
		})
	}()

	return task
}

// Progress 返回进度通道，分析结束后关闭
func (t *Task) Progress() <-chan float64 {
	return t.progress
}

// Done 在分析结束后关闭
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait 等待分析完成；ctx 取消时放弃本次结果并返回 ctx 的错误
func (t *Task) Wait(ctx context.Context) (*types.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
