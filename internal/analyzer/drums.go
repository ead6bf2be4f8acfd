package analyzer

import (
	"fmt"

	"track-structure-analyzer/internal/types"

	"gonum.org/v1/gonum/floats"
)

const (
	// 起音检测前的预热帧数，同时也是局部均值的长度
	onsetWarmupFrames = 10
	// 假设一个循环为16拍（4小节）
	beatsPerPattern = 16
)

// drumBand 单个频段的检测状态
type drumBand struct {
	cfg      types.BandConfig
	loBin    int // 包含
	hiBin    int // 不包含
	energies []float64
	hits     []float64
}

// DrumDetector 鼓点检测器
type DrumDetector struct {
	tuning types.Tuning
}

// NewDrumDetector 创建鼓点检测器
func NewDrumDetector(tuning types.Tuning) *DrumDetector {
	return &DrumDetector{tuning: tuning}
}

// DetectDrums 使用默认参数检测鼓点
func DetectDrums(samples []float64, sampleRate int, beatTimes []float64) types.DrumPattern {
	return NewDrumDetector(types.DefaultTuning()).Detect(samples, sampleRate, beatTimes)
}

// Detect 在低/中/高三个频段上检测底鼓、军鼓和踩镲
func (d *DrumDetector) Detect(samples []float64, sampleRate int, beatTimes []float64) types.DrumPattern {
	pattern := types.DrumPattern{
		Kicks:         []float64{},
		Snares:        []float64{},
		HiHats:        []float64{},
		PatternLength: patternLength(beatTimes),
	}

	frameSize := d.tuning.FrameSize
	hopSize := d.tuning.HopSize
	if hopSize <= 0 {
		panic(fmt.Sprintf("analyzer: 帧移必须为正数, 实际为 %d", hopSize))
	}
	if len(samples) < frameSize || sampleRate <= 0 {
		pattern.PatternLength = 0
		return pattern
	}

	spectrum := NewSpectrumAnalyzer(frameSize)
	spectrumLength := frameSize / 2

	bands := []*drumBand{
		newDrumBand(d.tuning.Kick, sampleRate, spectrumLength),
		newDrumBand(d.tuning.Snare, sampleRate, spectrumLength),
		newDrumBand(d.tuning.HiHat, sampleRate, spectrumLength),
	}

	for start := 0; start+frameSize <= len(samples); start += hopSize {
		mags := spectrum.Magnitudes(samples[start : start+frameSize])
		t := float64(start) / float64(sampleRate)

		for _, band := range bands {
			band.push(mags, t)
		}
	}

	pattern.Kicks = bands[0].hits
	pattern.Snares = bands[1].hits
	pattern.HiHats = bands[2].hits
	return pattern
}

func newDrumBand(cfg types.BandConfig, sampleRate, spectrumLength int) *drumBand {
	band := &drumBand{
		cfg:   cfg,
		loBin: spectrumLength,
		hiBin: spectrumLength,
		hits:  []float64{},
	}

	for bin := range spectrumLength {
		freq := BinFrequency(bin, sampleRate, spectrumLength)
		if freq >= cfg.LowHz && band.loBin == spectrumLength {
			band.loBin = bin
		}
		if freq > cfg.HighHz {
			band.hiBin = bin
			break
		}
	}
	if band.hiBin < band.loBin {
		band.hiBin = band.loBin
	}

	return band
}

// push 记录一帧的频段能量并判断是否为起音
func (b *drumBand) push(mags []float64, t float64) {
	energy := windowRMS(mags[b.loBin:b.hiBin])
	b.energies = append(b.energies, energy)

	if !isOnset(b.energies, len(b.energies)-1, b.cfg.Threshold) {
		return
	}

	// 距离上一次命中太近的候选直接丢弃
	if n := len(b.hits); n > 0 && t-b.hits[n-1] < b.cfg.MinSpacing {
		return
	}
	b.hits = append(b.hits, t)
}

// isOnset 判断第 i 帧是否超过局部均值的 threshold 倍且处于上升沿
func isOnset(energies []float64, i int, threshold float64) bool {
	if i < onsetWarmupFrames {
		return false
	}

	current := energies[i]
	localMean := floats.Sum(energies[i-onsetWarmupFrames:i]) / onsetWarmupFrames

	// 上升沿条件避免在持续的高能量段重复触发
	return current > threshold*localMean && current > energies[i-1]
}

// patternLength 按平均拍间隔估计循环长度
func patternLength(beatTimes []float64) float64 {
	if len(beatTimes) < 2 {
		return 0
	}
	meanInterval := (beatTimes[len(beatTimes)-1] - beatTimes[0]) / float64(len(beatTimes)-1)
	return meanInterval * beatsPerPattern
}
