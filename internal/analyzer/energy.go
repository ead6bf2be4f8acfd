package analyzer

import (
	"iter"
	"math"

	"track-structure-analyzer/internal/types"

	"gonum.org/v1/gonum/floats"
)

const (
	// EnvelopeRate 能量包络的采样率 (Hz)
	EnvelopeRate = 10

	smoothingRadius = 2
	// 突变检测两侧各取1秒
	changeWindow = EnvelopeRate
)

// DefaultChangeThreshold 能量突变检测的默认阈值
const DefaultChangeThreshold = 0.2

// Envelope 计算 10Hz 的平滑归一化 RMS 能量包络
func Envelope(samples []float64, sampleRate int) types.EnergyEnvelope {
	windowSize := sampleRate / EnvelopeRate
	if windowSize <= 0 || len(samples) < windowSize {
		return types.EnergyEnvelope{}
	}

	numWindows := len(samples) / windowSize
	rms := make([]float64, numWindows)
	for i := range numWindows {
		rms[i] = windowRMS(samples[i*windowSize : (i+1)*windowSize])
	}

	smoothed := movingAverage(rms, smoothingRadius)

	// 静音输入保持全零
	if peak := floats.Max(smoothed); peak > 0 {
		for i := range smoothed {
			smoothed[i] /= peak
		}
	}

	return types.EnergyEnvelope(smoothed)
}

// movingAverage 居中滑动平均，边缘处只对可用样本取平均
func movingAverage(values []float64, radius int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		lo := max(0, i-radius)
		hi := min(len(values), i+radius+1)
		out[i] = floats.Sum(values[lo:hi]) / float64(hi-lo)
	}
	return out
}

// AverageEnergy 计算 [t0, t1) 时间范围内的平均能量
func AverageEnergy(env types.EnergyEnvelope, t0, t1 float64) float64 {
	if t1 <= t0 {
		return 0
	}

	start := max(0, int(math.Floor(t0*EnvelopeRate)))
	end := min(int(math.Ceil(t1*EnvelopeRate)), len(env))
	if start >= end {
		return 0
	}

	return floats.Sum(env[start:end]) / float64(end-start)
}

// DetectChanges 检测能量突变点
//
// 对每个内部索引比较前1秒与后1秒的平均能量，|delta| >= threshold 时产出事件，
// 距上一个事件不足1秒的候选会被丢弃。返回的序列可以重复遍历。
func DetectChanges(env types.EnergyEnvelope, threshold float64) iter.Seq[types.EnergyChange] {
	return func(yield func(types.EnergyChange) bool) {
		last := -changeWindow

		for i := changeWindow; i+changeWindow <= len(env); i++ {
			before := floats.Sum(env[i-changeWindow:i]) / changeWindow
			after := floats.Sum(env[i:i+changeWindow]) / changeWindow
			delta := after - before

			if math.Abs(delta) < threshold {
				continue
			}

			if i-last < changeWindow {
				continue
			}

			last = i
			if !yield(types.EnergyChange{Time: float64(i) / EnvelopeRate, Delta: delta}) {
				return
			}
		}
	}
}

// windowRMS 计算一段采样的均方根
func windowRMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(samples, samples) / float64(len(samples)))
}
