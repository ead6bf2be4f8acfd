package analyzer

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// 以节拍为中心 ±1024 个采样
	beatHalfWindow = 1024
	beatsPerBar    = 4
)

// DefaultDownbeatStdFactor 重拍阈值中标准差的系数
const DefaultDownbeatStdFactor = 0.3

// BeatStrengths 计算每个节拍附近的 RMS 强度并按最大值归一化
func BeatStrengths(samples []float64, sampleRate int, beatTimes []float64) []float64 {
	strengths := make([]float64, len(beatTimes))
	if len(samples) == 0 {
		return strengths
	}

	for i, t := range beatTimes {
		center := int(math.Round(t * float64(sampleRate)))
		lo := max(0, center-beatHalfWindow)
		hi := min(len(samples), center+beatHalfWindow)
		if lo >= hi {
			continue
		}
		strengths[i] = windowRMS(samples[lo:hi])
	}

	if len(strengths) > 0 {
		if peak := floats.Max(strengths); peak > 0 {
			for i := range strengths {
				strengths[i] /= peak
			}
		}
	}

	return strengths
}

// Downbeats 推断重拍
//
// 强度超过 均值 + stdFactor·总体标准差 的节拍，或索引是4的倍数的节拍，都视为重拍。
// 噪声较大时可能多于四分之一的节拍被标记。
func Downbeats(beatTimes, strengths []float64, stdFactor float64) ([]int, []float64) {
	indices := []int{}
	times := []float64{}

	n := min(len(beatTimes), len(strengths))
	if n == 0 {
		return indices, times
	}

	mean, std := stat.PopMeanStdDev(strengths[:n], nil)
	threshold := mean + stdFactor*std

	for i := range n {
		if strengths[i] > threshold || i%beatsPerBar == 0 {
			indices = append(indices, i)
			times = append(times, beatTimes[i])
		}
	}

	return indices, times
}
