package analyzer

import (
	"math"
	"sort"

	"track-structure-analyzer/internal/types"
)

const (
	// 开头/结尾多少秒内可能是前奏/尾奏
	edgeSeconds = 15.0

	highEnergy    = 0.7
	midEnergy     = 0.4
	dropRise      = 0.25
	breakdownFall = -0.2

	// 小节已排序，超过变化点 2 秒即可停止查找
	snapLookahead = 2.0

	fallbackPhraseBars = 8
	phraseBars         = 4

	unknownSectionEnergy = 0.5
)

// SectionAnalyzer 段落分析器
type SectionAnalyzer struct {
	tuning types.Tuning
}

// NewSectionAnalyzer 创建段落分析器
func NewSectionAnalyzer(tuning types.Tuning) *SectionAnalyzer {
	return &SectionAnalyzer{tuning: tuning}
}

// AnalyzeSections 使用默认参数划分并分类段落
func AnalyzeSections(env types.EnergyEnvelope, barTimes []float64, duration float64) []types.MusicSection {
	return NewSectionAnalyzer(types.DefaultTuning()).Analyze(env, barTimes, duration)
}

// DetectPhraseBoundaries 使用默认参数推断乐句边界
func DetectPhraseBoundaries(barTimes []float64, sections []types.MusicSection) []float64 {
	return NewSectionAnalyzer(types.DefaultTuning()).PhraseBoundaries(barTimes, sections)
}

// Analyze 根据能量变化和小节对齐划分段落，然后分类并合并相邻的同类段落
func (a *SectionAnalyzer) Analyze(env types.EnergyEnvelope, barTimes []float64, duration float64) []types.MusicSection {
	if len(env) == 0 {
		return []types.MusicSection{{
			StartTime: 0,
			EndTime:   duration,
			Type:      types.SectionUnknown,
			Energy:    unknownSectionEnergy,
		}}
	}

	bounds := a.boundaries(env, barTimes, duration)
	wholeTrack := len(bounds) == 2

	sections := make([]types.MusicSection, 0, len(bounds)-1)
	prevEnergy := 0.0
	for i := 0; i+1 < len(bounds); i++ {
		start, end := bounds[i], bounds[i+1]
		energy := AverageEnergy(env, start, end)
		if i == 0 {
			prevEnergy = energy
		}

		sections = append(sections, types.MusicSection{
			StartTime: start,
			EndTime:   end,
			Type:      classifySection(start, end, energy, energy-prevEnergy, duration, wholeTrack),
			Energy:    energy,
		})
		prevEnergy = energy
	}

	return mergeSections(sections)
}

// boundaries 构建段落边界，首尾分别为 0 和 duration
func (a *SectionAnalyzer) boundaries(env types.EnergyEnvelope, barTimes []float64, duration float64) []float64 {
	minLength := a.tuning.MinSectionLength
	bounds := []float64{0}

	for change := range DetectChanges(env, a.tuning.SectionChangeThreshold) {
		at := snapToBar(change.Time, barTimes)
		// 吸附到曲目结束之后的小节会破坏边界的单调性
		if at >= duration {
			continue
		}
		if at-bounds[len(bounds)-1] >= minLength {
			bounds = append(bounds, at)
		}
	}

	switch last := len(bounds) - 1; {
	case last == 0:
		bounds = append(bounds, duration)
	case duration-bounds[last] >= minLength:
		bounds = append(bounds, duration)
	default:
		// 过短的尾段并入前一段
		bounds[last] = duration
	}

	// 没有检测到任何变化时，每8小节插入一个边界作为粗略的乐句划分
	if len(bounds) == 2 && len(barTimes) > 0 {
		for i := fallbackPhraseBars; i < len(barTimes); i += fallbackPhraseBars {
			if bar := barTimes[i]; bar > 0 && bar < duration {
				bounds = append(bounds, bar)
			}
		}
		sort.Float64s(bounds)
	}

	return bounds
}

// snapToBar 返回离 t 最近的小节时间；没有小节数据时返回 t 本身
func snapToBar(t float64, barTimes []float64) float64 {
	best := t
	bestDist := math.Inf(1)

	for _, bar := range barTimes {
		if bar-t > snapLookahead {
			break
		}
		if dist := math.Abs(bar - t); dist < bestDist {
			best, bestDist = bar, dist
		}
	}

	return best
}

// classifySection 按顺序匹配规则，第一条命中的规则生效
//
// 只有一个段落时它同时覆盖开头和结尾，不参与前奏/尾奏判断。
func classifySection(start, end, energy, energyChange, duration float64, wholeTrack bool) types.SectionType {
	switch {
	case !wholeTrack && start < edgeSeconds && energy < highEnergy:
		return types.SectionIntro
	case !wholeTrack && end > duration-edgeSeconds && energy < highEnergy:
		return types.SectionOutro
	case energy >= highEnergy:
		if energyChange > dropRise {
			return types.SectionDrop
		}
		return types.SectionChorus
	case energy >= midEnergy:
		return types.SectionVerse
	case energyChange < breakdownFall:
		return types.SectionBreakdown
	default:
		return types.SectionUnknown
	}
}

// mergeSections 合并相邻的同类段落
//
// 能量取两项滑动平均 (last+next)/2，越靠后的段落权重越大，并非按时长加权的均值。
func mergeSections(sections []types.MusicSection) []types.MusicSection {
	if len(sections) == 0 {
		return sections
	}

	merged := []types.MusicSection{sections[0]}
	for _, section := range sections[1:] {
		last := &merged[len(merged)-1]
		if last.Type == section.Type {
			last.EndTime = section.EndTime
			last.Energy = (last.Energy + section.Energy) / 2
			continue
		}
		merged = append(merged, section)
	}

	return merged
}

// PhraseBoundaries 以段落起点为种子，再每4小节补充一个边界
func (a *SectionAnalyzer) PhraseBoundaries(barTimes []float64, sections []types.MusicSection) []float64 {
	bounds := make([]float64, 0, len(sections)+len(barTimes)/phraseBars+1)

	for _, section := range sections {
		if !containsTime(bounds, section.StartTime, 0) {
			bounds = append(bounds, section.StartTime)
		}
	}

	for i := 0; i < len(barTimes); i += phraseBars {
		if !containsTime(bounds, barTimes[i], a.tuning.PhraseMinSpacing) {
			bounds = append(bounds, barTimes[i])
		}
	}

	sort.Float64s(bounds)
	return bounds
}

// containsTime 判断 times 中是否有与 t 距离小于 tolerance 的元素（tolerance 为 0 时要求相等）
func containsTime(times []float64, t, tolerance float64) bool {
	for _, existing := range times {
		dist := math.Abs(existing - t)
		if dist == 0 || dist < tolerance {
			return true
		}
	}
	return false
}
