package beatgrid

import (
	"track-structure-analyzer/internal/types"
)

const (
	// DefaultTempo 节拍不足时使用的速度
	DefaultTempo = 120.0
	beatsPerBar  = 4
)

// New 根据节拍时间推导小节与速度
//
// 只有完整的4拍组才产生小节，小节时间是组内第一拍。节拍需已按时间排序。
func New(beats []float64) types.BeatGrid {
	grid := types.BeatGrid{
		Beats: beats,
		Bars:  []float64{},
		Tempo: DefaultTempo,
	}
	if grid.Beats == nil {
		grid.Beats = []float64{}
	}

	for i := 0; i+beatsPerBar-1 < len(beats); i += beatsPerBar {
		grid.Bars = append(grid.Bars, beats[i])
	}

	if len(beats) >= 2 {
		interval := (beats[len(beats)-1] - beats[0]) / float64(len(beats)-1)
		if interval > 0 {
			grid.Tempo = 60 / interval
		}
	}

	return grid
}
