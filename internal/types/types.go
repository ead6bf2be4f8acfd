package types

import "time"

// AnalyzerConfig 批量分析配置
type AnalyzerConfig struct {
	Concurrency int    // 并发数
	Quiet       bool   // 静默模式
	JSONOutput  bool   // JSON输出格式
	BeatsPath   string // 节拍文件路径（单文件模式）
	UseAubio    bool   // 使用 aubio 进行节拍跟踪
	AubioBin    string // aubio 可执行文件
}

// BandConfig 鼓点频段配置
type BandConfig struct {
	LowHz      float64 `validate:"gte=0"`
	HighHz     float64 `validate:"gtfield=LowHz"`
	Threshold  float64 `validate:"gt=1"`   // 相对局部均值的倍数
	MinSpacing float64 `validate:"gte=0"` // 同一频段两次命中的最小间隔（秒）
}

// Tuning 分析流水线参数
type Tuning struct {
	FrameSize int `validate:"pow2"`
	HopSize   int `validate:"gt=0,ltefield=FrameSize"`

	Kick  BandConfig
	Snare BandConfig
	HiHat BandConfig

	SectionChangeThreshold float64 `validate:"gt=0,lte=1"`
	MinSectionLength       float64 `validate:"gte=0"`
	PhraseMinSpacing       float64 `validate:"gte=0"`
	DownbeatStdFactor      float64 `validate:"gte=0"`
}

// DefaultTuning 返回默认参数
func DefaultTuning() Tuning {
	return Tuning{
		FrameSize: 2048,
		HopSize:   512,
		// 军鼓频段更繁忙，阈值更高
		Kick:                   BandConfig{LowHz: 20, HighHz: 200, Threshold: 1.8, MinSpacing: 0.15},
		Snare:                  BandConfig{LowHz: 200, HighHz: 2000, Threshold: 2.0, MinSpacing: 0.12},
		HiHat:                  BandConfig{LowHz: 5000, HighHz: 15000, Threshold: 1.6, MinSpacing: 0.05},
		SectionChangeThreshold: 0.15,
		MinSectionLength:       4.0,
		PhraseMinSpacing:       2.0,
		DownbeatStdFactor:      0.3,
	}
}

// Waveform 单声道PCM波形
type Waveform struct {
	Samples    []float64
	SampleRate int
}

// Duration 返回时长（秒）
func (w Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// BeatGrid 外部节拍跟踪结果
type BeatGrid struct {
	Beats []float64 `json:"beatTimes"`
	Bars  []float64 `json:"barTimes"`
	Tempo float64   `json:"tempo"`
}

// EnergyEnvelope 10Hz 归一化能量包络
type EnergyEnvelope []float64

// EnergyChange 能量突变事件
type EnergyChange struct {
	Time  float64 `json:"time"`
	Delta float64 `json:"delta"`
}

// DrumPattern 鼓点检测结果
type DrumPattern struct {
	Kicks         []float64 `json:"kicks"`
	Snares        []float64 `json:"snares"`
	HiHats        []float64 `json:"hihats"`
	PatternLength float64   `json:"patternLength"`
}

// MusicSection 音乐段落
type MusicSection struct {
	StartTime float64     `json:"startTime"`
	EndTime   float64     `json:"endTime"`
	Type      SectionType `json:"type"`
	Energy    float64     `json:"energy"`
}

// AnalysisResult 结构分析结果
type AnalysisResult struct {
	RunID            string         `json:"runId"`
	Duration         float64        `json:"duration"`
	SampleRate       int            `json:"sampleRate"`
	Tempo            float64        `json:"tempo"`
	BeatTimes        []float64      `json:"beatTimes"`
	BarTimes         []float64      `json:"barTimes"`
	BeatStrengths    []float64      `json:"beatStrengths"`
	DownbeatIndices  []int          `json:"downbeatIndices"`
	DownbeatTimes    []float64      `json:"downbeatTimes"`
	Energy           EnergyEnvelope `json:"energy"`
	Sections         []MusicSection `json:"sections"`
	Drums            DrumPattern    `json:"drums"`
	PhraseBoundaries []float64      `json:"phraseBoundaries"`
}

// AudioMetadata 音频元数据
type AudioMetadata struct {
	Title    string `json:"title,omitempty"`
	Artist   string `json:"artist,omitempty"`
	Album    string `json:"album,omitempty"`
	Year     string `json:"year,omitempty"`
	Genre    string `json:"genre,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// TrackReport 单个文件的分析报告
type TrackReport struct {
	FilePath  string          `json:"filePath"`
	Format    string          `json:"format"`
	Metadata  AudioMetadata   `json:"metadata"`
	Status    string          `json:"status"` // "OK", "ERROR"
	Structure *AnalysisResult `json:"structure,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// AudioFile 音频文件接口
type AudioFile interface {
	GetFormat() string
	GetSampleRate() int
	GetBitDepth() int
	GetChannels() int
	GetDuration() time.Duration
	// GetSamples 返回下混为单声道的采样数据
	GetSamples() ([]float64, error)
	GetMetadata() AudioMetadata
	Close() error
}
