package analyzer

import (
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/window"
)

// SpectrumAnalyzer 频谱分析器
//
// 窗口系数在创建时计算一次；内部缓冲区会被复用，因此单个实例不能并发使用。
type SpectrumAnalyzer struct {
	windowSize int
	window     []float64
	re         []float64
	im         []float64
}

// NewSpectrumAnalyzer 创建频谱分析器，windowSize 必须是2的幂
func NewSpectrumAnalyzer(windowSize int) *SpectrumAnalyzer {
	if !isPowerOf2(windowSize) {
		panic(fmt.Sprintf("analyzer: FFT 窗口长度必须是2的幂, 实际为 %d", windowSize))
	}

	// 汉明窗函数: w(n) = 0.54 - 0.46 * cos(2π * n / (N-1))
	var coeffs []float64
	if windowSize > 1 {
		coeffs = window.Hamming(windowSize)
	} else {
		coeffs = []float64{1}
	}

	return &SpectrumAnalyzer{
		windowSize: windowSize,
		window:     coeffs,
		re:         make([]float64, windowSize),
		im:         make([]float64, windowSize),
	}
}

// WindowSize 返回窗口长度
func (s *SpectrumAnalyzer) WindowSize() int {
	return s.windowSize
}

// Magnitudes 对一帧加窗并计算幅度谱，返回长度为 N/2 的结果
func (s *SpectrumAnalyzer) Magnitudes(frame []float64) []float64 {
	if len(frame) != s.windowSize {
		panic(fmt.Sprintf("analyzer: 帧长度 %d 与窗口长度 %d 不一致", len(frame), s.windowSize))
	}

	for i, sample := range frame {
		s.re[i] = sample * s.window[i]
		s.im[i] = 0
	}

	fftInPlace(s.re, s.im)

	// 只需要一半，因为实信号的FFT是对称的
	magnitudes := make([]float64, s.windowSize/2)
	for i := range magnitudes {
		magnitudes[i] = math.Sqrt(s.re[i]*s.re[i] + s.im[i]*s.im[i])
	}

	return magnitudes
}

// Spectrum 计算单帧的幅度谱
func Spectrum(frame []float64) []float64 {
	return NewSpectrumAnalyzer(len(frame)).Magnitudes(frame)
}

// BinFrequency 频点对应的频率 (Hz)
func BinFrequency(bin, sampleRate, spectrumLength int) float64 {
	return float64(bin) * float64(sampleRate) / float64(2*spectrumLength)
}

// fftInPlace 迭代式 Cooley-Tukey 基2 FFT
func fftInPlace(re, im []float64) {
	n := len(re)

	// 位反转置换
	j := 0
	for i := 1; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
	}

	// log2(N) 轮蝶形运算
	for size := 2; size <= n; size <<= 1 {
		half := size >> 1
		for k := 0; k < half; k++ {
			angle := -2 * math.Pi * float64(k) / float64(size)
			wr, wi := math.Cos(angle), math.Sin(angle)

			for start := 0; start < n; start += size {
				a := start + k
				b := a + half

				tr := wr*re[b] - wi*im[b]
				ti := wr*im[b] + wi*re[b]

				re[b] = re[a] - tr
				im[b] = im[a] - ti
				re[a] += tr
				im[a] += ti
			}
		}
	}
}

func isPowerOf2(n int) bool {
	return n > 0 && n&(n-1) == 0
}
