package analyzer

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpectrum_SinePeak(t *testing.T) {
	const n = 2048

	for _, bin := range []int{3, 64, 100, 511, 900} {
		frame := make([]float64, n)
		for i := range frame {
			frame[i] = math.Sin(2 * math.Pi * float64(bin) * float64(i) / n)
		}

		mags := Spectrum(frame)
		require.Len(t, mags, n/2)

		peak := 0
		for i, m := range mags {
			if m > mags[peak] {
				peak = i
			}
		}
		assert.InDelta(t, bin, peak, 1, "sine at bin %d", bin)
	}
}

func TestSpectrum_Silence(t *testing.T) {
	mags := Spectrum(make([]float64, 2048))
	require.Len(t, mags, 1024)
	for _, m := range mags {
		assert.Equal(t, 0.0, m)
	}
}

func TestSpectrum_MatchesReferenceFFT(t *testing.T) {
	const n = 512
	frame := make([]float64, n)
	for i := range frame {
		x := float64(i)
		frame[i] = 0.6*math.Sin(2*math.Pi*17*x/n) + 0.3*math.Cos(2*math.Pi*91*x/n) + 0.1*math.Sin(0.37*x)
	}

	windowed := append([]float64(nil), frame...)
	window.Apply(windowed, window.Hamming)
	reference := fft.FFTReal(windowed)

	mags := Spectrum(frame)
	for i, m := range mags {
		assert.InDelta(t, cmplx.Abs(reference[i]), m, 1e-9, "bin %d", i)
	}
}

func TestSpectrum_NonPowerOfTwoPanics(t *testing.T) {
	assert.Panics(t, func() { Spectrum(make([]float64, 1000)) })
	assert.Panics(t, func() { NewSpectrumAnalyzer(0) })
}

func TestSpectrumAnalyzer_FrameLengthMismatchPanics(t *testing.T) {
	s := NewSpectrumAnalyzer(1024)
	assert.Panics(t, func() { s.Magnitudes(make([]float64, 512)) })
}

func TestSpectrumAnalyzer_ReusesBuffersWithoutLeaking(t *testing.T) {
	s := NewSpectrumAnalyzer(256)
	loud := make([]float64, 256)
	for i := range loud {
		loud[i] = math.Sin(2 * math.Pi * 8 * float64(i) / 256)
	}

	require.NotZero(t, s.Magnitudes(loud)[8])
	for _, m := range s.Magnitudes(make([]float64, 256)) {
		assert.Equal(t, 0.0, m)
	}
}

func TestBinFrequency(t *testing.T) {
	assert.Equal(t, 0.0, BinFrequency(0, 44100, 1024))
	assert.InDelta(t, 21.533, BinFrequency(1, 44100, 1024), 1e-3)
	assert.Equal(t, 22050.0, BinFrequency(1024, 44100, 1024))
}
