package analyzer

import (
	"math"
	"slices"
	"testing"

	"track-structure-analyzer/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_SilentInput(t *testing.T) {
	env := Envelope(make([]float64, 5*44100), 44100)

	require.Len(t, env, 50)
	for _, v := range env {
		assert.Equal(t, 0.0, v)
	}
}

func TestEnvelope_NormalizedRange(t *testing.T) {
	const sampleRate = 8000
	samples := make([]float64, 3*sampleRate)
	for i := range samples {
		// 振幅线性增长的正弦
		amp := float64(i) / float64(len(samples))
		samples[i] = amp * math.Sin(2*math.Pi*440*float64(i)/sampleRate)
	}

	env := Envelope(samples, sampleRate)
	require.Len(t, env, 30)

	peak := 0.0
	for _, v := range env {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
		peak = max(peak, v)
	}
	assert.Equal(t, 1.0, peak)
	assert.Less(t, env[0], env[len(env)-1])
}

func TestEnvelope_DropsPartialWindowAndShortInput(t *testing.T) {
	assert.Len(t, Envelope(make([]float64, 4410*3+100), 44100), 3)
	assert.Empty(t, Envelope(make([]float64, 100), 44100))
	assert.Empty(t, Envelope(make([]float64, 100), 5))
}

func TestMovingAverage_TruncatedEdges(t *testing.T) {
	got := movingAverage([]float64{0, 0, 10, 0, 0, 0}, 2)
	assert.InDeltaSlice(t, []float64{10.0 / 3, 2.5, 2, 2, 2.5, 0}, got, 1e-12)
}

func TestAverageEnergy(t *testing.T) {
	env := types.EnergyEnvelope{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}

	t.Run("empty range is zero", func(t *testing.T) {
		for _, at := range []float64{0, 0.15, 0.3, 0.55, 0.99, 5} {
			assert.Equal(t, 0.0, AverageEnergy(env, at, at))
		}
		assert.Equal(t, 0.0, AverageEnergy(env, 0.6, 0.2))
	})

	t.Run("whole envelope", func(t *testing.T) {
		assert.InDelta(t, 0.55, AverageEnergy(env, 0, 1), 1e-12)
	})

	t.Run("partial range rounds outward", func(t *testing.T) {
		// floor(2.5)..ceil(4.1) => indices 2..4
		assert.InDelta(t, 0.4, AverageEnergy(env, 0.25, 0.41), 1e-12)
	})

	t.Run("clamped past the end", func(t *testing.T) {
		assert.InDelta(t, 0.95, AverageEnergy(env, 0.8, 30), 1e-12)
		assert.Equal(t, 0.0, AverageEnergy(env, 2, 3))
	})
}

func stepEnvelope(low, high float64, lowLen, highLen int) types.EnergyEnvelope {
	env := make(types.EnergyEnvelope, 0, lowLen+highLen)
	for range lowLen {
		env = append(env, low)
	}
	for range highLen {
		env = append(env, high)
	}
	return env
}

func TestDetectChanges_Step(t *testing.T) {
	env := stepEnvelope(0.2, 1.0, 50, 50)

	changes := slices.Collect(DetectChanges(env, DefaultChangeThreshold))
	require.Len(t, changes, 2)
	assert.InDelta(t, 4.3, changes[0].Time, 1e-9)
	assert.InDelta(t, 0.24, changes[0].Delta, 1e-9)
	assert.InDelta(t, 5.3, changes[1].Time, 1e-9)
	assert.InDelta(t, 0.56, changes[1].Delta, 1e-9)
}

func TestDetectChanges_FallingEdge(t *testing.T) {
	env := stepEnvelope(1.0, 0.0, 40, 40)

	for change := range DetectChanges(env, 0.5) {
		assert.Less(t, change.Delta, 0.0)
	}
}

func TestDetectChanges_Restartable(t *testing.T) {
	env := stepEnvelope(0.1, 0.9, 30, 30)
	seq := DetectChanges(env, 0.15)

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	require.NotEmpty(t, first)
	assert.Equal(t, first, second)

	for i := 1; i < len(first); i++ {
		assert.GreaterOrEqual(t, first[i].Time-first[i-1].Time, 1.0-1e-9)
	}
}

func TestDetectChanges_EarlyStop(t *testing.T) {
	env := stepEnvelope(0.2, 1.0, 50, 50)

	count := 0
	for range DetectChanges(env, DefaultChangeThreshold) {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestDetectChanges_FlatOrShort(t *testing.T) {
	assert.Empty(t, slices.Collect(DetectChanges(stepEnvelope(0.5, 0.5, 30, 30), 0.01)))
	assert.Empty(t, slices.Collect(DetectChanges(types.EnergyEnvelope{0, 1, 0}, 0.01)))
}
