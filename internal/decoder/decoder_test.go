package decoder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeWAV 用 go-audio 编码器写一个16位 PCM 文件
func writeWAV(t *testing.T, path string, sampleRate, channels int, data []int) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
}

func TestWAVDecoder_StereoDownmix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	// 左右声道: (16384, 0) (-16384, -16384) (8192, 24576)
	writeWAV(t, path, 8000, 2, []int{16384, 0, -16384, -16384, 8192, 24576})

	registry := NewDecoderRegistry()
	wave, audioFile, err := registry.ReadWaveform(path)
	require.NoError(t, err)
	defer audioFile.Close()

	assert.Equal(t, "WAV", audioFile.GetFormat())
	assert.Equal(t, 2, audioFile.GetChannels())
	assert.Equal(t, 16, audioFile.GetBitDepth())
	assert.Equal(t, 8000, wave.SampleRate)
	require.Len(t, wave.Samples, 3)
	assert.InDelta(t, 0.25, wave.Samples[0], 1e-12)
	assert.InDelta(t, -0.5, wave.Samples[1], 1e-12)
	assert.InDelta(t, 0.5, wave.Samples[2], 1e-12)
}

func TestWAVDecoder_MonoIsCached(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.wav")
	writeWAV(t, path, 44100, 1, []int{0, 16384, -32768})

	audioFile, err := (&WAVDecoder{}).Decode(path)
	require.NoError(t, err)
	defer audioFile.Close()

	first, err := audioFile.GetSamples()
	require.NoError(t, err)
	second, err := audioFile.GetSamples()
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 0.5, -1}, first)
	assert.Equal(t, first, second)
	assert.NotEmpty(t, audioFile.GetMetadata().Duration)
}

func TestWAVDecoder_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a riff file"), 0o644))

	_, err := NewDecoderRegistry().DecodeFile(path)
	assert.Error(t, err)

	_, err = NewDecoderRegistry().DecodeFile(filepath.Join(t.TempDir(), "missing.wav"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFLACDecoder_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.flac")
	require.NoError(t, os.WriteFile(path, []byte("fLaX but not really"), 0o644))

	_, err := NewDecoderRegistry().DecodeFile(path)
	assert.Error(t, err)
}

func TestDecoderRegistry_Lookup(t *testing.T) {
	registry := NewDecoderRegistry()

	assert.True(t, registry.Supports("a/b/Song.WAV"))
	assert.True(t, registry.Supports("song.flac"))
	assert.True(t, registry.Supports("take.wave"))
	assert.False(t, registry.Supports("song.mp3"))
	assert.False(t, registry.Supports("README"))
	assert.Equal(t, []string{"flac", "wav", "wave"}, registry.Formats())

	_, err := registry.GetDecoder("noext")
	assert.ErrorContains(t, err, "无法确定文件格式")
	_, err = registry.GetDecoder("x.ogg")
	assert.ErrorContains(t, err, "不支持的音频格式: ogg")
}

func TestDownmix(t *testing.T) {
	assert.Equal(t, []float64{0.5, -0.5}, downmixInterleaved([]int{32768, 0, -16384, -16384, 99}, 2, 16))
	assert.Equal(t, []float64{1}, downmixInterleaved([]int{128}, 0, 8))

	got := appendDownmixPlanar([]float64{9}, [][]int32{{16384, 0}, {16384, -32768, 7}}, 16)
	assert.Equal(t, []float64{9, 0.5, -0.5}, got)
	assert.Equal(t, []float64{1}, appendDownmixPlanar([]float64{1}, nil, 16))
}
