package decoder

import (
	"fmt"
	"os"
	"time"

	"track-structure-analyzer/internal/types"

	"github.com/go-audio/wav"
)

// WAVDecoder WAV格式解码器
type WAVDecoder struct{}

// WAVFile 已打开的WAV文件
type WAVFile struct {
	decoder    *wav.Decoder
	file       *os.File
	sampleRate int
	bitDepth   int
	channels   int
	duration   time.Duration
	samples    []float64
}

// SupportedFormats 返回支持的格式
func (d *WAVDecoder) SupportedFormats() []string {
	return []string{"wav", "wave"}
}

// Decode 打开WAV文件并读取头信息，采样数据在 GetSamples 时才解码
func (d *WAVDecoder) Decode(filePath string) (types.AudioFile, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("打开WAV文件失败: %w", err)
	}

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		file.Close()
		return nil, fmt.Errorf("无效的WAV文件: %s", filePath)
	}

	sampleRate := int(decoder.SampleRate)
	channels := int(decoder.NumChans)
	bitDepth := int(decoder.BitDepth)
	if sampleRate <= 0 || channels <= 0 {
		file.Close()
		return nil, fmt.Errorf("WAV头信息不完整: %s", filePath)
	}

	if err := decoder.FwdToPCM(); err != nil {
		file.Close()
		return nil, fmt.Errorf("定位WAV数据块失败: %w", err)
	}

	// PCMLen 是所有声道的采样总数
	frames := decoder.PCMLen() / int64(channels)
	duration := time.Duration(float64(frames) / float64(sampleRate) * float64(time.Second))

	return &WAVFile{
		decoder:    decoder,
		file:       file,
		sampleRate: sampleRate,
		bitDepth:   bitDepth,
		channels:   channels,
		duration:   duration,
	}, nil
}

// GetFormat 获取格式名称
func (w *WAVFile) GetFormat() string {
	return "WAV"
}

// GetSampleRate 获取采样率
func (w *WAVFile) GetSampleRate() int {
	return w.sampleRate
}

// GetBitDepth 获取位深度
func (w *WAVFile) GetBitDepth() int {
	return w.bitDepth
}

// GetChannels 获取声道数
func (w *WAVFile) GetChannels() int {
	return w.channels
}

// GetDuration 获取时长
func (w *WAVFile) GetDuration() time.Duration {
	return w.duration
}

// GetSamples 解码全部PCM数据并下混为单声道
func (w *WAVFile) GetSamples() ([]float64, error) {
	if w.samples != nil {
		return w.samples, nil
	}

	buf, err := w.decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("读取WAV采样失败: %w", err)
	}

	w.samples = downmixInterleaved(buf.Data, w.channels, w.bitDepth)
	return w.samples, nil
}

// GetMetadata WAV 只提供时长
func (w *WAVFile) GetMetadata() types.AudioMetadata {
	return types.AudioMetadata{
		Duration: w.duration.String(),
	}
}

// Close 关闭文件
func (w *WAVFile) Close() error {
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}
