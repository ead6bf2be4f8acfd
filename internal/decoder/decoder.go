package decoder

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"track-structure-analyzer/internal/types"
)

// AudioDecoder 音频解码器接口
type AudioDecoder interface {
	Decode(filePath string) (types.AudioFile, error)
	SupportedFormats() []string
}

// DecoderRegistry 按扩展名查找解码器
type DecoderRegistry struct {
	decoders map[string]AudioDecoder
}

// NewDecoderRegistry 创建注册了 WAV 和 FLAC 解码器的注册表
func NewDecoderRegistry() *DecoderRegistry {
	registry := &DecoderRegistry{
		decoders: make(map[string]AudioDecoder),
	}

	registry.Register(&WAVDecoder{})
	registry.Register(&FLACDecoder{})

	return registry
}

// Register 注册解码器，同名格式后注册的覆盖先注册的
func (r *DecoderRegistry) Register(decoder AudioDecoder) {
	for _, format := range decoder.SupportedFormats() {
		r.decoders[strings.ToLower(format)] = decoder
	}
}

// Supports 判断文件扩展名是否有对应的解码器
func (r *DecoderRegistry) Supports(filePath string) bool {
	_, err := r.GetDecoder(filePath)
	return err == nil
}

// Formats 返回已注册的格式，按字母排序
func (r *DecoderRegistry) Formats() []string {
	formats := make([]string, 0, len(r.decoders))
	for format := range r.decoders {
		formats = append(formats, format)
	}
	slices.Sort(formats)
	return formats
}

// GetDecoder 根据文件扩展名获取解码器
func (r *DecoderRegistry) GetDecoder(filePath string) (AudioDecoder, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	if ext == "" {
		return nil, fmt.Errorf("无法确定文件格式: %s", filePath)
	}

	decoder, exists := r.decoders[ext[1:]]
	if !exists {
		return nil, fmt.Errorf("不支持的音频格式: %s", ext[1:])
	}

	return decoder, nil
}

// DecodeFile 解码音频文件
func (r *DecoderRegistry) DecodeFile(filePath string) (types.AudioFile, error) {
	decoder, err := r.GetDecoder(filePath)
	if err != nil {
		return nil, err
	}

	return decoder.Decode(filePath)
}

// ReadWaveform 解码文件并返回单声道波形
func (r *DecoderRegistry) ReadWaveform(filePath string) (types.Waveform, types.AudioFile, error) {
	audioFile, err := r.DecodeFile(filePath)
	if err != nil {
		return types.Waveform{}, nil, err
	}

	samples, err := audioFile.GetSamples()
	if err != nil {
		audioFile.Close()
		return types.Waveform{}, nil, err
	}

	return types.Waveform{Samples: samples, SampleRate: audioFile.GetSampleRate()}, audioFile, nil
}
