package decoder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"track-structure-analyzer/internal/types"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/meta"
)

// FLACDecoder FLAC格式解码器
type FLACDecoder struct{}

// FLACFile 已打开的FLAC文件
type FLACFile struct {
	stream     *flac.Stream
	file       *os.File
	sampleRate int
	bitDepth   int
	channels   int
	duration   time.Duration
	samples    []float64
	metadata   types.AudioMetadata
}

// SupportedFormats 返回支持的格式
func (d *FLACDecoder) SupportedFormats() []string {
	return []string{"flac"}
}

// Decode 打开FLAC文件并解析元数据块
func (d *FLACDecoder) Decode(filePath string) (types.AudioFile, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("打开FLAC文件失败: %w", err)
	}

	stream, err := flac.New(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("解析FLAC文件失败: %w", err)
	}

	info := stream.Info
	if info == nil || info.SampleRate == 0 {
		file.Close()
		return nil, fmt.Errorf("无法读取FLAC信息: %s", filePath)
	}

	duration := time.Duration(float64(info.NSamples) / float64(info.SampleRate) * float64(time.Second))

	flacFile := &FLACFile{
		stream:     stream,
		file:       file,
		sampleRate: int(info.SampleRate),
		bitDepth:   int(info.BitsPerSample),
		channels:   int(info.NChannels),
		duration:   duration,
		metadata:   types.AudioMetadata{Duration: duration.String()},
	}
	flacFile.parseMetadata()

	return flacFile, nil
}

// parseMetadata 读取 Vorbis 注释中的标签
func (f *FLACFile) parseMetadata() {
	for _, block := range f.stream.Blocks {
		comment, ok := block.Body.(*meta.VorbisComment)
		if !ok {
			continue
		}
		f.metadata.Title = vorbisTag(comment, "TITLE")
		f.metadata.Artist = vorbisTag(comment, "ARTIST")
		f.metadata.Album = vorbisTag(comment, "ALBUM")
		f.metadata.Year = vorbisTag(comment, "DATE")
		f.metadata.Genre = vorbisTag(comment, "GENRE")
	}
}

// vorbisTag 标签名不区分大小写
func vorbisTag(comment *meta.VorbisComment, tag string) string {
	for _, field := range comment.Tags {
		if strings.EqualFold(field[0], tag) {
			return field[1]
		}
	}
	return ""
}

// GetFormat 获取格式名称
func (f *FLACFile) GetFormat() string {
	return "FLAC"
}

// GetSampleRate 获取采样率
func (f *FLACFile) GetSampleRate() int {
	return f.sampleRate
}

// GetBitDepth 获取位深度
func (f *FLACFile) GetBitDepth() int {
	return f.bitDepth
}

// GetChannels 获取声道数
func (f *FLACFile) GetChannels() int {
	return f.channels
}

// GetDuration 获取时长
func (f *FLACFile) GetDuration() time.Duration {
	return f.duration
}

// GetSamples 逐帧解码并下混为单声道
func (f *FLACFile) GetSamples() ([]float64, error) {
	if f.samples != nil {
		return f.samples, nil
	}

	samples := make([]float64, 0, f.stream.Info.NSamples)
	planes := make([][]int32, 0, f.channels)
	for {
		frame, err := f.stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("解码FLAC帧失败: %w", err)
		}

		planes = planes[:0]
		for _, subframe := range frame.Subframes {
			planes = append(planes, subframe.Samples)
		}
		samples = appendDownmixPlanar(samples, planes, f.bitDepth)
	}

	f.samples = samples
	return samples, nil
}

// GetMetadata 获取元数据
func (f *FLACFile) GetMetadata() types.AudioMetadata {
	return f.metadata
}

// Close 关闭文件
func (f *FLACFile) Close() error {
	if f.file != nil {
		return f.file.Close()
	}
	return nil
}
