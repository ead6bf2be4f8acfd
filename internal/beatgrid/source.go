package beatgrid

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"track-structure-analyzer/internal/types"
)

// ErrNoBeats 没有可用的节拍数据
var ErrNoBeats = errors.New("beatgrid: 没有节拍数据")

// sidecarSuffixes 旁车文件后缀，按顺序查找
var sidecarSuffixes = []string{".beats", ".beats.json", ".beats.txt"}

// Source 节拍来源
type Source interface {
	Beats(ctx context.Context, audioPath string) ([]float64, error)
}

// SourceFunc 把普通函数适配为 Source
type SourceFunc func(ctx context.Context, audioPath string) ([]float64, error)

// Beats 实现 Source
func (f SourceFunc) Beats(ctx context.Context, audioPath string) ([]float64, error) {
	return f(ctx, audioPath)
}

// Load 从来源读取节拍并构建节拍网格
func Load(ctx context.Context, src Source, audioPath string) (types.BeatGrid, error) {
	beats, err := src.Beats(ctx, audioPath)
	if err != nil {
		return types.BeatGrid{}, err
	}
	return New(beats), nil
}

// ReadFile 读取节拍文件
func ReadFile(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开节拍文件失败: %w", err)
	}
	defer f.Close()

	beats, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return beats, nil
}

// File 无论分析哪个音频都返回同一个节拍文件的内容
func File(path string) Source {
	return SourceFunc(func(ctx context.Context, _ string) ([]float64, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return ReadFile(path)
	})
}

// Sidecar 查找与音频同名的节拍文件，例如 track.wav 对应 track.beats
func Sidecar() Source {
	return SourceFunc(func(ctx context.Context, audioPath string) ([]float64, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		base := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))
		for _, suffix := range sidecarSuffixes {
			path := base + suffix
			if _, err := os.Stat(path); err != nil {
				continue
			}
			return ReadFile(path)
		}
		return nil, fmt.Errorf("%w: %s 没有节拍文件", ErrNoBeats, filepath.Base(audioPath))
	})
}

// Aubio 调用外部 aubio 节拍跟踪器
func Aubio(bin string) Source {
	if bin == "" {
		bin = "aubio"
	}

	return SourceFunc(func(ctx context.Context, audioPath string) ([]float64, error) {
		if _, err := exec.LookPath(bin); err != nil {
			return nil, fmt.Errorf("找不到 aubio: %w", err)
		}

		cmd := exec.CommandContext(ctx, bin, "beat", "-i", audioPath)
		cmd.Env = append(os.Environ(), "LC_ALL=C")

		var stderr strings.Builder
		cmd.Stderr = &stderr
		out, err := cmd.Output()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("aubio beat 执行失败: %w: %s", err, strings.TrimSpace(stderr.String()))
		}

		beats, err := Parse(strings.NewReader(string(out)))
		if err != nil {
			return nil, fmt.Errorf("解析 aubio 输出失败: %w", err)
		}
		return beats, nil
	})
}
