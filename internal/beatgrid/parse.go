package beatgrid

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
)

// beatsDocument JSON 节拍文件的对象形式
type beatsDocument struct {
	Beats []float64 `json:"beats"`
}

// Parse 解析节拍数据
//
// 支持三种格式：每行一个时间戳的文本（# 开头为注释，只取第一个字段）、
// JSON 数组，以及 {"beats": [...]} 对象。
func Parse(r io.Reader) ([]float64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("读取节拍数据失败: %w", err)
	}

	var beats []float64
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
		return nil, ErrNoBeats
	case trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &beats); err != nil {
			return nil, fmt.Errorf("解析JSON节拍数组失败: %w", err)
		}
	case trimmed[0] == '{':
		var doc beatsDocument
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("解析JSON节拍文件失败: %w", err)
		}
		beats = doc.Beats
	default:
		beats, err = parseLines(trimmed)
		if err != nil {
			return nil, err
		}
	}

	if len(beats) == 0 {
		return nil, ErrNoBeats
	}
	for _, t := range beats {
		if t < 0 || math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, fmt.Errorf("无效的节拍时间: %v", t)
		}
	}
	slices.Sort(beats)

	return beats, nil
}

func parseLines(data []byte) ([]float64, error) {
	var beats []float64

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		field := strings.Fields(line)[0]
		t, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("第 %d 行不是时间戳: %q", lineNo, field)
		}
		beats = append(beats, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取节拍数据失败: %w", err)
	}

	return beats, nil
}
