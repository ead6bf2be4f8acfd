package decoder

// pcmScale 返回把整数采样归一化到 [-1,1) 的除数
func pcmScale(bitDepth int) float64 {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	return float64(int64(1) << uint(bitDepth-1))
}

// downmixInterleaved 把交错排列的多声道整数采样平均为单声道
//
// 末尾不完整的采样帧被丢弃。
func downmixInterleaved(data []int, channels, bitDepth int) []float64 {
	if channels < 1 {
		channels = 1
	}
	scale := pcmScale(bitDepth) * float64(channels)

	frames := len(data) / channels
	mono := make([]float64, frames)
	for i := range frames {
		var sum float64
		for ch := range channels {
			sum += float64(data[i*channels+ch])
		}
		mono[i] = sum / scale
	}
	return mono
}

// appendDownmixPlanar 把按声道分开存放的一帧采样平均后追加到 dst
func appendDownmixPlanar(dst []float64, planes [][]int32, bitDepth int) []float64 {
	if len(planes) == 0 {
		return dst
	}
	scale := pcmScale(bitDepth) * float64(len(planes))

	n := len(planes[0])
	for _, plane := range planes[1:] {
		n = min(n, len(plane))
	}
	for i := range n {
		var sum float64
		for _, plane := range planes {
			sum += float64(plane[i])
		}
		dst = append(dst, sum/scale)
	}
	return dst
}
