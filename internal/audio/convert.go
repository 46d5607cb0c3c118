package audio

import "encoding/binary"

// ToInt16 把任意位深的整数样本缩放到 16 位。
func ToInt16(in []int, bitDepth int) []int16 {
	out := make([]int16, len(in))
	shift := bitDepth - 16
	for i, s := range in {
		switch {
		case bitDepth == 8:
			// 8 位 WAV 是无符号数，128 为零点
			out[i] = int16((s - 128) << 8)
		case shift > 0:
			out[i] = int16(s >> shift)
		case shift < 0:
			out[i] = int16(s << -shift)
		default:
			out[i] = int16(s)
		}
	}
	return out
}

// PCMBytes 按小端序编码 16 位样本，即 malgo.FormatS16 的内存布局。
func PCMBytes(samples []int16) []byte {
	buf := make([]byte, 2*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(v))
	}
	return buf
}
