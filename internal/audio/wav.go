package audio

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-audio/wav"
)

// Info 是 WAV 文件头中的格式信息。
type Info struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
}

// ReadWAVInfo 解析 WAV 文件头，不解码样本。
func ReadWAVInfo(data []byte) (Info, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return Info{}, fmt.Errorf("[audio] 不是有效的 WAV 文件")
	}
	if err := d.FwdToPCM(); err != nil {
		return Info{}, fmt.Errorf("[audio] 定位 WAV 数据块失败: %w", err)
	}
	info := Info{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
	}
	// 按 data 块大小计算时长，不含文件头
	bytesPerSec := int64(info.SampleRate) * int64(info.Channels) * int64(info.BitDepth/8)
	if bytesPerSec > 0 {
		info.Duration = time.Duration(d.PCMLen() * int64(time.Second) / bytesPerSec)
	}
	return info, nil
}

// DecodePCM16 解码 WAV 为交织的 16 位样本。
func DecodePCM16(data []byte) ([]int16, Info, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, Info{}, fmt.Errorf("[audio] 不是有效的 WAV 文件")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, Info{}, fmt.Errorf("[audio] 解码 WAV 失败: %w", err)
	}

	info := Info{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
	}
	if info.SampleRate > 0 && info.Channels > 0 {
		frames := len(buf.Data) / info.Channels
		info.Duration = time.Duration(frames) * time.Second / time.Duration(info.SampleRate)
	}
	return ToInt16(buf.Data, info.BitDepth), info, nil
}
