package utterance

import "time"

// Item 是序列中的一个元素。
type Item interface {
	// ItemType 返回元素类型名，同时用作 JSON 中的类型标记。
	ItemType() string
}

// Phoneme 是一个音素，只有标识，不带时间信息。
type Phoneme struct {
	Label string
}

// ItemType 实现 Item。
func (p *Phoneme) ItemType() string { return "phoneme" }

// Phone 是带有起始时间和时长（秒）的音素。
type Phone struct {
	Phoneme
	Start    float64
	Duration float64
}

// ItemType 实现 Item。
func (p *Phone) ItemType() string { return "phone" }

// End 返回结束时间（秒）。
func (p *Phone) End() float64 { return p.Start + p.Duration }

// FeatureItem 携带一个音素的上下文特征。
// Context 非空时表示上游已经生成了完整的上下文标注。
type FeatureItem struct {
	Context  string
	Features map[string]string
}

// ItemType 实现 Item。
func (f *FeatureItem) ItemType() string { return "features" }

// Get 返回特征值，不存在时 ok 为 false。
func (f *FeatureItem) Get(key string) (string, bool) {
	if f.Features == nil {
		return "", false
	}
	v, ok := f.Features[key]
	return v, ok
}

// AudioItem 引用合成出的波形。
// Path 为空表示波形只保存在内存中（Data）。
type AudioItem struct {
	Path       string
	Data       []byte
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
}

// ItemType 实现 Item。
func (a *AudioItem) ItemType() string { return "audio" }

// PhonemeOf 返回元素的音素标识，支持 *Phoneme 与 *Phone。
func PhonemeOf(it Item) (Phoneme, bool) {
	switch v := it.(type) {
	case *Phoneme:
		return *v, true
	case *Phone:
		return v.Phoneme, true
	default:
		return Phoneme{}, false
	}
}
