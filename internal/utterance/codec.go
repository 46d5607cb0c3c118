package utterance

import (
	"encoding/json"
	"fmt"
	"time"
)

// jsonItem 是所有元素类型共用的 JSON 表示，由 type 字段区分。
type jsonItem struct {
	Type       string            `json:"type"`
	Label      string            `json:"label,omitempty"`
	Start      *float64          `json:"start,omitempty"`
	Duration   *float64          `json:"duration,omitempty"`
	Context    string            `json:"context,omitempty"`
	Features   map[string]string `json:"features,omitempty"`
	Path       string            `json:"path,omitempty"`
	SampleRate int               `json:"sample_rate,omitempty"`
	Channels   int               `json:"channels,omitempty"`
	BitDepth   int               `json:"bit_depth,omitempty"`
	DurationMs int64             `json:"duration_ms,omitempty"`
}

type jsonUtterance struct {
	Sequences map[StreamType][]jsonItem `json:"sequences"`
}

// MarshalJSON 实现 json.Marshaler。音频数据本身不会内联输出。
func (u *Utterance) MarshalJSON() ([]byte, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	out := jsonUtterance{Sequences: make(map[StreamType][]jsonItem, len(u.sequences))}
	for typ, seq := range u.sequences {
		items := make([]jsonItem, 0, seq.Len())
		for _, it := range seq.items {
			ji, err := encodeItem(it)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", typ, err)
			}
			items = append(items, ji)
		}
		out.Sequences[typ] = items
	}
	return json.Marshal(out)
}

// UnmarshalJSON 实现 json.Unmarshaler。
func (u *Utterance) UnmarshalJSON(data []byte) error {
	var in jsonUtterance
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	seqs := make(map[StreamType]*Sequence, len(in.Sequences))
	for typ, items := range in.Sequences {
		seq := NewSequence()
		for i, ji := range items {
			it, err := decodeItem(ji)
			if err != nil {
				return fmt.Errorf("%s[%d]: %w", typ, i, err)
			}
			seq.Append(it)
		}
		seqs[typ] = seq
	}

	u.mu.Lock()
	u.sequences = seqs
	u.mu.Unlock()
	return nil
}

func encodeItem(it Item) (jsonItem, error) {
	switch v := it.(type) {
	case *Phoneme:
		return jsonItem{Type: v.ItemType(), Label: v.Label}, nil
	case *Phone:
		start, dur := v.Start, v.Duration
		return jsonItem{Type: v.ItemType(), Label: v.Label, Start: &start, Duration: &dur}, nil
	case *FeatureItem:
		return jsonItem{Type: v.ItemType(), Context: v.Context, Features: v.Features}, nil
	case *AudioItem:
		return jsonItem{
			Type:       v.ItemType(),
			Path:       v.Path,
			SampleRate: v.SampleRate,
			Channels:   v.Channels,
			BitDepth:   v.BitDepth,
			DurationMs: v.Duration.Milliseconds(),
		}, nil
	default:
		return jsonItem{}, fmt.Errorf("不支持的元素类型 %T", it)
	}
}

func decodeItem(ji jsonItem) (Item, error) {
	switch ji.Type {
	case "phoneme":
		return &Phoneme{Label: ji.Label}, nil
	case "phone":
		p := &Phone{Phoneme: Phoneme{Label: ji.Label}}
		if ji.Start != nil {
			p.Start = *ji.Start
		}
		if ji.Duration != nil {
			p.Duration = *ji.Duration
		}
		if p.Start < 0 || p.Duration < 0 {
			return nil, fmt.Errorf("音素 %q 的时间不能为负", ji.Label)
		}
		return p, nil
	case "features":
		return &FeatureItem{Context: ji.Context, Features: ji.Features}, nil
	case "audio":
		return &AudioItem{
			Path:       ji.Path,
			SampleRate: ji.SampleRate,
			Channels:   ji.Channels,
			BitDepth:   ji.BitDepth,
			Duration:   time.Duration(ji.DurationMs) * time.Millisecond,
		}, nil
	default:
		return nil, fmt.Errorf("未知元素类型 %q", ji.Type)
	}
}
