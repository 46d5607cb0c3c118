package utterance

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// StreamType 标识话语中的一条数据流。
type StreamType string

const (
	StreamFeatures StreamType = "FEATURES"
	StreamPhone    StreamType = "PHONE"
	StreamAudio    StreamType = "AUDIO"
	StreamWord     StreamType = "WORD"
	StreamSyllable StreamType = "SYLLABLE"
)

var (
	// ErrStreamNotFound 表示读取了不存在的数据流。
	ErrStreamNotFound = errors.New("数据流不存在")
	// ErrStreamExists 表示添加了已存在的数据流。
	ErrStreamExists = errors.New("数据流已存在")
)

// Sequence 是一条有序的元素序列，序列拥有其中的元素。
type Sequence struct {
	items []Item
}

// NewSequence 用给定元素创建序列。
func NewSequence(items ...Item) *Sequence {
	s := &Sequence{items: make([]Item, 0, len(items))}
	s.items = append(s.items, items...)
	return s
}

// Len 返回元素个数。
func (s *Sequence) Len() int { return len(s.items) }

// Get 返回第 i 个元素，越界时 panic，与切片一致。
func (s *Sequence) Get(i int) Item { return s.items[i] }

// Set 替换第 i 个元素，不改变其余元素的位置。
func (s *Sequence) Set(i int, it Item) error {
	if i < 0 || i >= len(s.items) {
		return fmt.Errorf("索引 %d 越界 (长度 %d)", i, len(s.items))
	}
	s.items[i] = it
	return nil
}

// Append 在序列末尾追加元素。
func (s *Sequence) Append(items ...Item) {
	s.items = append(s.items, items...)
}

// Items 返回元素切片的拷贝。
func (s *Sequence) Items() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Utterance 是以数据流名为键的序列集合，每个数据流恰好对应一条序列。
type Utterance struct {
	mu        sync.RWMutex
	sequences map[StreamType]*Sequence
}

// New 创建空话语。
func New() *Utterance {
	return &Utterance{sequences: make(map[StreamType]*Sequence)}
}

// HasSequence 报告数据流是否存在。
func (u *Utterance) HasSequence(typ StreamType) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	_, ok := u.sequences[typ]
	return ok
}

// Sequence 返回数据流对应的序列。
func (u *Utterance) Sequence(typ StreamType) (*Sequence, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	seq, ok := u.sequences[typ]
	if !ok {
		return nil, fmt.Errorf("%s: %w", typ, ErrStreamNotFound)
	}
	return seq, nil
}

// AddSequence 添加新的数据流，已存在时返回 ErrStreamExists。
func (u *Utterance) AddSequence(typ StreamType, seq *Sequence) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.sequences[typ]; ok {
		return fmt.Errorf("%s: %w", typ, ErrStreamExists)
	}
	u.sequences[typ] = seq
	return nil
}

// ReplaceSequence 整体替换（或新增）数据流。
func (u *Utterance) ReplaceSequence(typ StreamType, seq *Sequence) {
	u.mu.Lock()
	u.sequences[typ] = seq
	u.mu.Unlock()
}

// Streams 返回按名称排序的数据流列表。
func (u *Utterance) Streams() []StreamType {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]StreamType, 0, len(u.sequences))
	for typ := range u.sequences {
		out = append(out, typ)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Apply 在同一把锁内整体替换多条数据流。absent 中任一数据流已存在时
// 返回 ErrStreamExists，且不做任何修改。
func (u *Utterance) Apply(seqs map[StreamType]*Sequence, absent ...StreamType) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, typ := range absent {
		if _, ok := u.sequences[typ]; ok {
			return fmt.Errorf("%s: %w", typ, ErrStreamExists)
		}
	}
	for typ, seq := range seqs {
		u.sequences[typ] = seq
	}
	return nil
}
