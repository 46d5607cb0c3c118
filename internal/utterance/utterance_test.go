package utterance

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestAddSequence_Duplicate(t *testing.T) {
	u := New()
	if err := u.AddSequence(StreamAudio, NewSequence(&AudioItem{Path: "a.wav"})); err != nil {
		t.Fatalf("第一次 AddSequence 失败: %v", err)
	}
	err := u.AddSequence(StreamAudio, NewSequence())
	if !errors.Is(err, ErrStreamExists) {
		t.Fatalf("期望 ErrStreamExists，得到 %v", err)
	}
	seq, _ := u.Sequence(StreamAudio)
	if seq.Len() != 1 {
		t.Errorf("重复添加不应替换原序列，长度 = %d", seq.Len())
	}
}

func TestSequence_Missing(t *testing.T) {
	u := New()
	if u.HasSequence(StreamPhone) {
		t.Fatal("空话语不应包含 PHONE")
	}
	if _, err := u.Sequence(StreamPhone); !errors.Is(err, ErrStreamNotFound) {
		t.Fatalf("期望 ErrStreamNotFound，得到 %v", err)
	}
}

func TestSequence_SetKeepsOrder(t *testing.T) {
	seq := NewSequence(&Phoneme{Label: "a"}, &Phoneme{Label: "b"}, &Phoneme{Label: "c"})
	if err := seq.Set(1, &Phone{Phoneme: Phoneme{Label: "b"}, Start: 0.1, Duration: 0.2}); err != nil {
		t.Fatalf("Set 失败: %v", err)
	}
	if err := seq.Set(3, &Phoneme{Label: "d"}); err == nil {
		t.Fatal("越界 Set 应返回错误")
	}

	labels := []string{}
	for _, it := range seq.Items() {
		p, ok := PhonemeOf(it)
		if !ok {
			t.Fatalf("PhonemeOf(%T) 失败", it)
		}
		labels = append(labels, p.Label)
	}
	if len(labels) != 3 || labels[0] != "a" || labels[1] != "b" || labels[2] != "c" {
		t.Errorf("顺序被改变: %v", labels)
	}
	if _, ok := seq.Get(1).(*Phone); !ok {
		t.Errorf("索引 1 应为 *Phone，得到 %T", seq.Get(1))
	}
}

func TestPhonemeOf_Unsupported(t *testing.T) {
	if _, ok := PhonemeOf(&AudioItem{}); ok {
		t.Fatal("AudioItem 不应被识别为音素")
	}
}

func TestJSON_Roundtrip(t *testing.T) {
	u := New()
	_ = u.AddSequence(StreamPhone, NewSequence(
		&Phoneme{Label: "sil"},
		&Phone{Phoneme: Phoneme{Label: "a"}, Start: 0.05, Duration: 0.07},
	))
	_ = u.AddSequence(StreamFeatures, NewSequence(
		&FeatureItem{Features: map[string]string{"tone": "1"}},
		&FeatureItem{Context: "x^sil-a+sil=x"},
	))

	data, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("Marshal 失败: %v", err)
	}

	got := New()
	if err := json.Unmarshal(data, got); err != nil {
		t.Fatalf("Unmarshal 失败: %v", err)
	}
	if streams := got.Streams(); len(streams) != 2 || streams[0] != StreamFeatures || streams[1] != StreamPhone {
		t.Fatalf("数据流不匹配: %v", streams)
	}

	phones, _ := got.Sequence(StreamPhone)
	p, ok := phones.Get(1).(*Phone)
	if !ok {
		t.Fatalf("期望 *Phone，得到 %T", phones.Get(1))
	}
	if p.Label != "a" || p.Start != 0.05 || p.Duration != 0.07 {
		t.Errorf("Phone 不匹配: %+v", p)
	}
	if _, ok := phones.Get(0).(*Phoneme); !ok {
		t.Errorf("索引 0 应为 *Phoneme，得到 %T", phones.Get(0))
	}
}

func TestJSON_RejectsUnknownType(t *testing.T) {
	u := New()
	err := json.Unmarshal([]byte(`{"sequences":{"PHONE":[{"type":"syllable"}]}}`), u)
	if err == nil {
		t.Fatal("未知类型应返回错误")
	}
}

func TestJSON_RejectsNegativeTiming(t *testing.T) {
	u := New()
	err := json.Unmarshal([]byte(`{"sequences":{"PHONE":[{"type":"phone","label":"a","start":-1}]}}`), u)
	if err == nil {
		t.Fatal("负的起始时间应返回错误")
	}
}

func TestApply_AllOrNothing(t *testing.T) {
	u := New()
	orig := NewSequence(&Phoneme{Label: "a"})
	_ = u.AddSequence(StreamPhone, orig)
	_ = u.AddSequence(StreamAudio, NewSequence(&AudioItem{Path: "old.wav"}))

	err := u.Apply(map[StreamType]*Sequence{
		StreamPhone: NewSequence(&Phone{Phoneme: Phoneme{Label: "a"}, Duration: 0.1}),
		StreamAudio: NewSequence(&AudioItem{Path: "new.wav"}),
	}, StreamAudio)
	if !errors.Is(err, ErrStreamExists) {
		t.Fatalf("期望 ErrStreamExists，得到 %v", err)
	}
	if seq, _ := u.Sequence(StreamPhone); seq != orig {
		t.Error("Apply 失败时不应修改 PHONE")
	}

	if err := u.Apply(map[StreamType]*Sequence{StreamAudio: NewSequence(&AudioItem{Path: "new.wav"})}); err != nil {
		t.Fatalf("Apply 失败: %v", err)
	}
	audio, _ := u.Sequence(StreamAudio)
	if audio.Get(0).(*AudioItem).Path != "new.wav" {
		t.Error("AUDIO 应被替换")
	}
}
