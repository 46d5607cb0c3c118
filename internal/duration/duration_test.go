package duration

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/seblemaguer/marytts-http-server/internal/utterance"
)

func phonemes(labels ...string) *utterance.Sequence {
	seq := utterance.NewSequence()
	for _, l := range labels {
		seq.Append(&utterance.Phoneme{Label: l})
	}
	return seq
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestParse(t *testing.T) {
	recs, err := Parse(strings.NewReader("0 500 sil\n500 1200 a\r\n\n1200 2000\n"))
	if err != nil {
		t.Fatalf("Parse 失败: %v", err)
	}
	want := []Record{{0, 500}, {500, 1200}, {1200, 2000}}
	if len(recs) != len(want) {
		t.Fatalf("期望 %d 条记录，得到 %d", len(want), len(recs))
	}
	for i := range want {
		if recs[i] != want[i] {
			t.Errorf("记录 %d: got %+v, want %+v", i, recs[i], want[i])
		}
	}
}

func TestParse_Tabs(t *testing.T) {
	recs, err := Parse(strings.NewReader("0\t100\n100\t\t250 x"))
	if err != nil {
		t.Fatalf("Parse 失败: %v", err)
	}
	if len(recs) != 2 || recs[1] != (Record{100, 250}) {
		t.Errorf("解析结果不正确: %+v", recs)
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
	}{
		{"one field", "0 500\n700\n", 2},
		{"not integer", "0 abc\n", 1},
		{"float start", "0.5 100\n", 1},
		{"end before start", "0 500\n500 400\n", 2},
		{"negative", "-10 5\n", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("期望 *FormatError，得到 %v", err)
			}
			if fe.Line != tt.line {
				t.Errorf("行号: got %d, want %d", fe.Line, tt.line)
			}
		})
	}
}

func TestRealign_ThreePhones(t *testing.T) {
	in := phonemes("sil", "a", "sil")
	out, err := Realign(in, []Record{{0, 500}, {500, 1200}, {1200, 2000}})
	if err != nil {
		t.Fatalf("Realign 失败: %v", err)
	}

	want := []struct {
		label         string
		start, length float64
	}{
		{"sil", 0.0, 0.05},
		{"a", 0.05, 0.07},
		{"sil", 0.12, 0.08},
	}
	if out.Len() != len(want) {
		t.Fatalf("期望 %d 个音素，得到 %d", len(want), out.Len())
	}
	for i, w := range want {
		p, ok := out.Get(i).(*utterance.Phone)
		if !ok {
			t.Fatalf("索引 %d 期望 *Phone，得到 %T", i, out.Get(i))
		}
		if p.Label != w.label || !almostEqual(p.Start, w.start) || !almostEqual(p.Duration, w.length) {
			t.Errorf("索引 %d: got (%s, %v, %v), want (%s, %v, %v)",
				i, p.Label, p.Start, p.Duration, w.label, w.start, w.length)
		}
	}

	// 输入序列保持不变
	for i := 0; i < in.Len(); i++ {
		if _, ok := in.Get(i).(*utterance.Phoneme); !ok {
			t.Errorf("输入序列索引 %d 被修改为 %T", i, in.Get(i))
		}
	}
}

func TestRealign_RetimesExistingPhones(t *testing.T) {
	in := utterance.NewSequence(&utterance.Phone{Phoneme: utterance.Phoneme{Label: "a"}, Start: 9, Duration: 9})
	out, err := Realign(in, []Record{{100, 300}})
	if err != nil {
		t.Fatalf("Realign 失败: %v", err)
	}
	p := out.Get(0).(*utterance.Phone)
	if p.Label != "a" || !almostEqual(p.Start, 0.01) || !almostEqual(p.Duration, 0.02) {
		t.Errorf("重新对齐结果不正确: %+v", p)
	}
}

func TestRealign_CountMismatch(t *testing.T) {
	in := phonemes("a", "b", "c")
	_, err := Realign(in, []Record{{0, 1}, {1, 2}})
	var ce *CountError
	if !errors.As(err, &ce) {
		t.Fatalf("期望 *CountError，得到 %v", err)
	}
	if ce.Phones != 3 || ce.Records != 2 {
		t.Errorf("CountError 字段不正确: %+v", ce)
	}
}

func TestRealign_RejectsNonPhoneme(t *testing.T) {
	in := utterance.NewSequence(&utterance.AudioItem{})
	if _, err := Realign(in, []Record{{0, 1}}); err == nil {
		t.Fatal("非音素元素应返回错误")
	}
}
