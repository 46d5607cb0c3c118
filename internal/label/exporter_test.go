package label

import (
	"strings"
	"testing"

	"github.com/seblemaguer/marytts-http-server/internal/utterance"
)

func buildUtterance(labels []string, feats []*utterance.FeatureItem) *utterance.Utterance {
	u := utterance.New()
	phones := utterance.NewSequence()
	for _, l := range labels {
		phones.Append(&utterance.Phoneme{Label: l})
	}
	fs := utterance.NewSequence()
	for _, f := range feats {
		fs.Append(f)
	}
	_ = u.AddSequence(utterance.StreamPhone, phones)
	_ = u.AddSequence(utterance.StreamFeatures, fs)
	return u
}

func TestHTSExporter_Quinphone(t *testing.T) {
	u := buildUtterance(
		[]string{"sil", "n", "i3", "sil"},
		[]*utterance.FeatureItem{
			{Features: map[string]string{"pos": "pause"}},
			{Features: map[string]string{"syllable": "ni3", "tone": "3", "pos": "initial"}},
			{Features: map[string]string{"syllable": "ni3", "tone": "3", "pos": "final"}},
			{Features: map[string]string{"pos": "pause"}},
		},
	)

	out, err := NewHTSExporter([]string{"tone", "pos"}).Export(u)
	if err != nil {
		t.Fatalf("Export 失败: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("期望 4 行，得到 %d 行: %q", len(lines), out)
	}

	want := []string{
		"xx^xx-sil+n=i3/tone:xx/pos:pause",
		"xx^sil-n+i3=sil/tone:3/pos:initial",
		"sil^n-i3+sil=xx/tone:3/pos:final",
		"n^i3-sil+xx=xx/tone:xx/pos:pause",
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("第 %d 行: got %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestHTSExporter_ContextVerbatim(t *testing.T) {
	u := buildUtterance(
		[]string{"a"},
		[]*utterance.FeatureItem{{Context: "x^x-a+x=x@1_1/A:0_0_0"}},
	)
	out, err := NewHTSExporter(nil).Export(u)
	if err != nil {
		t.Fatalf("Export 失败: %v", err)
	}
	if out != "x^x-a+x=x@1_1/A:0_0_0\n" {
		t.Errorf("上下文应原样输出，得到 %q", out)
	}
}

func TestHTSExporter_Errors(t *testing.T) {
	t.Run("count mismatch", func(t *testing.T) {
		u := buildUtterance([]string{"a", "b"}, []*utterance.FeatureItem{{}})
		if _, err := NewHTSExporter(nil).Export(u); err == nil {
			t.Fatal("数量不一致应返回错误")
		}
	})
	t.Run("missing features", func(t *testing.T) {
		u := utterance.New()
		_ = u.AddSequence(utterance.StreamPhone, utterance.NewSequence(&utterance.Phoneme{Label: "a"}))
		if _, err := NewHTSExporter(nil).Export(u); err == nil {
			t.Fatal("缺少 FEATURES 应返回错误")
		}
	})
	t.Run("newline in context", func(t *testing.T) {
		u := buildUtterance([]string{"a"}, []*utterance.FeatureItem{{Context: "a\nb"}})
		if _, err := NewHTSExporter(nil).Export(u); err == nil {
			t.Fatal("上下文包含换行应返回错误")
		}
	})
}
