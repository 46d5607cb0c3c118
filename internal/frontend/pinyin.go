// Package frontend 从中文文本生成合成用的话语。
// 只做拼音切分，不做分词、韵律预测等完整的文本分析。
package frontend

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mozillazg/go-pinyin"

	"github.com/seblemaguer/marytts-http-server/internal/utterance"
)

// Pause 是句首句尾的静音音素。
const Pause = "sil"

// Pinyin 把汉字拆成声母和带调韵母两个音素。
type Pinyin struct {
	initials pinyin.Args
	finals   pinyin.Args
}

// NewPinyin 创建拼音前端。
func NewPinyin() *Pinyin {
	initials := pinyin.NewArgs()
	initials.Style = pinyin.Initials

	finals := pinyin.NewArgs()
	finals.Style = pinyin.FinalsTone3

	return &Pinyin{initials: initials, finals: finals}
}

// Build 生成包含 PHONE 和 FEATURES 两条对齐数据流的话语。非汉字字符会被忽略。
func (p *Pinyin) Build(text string) (*utterance.Utterance, error) {
	phones := utterance.NewSequence(&utterance.Phoneme{Label: Pause})
	feats := utterance.NewSequence(pauseFeatures())

	syllables := 0
	for _, r := range text {
		ch := string(r)
		ini := pinyin.Pinyin(ch, p.initials)
		fin := pinyin.Pinyin(ch, p.finals)
		if len(fin) == 0 || len(fin[0]) == 0 {
			continue
		}
		final := fin[0][0]
		initial := ""
		if len(ini) > 0 && len(ini[0]) > 0 {
			initial = ini[0][0]
		}

		base, tone := splitTone(final)
		syllable := initial + base + tone
		if initial != "" {
			phones.Append(&utterance.Phoneme{Label: initial})
			feats.Append(syllableFeatures(syllable, tone, "initial", ch))
		}
		phones.Append(&utterance.Phoneme{Label: base + tone})
		feats.Append(syllableFeatures(syllable, tone, "final", ch))
		syllables++
	}
	if syllables == 0 {
		return nil, fmt.Errorf("[frontend] 文本中没有可合成的汉字: %q", text)
	}

	phones.Append(&utterance.Phoneme{Label: Pause})
	feats.Append(pauseFeatures())

	utt := utterance.New()
	if err := utt.AddSequence(utterance.StreamPhone, phones); err != nil {
		return nil, err
	}
	if err := utt.AddSequence(utterance.StreamFeatures, feats); err != nil {
		return nil, err
	}
	return utt, nil
}

// splitTone 拆分 FinalsTone3 风格的韵母，轻声返回 "5"。
func splitTone(final string) (string, string) {
	if n := len(final); n > 0 {
		if _, err := strconv.Atoi(final[n-1:]); err == nil {
			return final[:n-1], final[n-1:]
		}
	}
	return strings.TrimSpace(final), "5"
}

func syllableFeatures(syllable, tone, pos, ch string) *utterance.FeatureItem {
	return &utterance.FeatureItem{Features: map[string]string{
		"syllable": syllable,
		"tone":     tone,
		"pos":      pos,
		"char":     ch,
	}}
}

func pauseFeatures() *utterance.FeatureItem {
	return &utterance.FeatureItem{Features: map[string]string{"pos": "pause"}}
}
