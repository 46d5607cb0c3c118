package label

import (
	"fmt"
	"strings"

	"github.com/seblemaguer/marytts-http-server/internal/utterance"
)

// Exporter 把话语转换为合成引擎可直接读取的标注文本。
// 输出的行数和顺序必须与 PHONE 序列一一对应。
type Exporter interface {
	Export(utt *utterance.Utterance) (string, error)
}

// undefined 是 HTS 标注中表示"无此上下文"的占位符。
const undefined = "xx"

// DefaultFeatureKeys 是 HTSExporter 默认输出的特征名。
var DefaultFeatureKeys = []string{"syllable", "tone", "pos", "char"}

// HTSExporter 生成 HTS 风格的全上下文标注。
type HTSExporter struct {
	keys []string
}

// NewHTSExporter 创建导出器，keys 为空时使用 DefaultFeatureKeys。
func NewHTSExporter(keys []string) *HTSExporter {
	if len(keys) == 0 {
		keys = DefaultFeatureKeys
	}
	k := make([]string, len(keys))
	copy(k, keys)
	return &HTSExporter{keys: k}
}

// Export 实现 Exporter。
//
// FEATURES 中带 Context 的元素原样输出，否则输出五音素上下文
// p1^p2-p3+p4=p5，再依次追加 /key:value。
func (e *HTSExporter) Export(utt *utterance.Utterance) (string, error) {
	feats, err := utt.Sequence(utterance.StreamFeatures)
	if err != nil {
		return "", err
	}
	phones, err := utt.Sequence(utterance.StreamPhone)
	if err != nil {
		return "", err
	}
	if feats.Len() != phones.Len() {
		return "", fmt.Errorf("FEATURES 数量 (%d) 与 PHONE 数量 (%d) 不一致", feats.Len(), phones.Len())
	}

	labels := make([]string, phones.Len())
	for i := range labels {
		p, ok := utterance.PhonemeOf(phones.Get(i))
		if !ok {
			return "", fmt.Errorf("PHONE[%d] 不是音素: %T", i, phones.Get(i))
		}
		labels[i] = p.Label
	}

	var b strings.Builder
	for i := 0; i < feats.Len(); i++ {
		fi, ok := feats.Get(i).(*utterance.FeatureItem)
		if !ok {
			return "", fmt.Errorf("FEATURES[%d] 不是特征元素: %T", i, feats.Get(i))
		}
		if fi.Context != "" {
			if strings.ContainsAny(fi.Context, "\r\n") {
				return "", fmt.Errorf("FEATURES[%d] 的上下文包含换行", i)
			}
			b.WriteString(fi.Context)
		} else {
			b.WriteString(quinphone(labels, i))
			for _, key := range e.keys {
				v, ok := fi.Get(key)
				if !ok || v == "" {
					v = undefined
				}
				b.WriteString("/")
				b.WriteString(key)
				b.WriteString(":")
				b.WriteString(v)
			}
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

func quinphone(labels []string, i int) string {
	at := func(j int) string {
		if j < 0 || j >= len(labels) || labels[j] == "" {
			return undefined
		}
		return labels[j]
	}
	return fmt.Sprintf("%s^%s-%s+%s=%s", at(i-2), at(i-1), at(i), at(i+1), at(i+2))
}
