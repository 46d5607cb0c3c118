package duration

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/seblemaguer/marytts-http-server/internal/utterance"
)

// UnitsPerSecond 是时长标注时间单位与秒的换算系数。
const UnitsPerSecond = 10000.0

// Record 是一行时长标注中的起止时间。
type Record struct {
	Start int64
	End   int64
}

// Seconds 返回起始时间和时长（秒）。
func (r Record) Seconds() (start, length float64) {
	return float64(r.Start) / UnitsPerSecond, float64(r.End-r.Start) / UnitsPerSecond
}

// FormatError 表示时长标注某一行无法解析。
type FormatError struct {
	Line   int // 从 1 开始
	Text   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("时长标注第 %d 行格式错误 (%s): %q", e.Line, e.Reason, e.Text)
}

// CountError 表示时长记录数与音素数不一致。
type CountError struct {
	Phones  int
	Records int
}

func (e *CountError) Error() string {
	return fmt.Sprintf("时长标注行数 (%d) 与音素数 (%d) 不一致", e.Records, e.Phones)
}

// Parse 读取引擎输出的时长标注。每个非空行至少包含两个以空白分隔的整数
// (start, end)，其余字段忽略。
func Parse(r io.Reader) ([]Record, error) {
	var recs []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		text := sc.Text()
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return nil, &FormatError{Line: lineNo, Text: text, Reason: "字段不足"}
		}
		start, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, &FormatError{Line: lineNo, Text: text, Reason: "起始时间不是整数"}
		}
		end, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, &FormatError{Line: lineNo, Text: text, Reason: "结束时间不是整数"}
		}
		if start < 0 {
			return nil, &FormatError{Line: lineNo, Text: text, Reason: "起始时间为负"}
		}
		if end < start {
			return nil, &FormatError{Line: lineNo, Text: text, Reason: "结束时间早于起始时间"}
		}
		recs = append(recs, Record{Start: start, End: end})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("读取时长标注失败: %w", err)
	}
	return recs, nil
}

// Realign 按位置把时长记录嫁接到音素序列上，返回新的 Phone 序列。
// 输入序列不会被修改；数量不一致时返回 *CountError。
func Realign(phones *utterance.Sequence, recs []Record) (*utterance.Sequence, error) {
	if phones.Len() != len(recs) {
		return nil, &CountError{Phones: phones.Len(), Records: len(recs)}
	}

	out := utterance.NewSequence()
	for i, rec := range recs {
		ph, ok := utterance.PhonemeOf(phones.Get(i))
		if !ok {
			return nil, fmt.Errorf("PHONE[%d] 不是音素: %T", i, phones.Get(i))
		}
		start, length := rec.Seconds()
		out.Append(&utterance.Phone{Phoneme: ph, Start: start, Duration: length})
	}
	return out, nil
}
