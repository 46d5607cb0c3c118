package synth

import (
	"errors"
	"fmt"
)

// Kind 是合成失败的类别。
type Kind int

const (
	KindMissingData Kind = iota + 1
	KindResource
	KindLabelExport
	KindProcessLaunch
	KindProcessExecution
	KindMismatch
	KindDuplicateStream
)

var kindNames = map[Kind]string{
	KindMissingData:      "MissingDataError",
	KindResource:         "ResourceError",
	KindLabelExport:      "LabelExportError",
	KindProcessLaunch:    "ProcessLaunchError",
	KindProcessExecution: "ProcessExecutionError",
	KindMismatch:         "MismatchError",
	KindDuplicateStream:  "DuplicateStreamError",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// 每个类别对应一个哨兵错误，用于 errors.Is。
var (
	ErrMissingData      = errors.New("缺少必需的数据流")
	ErrResource         = errors.New("临时文件操作失败")
	ErrLabelExport      = errors.New("标注导出失败")
	ErrProcessLaunch    = errors.New("引擎启动失败")
	ErrProcessExecution = errors.New("引擎执行失败")
	ErrMismatch         = errors.New("时长标注与音素序列不一致")
	ErrDuplicateStream  = errors.New("数据流已存在")
)

var sentinels = map[Kind]error{
	KindMissingData:      ErrMissingData,
	KindResource:         ErrResource,
	KindLabelExport:      ErrLabelExport,
	KindProcessLaunch:    ErrProcessLaunch,
	KindProcessExecution: ErrProcessExecution,
	KindMismatch:         ErrMismatch,
	KindDuplicateStream:  ErrDuplicateStream,
}

// Failure 是合成调用返回的唯一错误类型。
// errors.Is 既能匹配类别哨兵（如 ErrMismatch），也能匹配底层原因。
type Failure struct {
	Kind Kind
	Op   string // 出错的步骤
	Err  error
}

func fail(kind Kind, op string, err error) *Failure {
	return &Failure{Kind: kind, Op: op, Err: err}
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("[synth] %s: %s", f.Op, f.Kind)
	}
	return fmt.Sprintf("[synth] %s: %s: %v", f.Op, f.Kind, f.Err)
}

// Unwrap 同时返回类别哨兵和底层原因。
func (f *Failure) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s, ok := sentinels[f.Kind]; ok {
		errs = append(errs, s)
	}
	if f.Err != nil {
		errs = append(errs, f.Err)
	}
	return errs
}

// KindOf 返回错误的类别，不是 *Failure 时返回 0。
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return 0
}
