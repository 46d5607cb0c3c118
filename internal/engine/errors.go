package engine

import (
	"fmt"
	"strings"
)

// LaunchError 表示子进程没能启动。
type LaunchError struct {
	Binary string
	Err    error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("[engine] 启动 %s 失败: %v", e.Binary, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// ExitError 表示子进程已启动，但以非零状态退出、被信号终止或被取消。
type ExitError struct {
	Binary   string
	ExitCode int    // 被信号终止时为 -1
	State    string // 例如 "exit status 3"、"signal: killed"
	Stderr   []string
	Err      error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("[engine] %s 异常退出 (%s)", e.Binary, e.State)
	if len(e.Stderr) > 0 {
		msg += ": " + strings.Join(e.Stderr, " | ")
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }
