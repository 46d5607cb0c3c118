package engine

import (
	"fmt"
	"os/exec"
	"time"
)

// Flags 是引擎命令行参数的拼写，不同版本的 hts_engine 可能不同。
type Flags struct {
	Model    string `yaml:"model"`
	Wave     string `yaml:"wave"`
	Duration string `yaml:"duration"`
}

// DefaultFlags 返回 hts_engine 的参数拼写。
func DefaultFlags() Flags {
	return Flags{Model: "-m", Wave: "-ow", Duration: "-od"}
}

// withDefaults 用默认值补全空字段。
func (f Flags) withDefaults() Flags {
	def := DefaultFlags()
	if f.Model == "" {
		f.Model = def.Model
	}
	if f.Wave == "" {
		f.Wave = def.Wave
	}
	if f.Duration == "" {
		f.Duration = def.Duration
	}
	return f
}

// Command 描述一次子进程调用。
type Command struct {
	Binary string
	Args   []string
	Env    []string // KEY=VALUE，追加在当前进程环境之后
	Dir    string

	// StderrTail 为保留的 stderr 末尾行数，用于错误信息。
	StderrTail int
	// WaitDelay 为进程被杀后等待管道关闭的上限。
	WaitDelay time.Duration
}

// Invocation 是构造引擎命令行所需的路径。
type Invocation struct {
	Voice         string
	Wave          string
	DurationLabel string
	Label         string
}

// BuildCommand 按 <extra...> <model> voice <wave> wav <duration> dur label 的顺序组装命令。
// 输入标注始终是最后一个位置参数。
func BuildCommand(binary string, extra []string, flags Flags, inv Invocation) (Command, error) {
	if binary == "" {
		return Command{}, fmt.Errorf("[engine] 未配置引擎可执行文件")
	}
	if inv.Voice == "" {
		return Command{}, fmt.Errorf("[engine] 未配置声音模型")
	}
	flags = flags.withDefaults()

	args := make([]string, 0, len(extra)+7)
	args = append(args, extra...)
	args = append(args,
		flags.Model, inv.Voice,
		flags.Wave, inv.Wave,
		flags.Duration, inv.DurationLabel,
		inv.Label,
	)
	return Command{Binary: binary, Args: args}, nil
}

// LookPath 确认引擎可执行文件存在并返回其完整路径。
func LookPath(binary string) (string, error) {
	p, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("[engine] 找不到引擎 %s: %w", binary, err)
	}
	return p, nil
}
