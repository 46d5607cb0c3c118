package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Stream 标识子进程的输出流。
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// LineHandler 接收子进程输出的每一行。会被两个 goroutine 并发调用，
// 实现方不应阻塞。
type LineHandler func(stream Stream, line string)

const (
	defaultStderrTail = 20
	defaultWaitDelay  = 5 * time.Second
)

// Result 是子进程正常结束后的信息。
type Result struct {
	ExitCode    int
	Elapsed     time.Duration
	StdoutLines int
	StderrLines int
	StderrTail  []string
}

// Task 是一个正在运行的子进程，两个输出流各由一个 goroutine 持续读取到 EOF。
type Task struct {
	ctx     context.Context
	cmd     *exec.Cmd
	binary  string
	drains  *errgroup.Group
	started time.Time

	stdoutLines int
	stderrLines int
	tail        *lineTail
}

// Start 启动子进程并立即开始排空 stdout 和 stderr。
// 子进程无法启动时返回 *LaunchError。
func Start(ctx context.Context, c Command, handler LineHandler) (*Task, error) {
	if handler == nil {
		handler = func(Stream, string) {}
	}

	cmd := exec.CommandContext(ctx, c.Binary, c.Args...)
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Dir = c.Dir
	cmd.WaitDelay = c.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = defaultWaitDelay
	}
	configureProcess(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &LaunchError{Binary: c.Binary, Err: fmt.Errorf("stdout 管道: %w", err)}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &LaunchError{Binary: c.Binary, Err: fmt.Errorf("stderr 管道: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Binary: c.Binary, Err: err}
	}

	tailSize := c.StderrTail
	if tailSize <= 0 {
		tailSize = defaultStderrTail
	}
	t := &Task{
		ctx:     ctx,
		cmd:     cmd,
		binary:  c.Binary,
		drains:  new(errgroup.Group),
		started: time.Now(),
		tail:    newLineTail(tailSize),
	}

	t.drains.Go(func() error {
		n, err := drain(stdout, func(line string) { handler(Stdout, line) })
		t.stdoutLines = n
		return err
	})
	t.drains.Go(func() error {
		n, err := drain(stderr, func(line string) {
			t.tail.add(line)
			handler(Stderr, line)
		})
		t.stderrLines = n
		return err
	})

	return t, nil
}

// Pid 返回子进程 ID。
func (t *Task) Pid() int {
	return t.cmd.Process.Pid
}

// Wait 先等两个输出流都读到 EOF，再回收子进程。
// 非零退出、被信号终止或 ctx 被取消时返回 *ExitError。
func (t *Task) Wait() (Result, error) {
	drainErr := t.drains.Wait()
	waitErr := t.cmd.Wait()

	res := Result{
		ExitCode:    -1,
		Elapsed:     time.Since(t.started),
		StdoutLines: t.stdoutLines,
		StderrLines: t.stderrLines,
		StderrTail:  t.tail.lines(),
	}
	if st := t.cmd.ProcessState; st != nil {
		res.ExitCode = st.ExitCode()
	}

	if ctxErr := t.ctx.Err(); ctxErr != nil {
		return res, t.exitError(res, ctxErr)
	}
	if waitErr != nil {
		return res, t.exitError(res, waitErr)
	}
	if drainErr != nil {
		return res, fmt.Errorf("[engine] 读取 %s 输出失败: %w", t.binary, drainErr)
	}
	return res, nil
}

func (t *Task) exitError(res Result, cause error) *ExitError {
	state := cause.Error()
	if st := t.cmd.ProcessState; st != nil {
		state = st.String()
	}
	return &ExitError{
		Binary:   t.binary,
		ExitCode: res.ExitCode,
		State:    state,
		Stderr:   res.StderrTail,
		Err:      cause,
	}
}

// Run 启动子进程并阻塞到结束。
func Run(ctx context.Context, c Command, handler LineHandler) (Result, error) {
	t, err := Start(ctx, c, handler)
	if err != nil {
		return Result{}, err
	}
	return t.Wait()
}

// drain 逐行读取 r 直到 EOF，返回读到的行数。
// 不限制单行长度，保证子进程不会因管道写满而阻塞。
func drain(r io.Reader, fn func(line string)) (int, error) {
	br := bufio.NewReader(r)
	n := 0
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			n++
			fn(strings.TrimRight(line, "\r\n"))
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return n, nil
			}
			// 继续丢弃剩余输出，避免子进程卡在写管道上
			_, _ = io.Copy(io.Discard, r)
			return n, err
		}
	}
}

// lineTail 保留最近的若干行。
type lineTail struct {
	buf  []string
	size int
}

func newLineTail(size int) *lineTail {
	return &lineTail{size: size}
}

func (l *lineTail) add(line string) {
	if len(l.buf) == l.size {
		copy(l.buf, l.buf[1:])
		l.buf = l.buf[:l.size-1]
	}
	l.buf = append(l.buf, line)
}

func (l *lineTail) lines() []string {
	out := make([]string, len(l.buf))
	copy(out, l.buf)
	return out
}
