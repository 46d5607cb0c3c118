//go:build unix

package engine

import (
	"os/exec"
	"syscall"
)

// configureProcess 让子进程自成进程组，取消时整组杀掉。
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
