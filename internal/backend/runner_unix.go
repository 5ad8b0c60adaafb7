//go:build unix

package backend

import (
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// configureProcessGroup puts cmd in its own process group so cancellation
// reaches the container client and anything it spawned. SIGTERM goes first;
// SIGKILL follows after grace if the group is still alive.
func configureProcessGroup(cmd *exec.Cmd, grace time.Duration) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	cmd.Cancel = func() error {
		pgid := -cmd.Process.Pid
		if grace <= 0 {
			return unix.Kill(pgid, unix.SIGKILL)
		}
		if err := unix.Kill(pgid, unix.SIGTERM); err != nil {
			return unix.Kill(pgid, unix.SIGKILL)
		}
		go func() {
			time.Sleep(grace)
			// ESRCH once the group has exited.
			_ = unix.Kill(pgid, unix.SIGKILL)
		}()
		return nil
	}
	cmd.WaitDelay = grace + time.Second
}

// detach starts cmd in a new session so terminal signals aimed at this
// process do not reach it.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
