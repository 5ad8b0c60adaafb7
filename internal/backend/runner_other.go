//go:build !unix

package backend

import (
	"os/exec"
	"time"
)

func configureProcessGroup(cmd *exec.Cmd, grace time.Duration) {
	cmd.WaitDelay = grace
}

func detach(*exec.Cmd) {}
