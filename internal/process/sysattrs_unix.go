//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// configureDetached starts the child in a new session (setsid) so it has no
// controlling terminal and survives the invoking shell closing. As session
// leader it also leads its own process group, which signalGroup relies on.
func configureDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
