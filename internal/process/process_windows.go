//go:build windows

package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"
)

const (
	createNewProcessGroup = 0x00000200
	detachedProcess       = 0x00000008
	processQueryInfo      = 0x0400
)

// Windows has no interceptable termination signal for detached console-less
// processes; graceful stop is reported as unsupported and the supervisor
// escalates to TerminateProcess after its timeout.
var (
	sigGraceful = syscall.Signal(0xf)
	sigForced   = syscall.Signal(0x9)
)

var errGracefulUnsupported = errors.New("graceful termination is not supported on windows")

func getShellCommand(script string) *exec.Cmd {
	// #nosec G204
	return exec.Command("cmd", "/c", script)
}

func configureDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNewProcessGroup | detachedProcess}
}

func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	h, err := syscall.OpenProcess(processQueryInfo, false, uint32(pid))
	if err != nil {
		return false
	}
	defer func() { _ = syscall.CloseHandle(h) }()
	var code uint32
	if err := syscall.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	const stillActive = 259
	return code == stillActive
}

func signal(pid int, sig syscall.Signal) error {
	if sig == sigGraceful {
		return errGracefulUnsupported
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return ErrNoProcess
	}
	return p.Kill()
}

func startTime(pid int) (time.Time, bool) {
	if pid <= 0 {
		return time.Time{}, false
	}
	h, err := syscall.OpenProcess(processQueryInfo, false, uint32(pid))
	if err != nil {
		return time.Time{}, false
	}
	defer func() { _ = syscall.CloseHandle(h) }()
	var creation, exit, kernel, user syscall.Filetime
	if err := syscall.GetProcessTimes(h, &creation, &exit, &kernel, &user); err != nil {
		return time.Time{}, false
	}
	return time.Unix(0, creation.Nanoseconds()), true
}
