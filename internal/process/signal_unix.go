//go:build !windows

package process

import (
	"errors"
	"os"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

var (
	sigGraceful = syscall.SIGTERM
	sigForced   = syscall.SIGKILL
)

// signalGroup delivers sig to the process group led by pid so that shell
// wrappers and their children are reached too. When the group is already
// gone it falls back to the single pid.
func signalGroup(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return syscall.ESRCH
	}
	if err := syscall.Kill(-pid, sig); err == nil {
		return nil
	}
	return syscall.Kill(pid, sig)
}

// pidAlive returns true if a process with given pid exists (or EPERM) and
// is not a zombie waiting to be reaped.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	if err != nil && !errors.Is(err, syscall.EPERM) {
		return false
	}
	return !isZombie(pid)
}

// isZombie reports whether pid has exited but not yet been reaped. A child
// that dies during the start grace period stays a zombie until we reap it.
func isZombie(pid int) bool {
	if runtime.GOOS == "linux" {
		b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/status")
		if err != nil {
			return false
		}
		return strings.Contains(string(b), "State:\tZ")
	}
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	st, err := p.Status()
	if err != nil {
		return false
	}
	for _, s := range st {
		if s == gopsproc.Zombie {
			return true
		}
	}
	return false
}

func signal(pid int, sig syscall.Signal) error {
	err := signalGroup(pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return ErrNoProcess
	}
	return err
}
