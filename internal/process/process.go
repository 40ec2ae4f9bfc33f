package process

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// Controller is the narrow OS capability the supervisor needs to manage a
// single detached process. Implementations must not keep per-process state
// between calls: every invocation of the supervisor is a fresh process.
type Controller interface {
	// SpawnDetached launches spec detached from the controlling terminal and
	// returns the OS-assigned pid. It does not wait for the child.
	SpawnDetached(spec Spec) (int, error)
	// Alive reports whether pid is present in the process table and not a zombie.
	Alive(pid int) bool
	// SignalGraceful sends the interceptable termination signal.
	SignalGraceful(pid int) error
	// SignalForced sends the unconditional termination signal.
	SignalForced(pid int) error
}

// StartTimer is implemented by controllers that can report when a process
// was started. It is optional.
type StartTimer interface {
	StartedAt(pid int) (time.Time, bool)
}

// OS controls real processes through signals and the process table.
type OS struct{}

// NewOS returns the Controller backed by the host operating system.
func NewOS() *OS { return &OS{} }

var (
	_ Controller = (*OS)(nil)
	_ StartTimer = (*OS)(nil)
)

func (*OS) SpawnDetached(spec Spec) (int, error) {
	if err := spec.Validate(); err != nil {
		return 0, err
	}
	cmd, err := spec.BuildCommand()
	if err != nil {
		return 0, err
	}
	if spec.WorkDir != "" {
		cmd.Dir = spec.WorkDir
	}
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	configureDetached(cmd)

	out := spec.Output
	if out == nil {
		null, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
		if err != nil {
			return 0, err
		}
		defer func() { _ = null.Close() }()
		out = null
	}
	// *os.File is handed to the child as-is; no copy goroutines are involved,
	// so the child keeps writing after we exit.
	cmd.Stdin = nil
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("launch %q: %w", spec.Command, err)
	}
	pid := cmd.Process.Pid
	// Reap the child if it dies while we are still around, so a quick crash
	// during the start grace period is observed as not alive.
	go func() { _ = cmd.Wait() }()
	return pid, nil
}

func (*OS) Alive(pid int) bool { return pidAlive(pid) }

func (*OS) SignalGraceful(pid int) error { return signal(pid, sigGraceful) }

func (*OS) SignalForced(pid int) error { return signal(pid, sigForced) }

func (*OS) StartedAt(pid int) (time.Time, bool) { return startTime(pid) }

// ErrNoProcess is returned when signaling a pid that no longer exists.
var ErrNoProcess = errors.New("no such process")
