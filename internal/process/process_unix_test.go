//go:build !windows

package process

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func spawn(t *testing.T, spec Spec) int {
	t.Helper()
	if testing.Short() {
		t.Skip("spawns real processes")
	}
	pid, err := NewOS().SpawnDetached(spec)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	t.Cleanup(func() { _ = NewOS().SignalForced(pid) })
	return pid
}

func waitDead(t *testing.T, pid int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if !NewOS().Alive(pid) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("pid %d still alive", pid)
}

func TestSpawnDetachedNewSession(t *testing.T) {
	pid := spawn(t, Spec{Command: "sleep 5"})
	c := NewOS()
	if !c.Alive(pid) {
		t.Fatalf("pid %d should be alive", pid)
	}
	sid, err := unix.Getsid(pid)
	if err != nil {
		t.Fatalf("getsid: %v", err)
	}
	if sid != pid {
		t.Fatalf("child should lead its own session: sid=%d pid=%d", sid, pid)
	}
	if err := c.SignalGraceful(pid); err != nil {
		t.Fatalf("graceful: %v", err)
	}
	waitDead(t, pid)
}

func TestSpawnWritesOutputToFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "out.log")
	f, err := os.Create(logPath)
	if err != nil {
		t.Fatal(err)
	}
	pid := spawn(t, Spec{
		Command: "sh -c 'echo out; echo err 1>&2; echo $BOT_MODE; pwd'",
		WorkDir: dir,
		Env:     []string{"BOT_MODE=paper"},
		Output:  f,
	})
	_ = f.Close()
	waitDead(t, pid)

	b, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	got := string(b)
	for _, want := range []string{"out\n", "err\n", "paper\n", filepath.Base(dir)} {
		if !strings.Contains(got, want) {
			t.Fatalf("log missing %q:\n%s", want, got)
		}
	}
}

func TestQuickExitIsNotAlive(t *testing.T) {
	pid := spawn(t, Spec{Command: "sh -c 'exit 3'"})
	waitDead(t, pid)
}

func TestSignalForcedIgnoredTerm(t *testing.T) {
	pid := spawn(t, Spec{Command: `sh -c "trap '' TERM; sleep 5"`})
	time.Sleep(100 * time.Millisecond)
	c := NewOS()
	if err := c.SignalGraceful(pid); err != nil {
		t.Fatalf("graceful: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	if !c.Alive(pid) {
		t.Fatalf("process ignoring TERM should survive")
	}
	if err := c.SignalForced(pid); err != nil {
		t.Fatalf("forced: %v", err)
	}
	waitDead(t, pid)
}

func TestSignalMissingProcess(t *testing.T) {
	c := NewOS()
	if c.Alive(0) || c.Alive(-1) {
		t.Fatal("non-positive pids are never alive")
	}
	pid := spawn(t, Spec{Command: "sh -c 'exit 0'"})
	waitDead(t, pid)
	// Give the reaper a moment; the pid is gone from the table afterwards.
	time.Sleep(50 * time.Millisecond)
	if err := c.SignalGraceful(pid); !errors.Is(err, ErrNoProcess) {
		t.Fatalf("want ErrNoProcess, got %v", err)
	}
}

func TestSpawnRejectsInvalidSpec(t *testing.T) {
	if _, err := NewOS().SpawnDetached(Spec{}); err == nil {
		t.Fatal("empty command should fail")
	}
	if _, err := NewOS().SpawnDetached(Spec{Command: "/definitely/not/here/energy-bot"}); err == nil {
		t.Fatal("missing executable should fail")
	}
}

func TestStartedAt(t *testing.T) {
	pid := spawn(t, Spec{Command: "sleep 5"})
	at, ok := NewOS().StartedAt(pid)
	if !ok {
		t.Fatal("start time unavailable for live pid")
	}
	if d := time.Since(at); d < -2*time.Second || d > time.Minute {
		t.Fatalf("start time %v not near now", at)
	}
	if _, ok := NewOS().StartedAt(0); ok {
		t.Fatal("pid 0 has no start time")
	}
}
