package supervisor

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/loykin/botctl/internal/history"
	"github.com/loykin/botctl/internal/logstream"
	"github.com/loykin/botctl/internal/process"
)

// fakeController is an in-memory process table.
type fakeController struct {
	mu         sync.Mutex
	nextPID    int
	alive      map[int]bool
	ignoreTerm bool  // spawned processes survive SIGTERM
	dieOnSpawn bool  // spawned processes exit before the grace period ends
	spawnErr   error // returned by SpawnDetached
	spawned    []process.Spec
	graceful   []int
	forced     []int
	started    map[int]time.Time
	now        func() time.Time // start times come from here when set
}

func newFakeController() *fakeController {
	return &fakeController{nextPID: 4000, alive: map[int]bool{}, started: map[int]time.Time{}}
}

func (f *fakeController) SpawnDetached(spec process.Spec) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.spawnErr != nil {
		return 0, f.spawnErr
	}
	f.nextPID++
	pid := f.nextPID
	f.spawned = append(f.spawned, spec)
	f.alive[pid] = !f.dieOnSpawn
	if f.now != nil {
		f.started[pid] = f.now()
	}
	return pid, nil
}

func (f *fakeController) StartedAt(pid int) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	at, ok := f.started[pid]
	return at, ok
}

func (f *fakeController) Alive(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive[pid]
}

func (f *fakeController) SignalGraceful(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.graceful = append(f.graceful, pid)
	if !f.alive[pid] {
		return process.ErrNoProcess
	}
	if !f.ignoreTerm {
		f.alive[pid] = false
	}
	return nil
}

func (f *fakeController) SignalForced(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forced = append(f.forced, pid)
	if !f.alive[pid] {
		return process.ErrNoProcess
	}
	f.alive[pid] = false
	return nil
}

func (f *fakeController) liveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ok := range f.alive {
		if ok {
			n++
		}
	}
	return n
}

// fakeClock advances only when the supervisor sleeps.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 17, 9, 30, 0, 0, time.Local)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.slept += d
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Slept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slept
}

// memorySink keeps events for assertions.
type memorySink struct {
	mu     sync.Mutex
	events []history.Event
	err    error
}

func (m *memorySink) Send(_ context.Context, e history.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return m.err
}

func (m *memorySink) types() []history.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]history.EventType, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	sup   *Supervisor
	ctrl  *fakeController
	clock *fakeClock
	sink  *memorySink
	dir   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		ctrl:  newFakeController(),
		clock: newFakeClock(),
		sink:  &memorySink{},
		dir:   dir,
	}
	h.ctrl.now = h.clock.Now
	h.sup = New(Options{
		Name:          "test-bot",
		Process:       process.Spec{Command: "./energy-bot"},
		HandleFile:    filepath.Join(dir, "bot.pid"),
		Logs:          logstream.Stream{Dir: filepath.Join(dir, "logs")},
		StartGrace:    3 * time.Second,
		StopTimeout:   10 * time.Second,
		StopPoll:      time.Second,
		RestartSettle: 2 * time.Second,
		Controller:    h.ctrl,
		History:       h.sink,
		Now:           h.clock.Now,
		Sleep:         h.clock.Sleep,
	})
	return h
}

var errBoom = errors.New("boom")
