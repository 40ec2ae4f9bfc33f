// Package supervisor implements the lifecycle of a single detached managed
// process: start, graceful-then-forced stop, status, restart and log tail.
//
// There is no daemon. Each operation runs to completion inside one short-lived
// invocation and re-derives the process state from the handle file and the OS
// process table; nothing else is remembered between invocations.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/loykin/botctl/internal/handle"
	"github.com/loykin/botctl/internal/history"
	"github.com/loykin/botctl/internal/logstream"
	"github.com/loykin/botctl/internal/metrics"
	"github.com/loykin/botctl/internal/process"
)

// State is the derived lifecycle condition of the managed process. It is
// never stored; a stale handle is healed on read and surfaces as NotRunning
// with Report.Stale set.
type State string

const (
	NotRunning State = "not_running"
	Running    State = "running"
)

// Report is the outcome of Start and Status.
type Report struct {
	State     State
	PID       int
	LogPath   string
	Stale     bool      // a stale handle was found and removed
	StartedAt time.Time // zero when the OS cannot tell
}

// StopResult is the outcome of Stop.
type StopResult struct {
	PID    int
	Forced bool          // graceful wait expired and SIGKILL was used
	Waited time.Duration // time spent polling for a graceful exit
	Stale  bool
}

// LogTail is the outcome of ShowLogs.
type LogTail struct {
	Path   string
	Exists bool
	Lines  []string
}

// Supervisor mediates lifecycle transitions for one managed process and keeps
// the handle file consistent with the OS process table.
//
// Concurrent invocations are not serialized: two racing Starts may both see
// no handle and both spawn.
type Supervisor struct {
	opts   Options
	handle handle.File
	ctrl   process.Controller
	log    *slog.Logger
}

func New(o Options) *Supervisor {
	o = o.withDefaults()
	return &Supervisor{
		opts:   o,
		handle: handle.File{Path: o.HandleFile},
		ctrl:   o.Controller,
		log:    o.Logger.With("process", o.Name),
	}
}

// LogPath returns today's capture file path.
func (s *Supervisor) LogPath() string { return s.opts.Logs.Current() }

// HandlePath returns the handle file path.
func (s *Supervisor) HandlePath() string { return s.handle.Path }

// inspect is the self-validating read of the handle: the stored pid is only
// trusted when the OS still reports it alive. A stale or unreadable record is
// deleted on the way.
func (s *Supervisor) inspect(ctx context.Context) (Report, error) {
	rep := Report{State: NotRunning, LogPath: s.LogPath()}
	pid, ok, err := s.handle.Read()
	if err != nil && !errors.Is(err, handle.ErrInvalid) {
		return rep, fmt.Errorf("read handle: %w", err)
	}
	if !ok {
		return rep, nil
	}
	if err == nil && s.ctrl.Alive(pid) {
		rep.State = Running
		rep.PID = pid
		return rep, nil
	}

	if err != nil {
		s.log.Warn("discarding unreadable handle file", "path", s.handle.Path, "error", err)
	} else {
		s.log.Info("removing stale handle", "pid", pid, "path", s.handle.Path)
	}
	if rerr := s.handle.Remove(); rerr != nil {
		return rep, fmt.Errorf("remove stale handle: %w", rerr)
	}
	rep.PID = pid
	rep.Stale = true
	s.record(ctx, history.EventStaleCleared, pid, "")
	return rep, nil
}

// Status reports Running with the tracked pid, or NotRunning. A stale
// handle is cleaned up as a side effect. Status never returns ErrNotRunning;
// only I/O failures are errors. When the start time is known LogPath names the
// file of the spawn date, otherwise today's.
func (s *Supervisor) Status(ctx context.Context) (Report, error) {
	began := s.opts.Now()
	defer func() { metrics.ObserveOperation("status", s.opts.Now().Sub(began)) }()

	rep, err := s.inspect(ctx)
	if err != nil {
		return rep, err
	}
	metrics.SetRunning(rep.PID, rep.State == Running)
	if rep.State != Running {
		return rep, nil
	}
	if st, ok := s.ctrl.(process.StartTimer); ok {
		if at, ok := st.StartedAt(rep.PID); ok {
			rep.StartedAt = at
			// The child keeps writing to the file of its spawn date.
			rep.LogPath = s.opts.Logs.PathFor(at)
		}
	}
	return rep, nil
}

// Start spawns the managed process detached, records its pid and confirms
// it is still alive after the start grace period.
//
// A crash between spawn and the handle write leaves an orphan with no handle;
// that gap is accepted.
func (s *Supervisor) Start(ctx context.Context) (Report, error) {
	began := s.opts.Now()
	defer func() { metrics.ObserveOperation("start", s.opts.Now().Sub(began)) }()

	rep, err := s.inspect(ctx)
	if err != nil {
		return rep, err
	}
	if rep.State == Running {
		return rep, fmt.Errorf("%w with pid %d", ErrAlreadyRunning, rep.PID)
	}
	rep.Stale = false

	out, err := s.opts.Logs.Open()
	if err != nil {
		return rep, fmt.Errorf("open log stream: %w", err)
	}
	// The child holds its own descriptor; ours is only needed for the spawn.
	defer func() { _ = out.Close() }()
	rep.LogPath = out.Name()

	spec := s.opts.Process
	spec.Output = out
	pid, err := s.ctrl.SpawnDetached(spec)
	if err != nil {
		s.record(ctx, history.EventLaunchFailed, 0, err.Error())
		return rep, fmt.Errorf("%w: %w", ErrLaunchFailed, err)
	}
	if err := s.handle.Write(pid); err != nil {
		// Without a handle nobody could stop it later.
		_ = s.ctrl.SignalForced(pid)
		return rep, fmt.Errorf("record pid %d: %w", pid, err)
	}
	rep.PID = pid
	s.log.Info("spawned", "pid", pid, "log", rep.LogPath, "handle", s.handle.Path)

	s.opts.Sleep(s.opts.StartGrace)
	if !s.ctrl.Alive(pid) {
		_ = s.handle.Remove()
		s.record(ctx, history.EventLaunchFailed, pid, "exited within start grace period")
		metrics.SetRunning(pid, false)
		return rep, fmt.Errorf("%w: pid %d exited within %s; see %s", ErrLaunchFailed, pid, s.opts.StartGrace, rep.LogPath)
	}

	rep.State = Running
	s.record(ctx, history.EventStart, pid, "")
	metrics.SetRunning(pid, true)
	return rep, nil
}

// Stop sends the graceful signal, polls for exit up to StopTimeout and then
// escalates to the forced signal. The handle is removed in every outcome.
// Forced termination is assumed to succeed and is not re-verified.
func (s *Supervisor) Stop(ctx context.Context) (StopResult, error) {
	began := s.opts.Now()
	defer func() { metrics.ObserveOperation("stop", s.opts.Now().Sub(began)) }()

	rep, err := s.inspect(ctx)
	if err != nil {
		return StopResult{}, err
	}
	res := StopResult{PID: rep.PID, Stale: rep.Stale}
	if rep.State != Running {
		metrics.SetRunning(0, false)
		return res, ErrNotRunning
	}
	pid := rep.PID

	if err := s.ctrl.SignalGraceful(pid); err != nil {
		if errors.Is(err, process.ErrNoProcess) {
			return s.stopped(ctx, res)
		}
		// Keep going: the escalation below still ends the process.
		s.log.Warn("graceful signal failed", "pid", pid, "error", err)
	}

	for res.Waited < s.opts.StopTimeout {
		// The last pass only sleeps what is left of the budget.
		d := min(s.opts.StopPoll, s.opts.StopTimeout-res.Waited)
		s.opts.Sleep(d)
		res.Waited += d
		if !s.ctrl.Alive(pid) {
			return s.stopped(ctx, res)
		}
	}

	s.log.Warn("graceful stop timed out, forcing", "pid", pid, "waited", res.Waited)
	if err := s.ctrl.SignalForced(pid); err != nil && !errors.Is(err, process.ErrNoProcess) {
		s.log.Warn("forced signal failed", "pid", pid, "error", err)
	}
	res.Forced = true
	return s.stopped(ctx, res)
}

func (s *Supervisor) stopped(ctx context.Context, res StopResult) (StopResult, error) {
	if err := s.handle.Remove(); err != nil {
		return res, fmt.Errorf("remove handle: %w", err)
	}
	ev := history.EventStop
	if res.Forced {
		ev = history.EventForcedStop
	}
	s.record(ctx, ev, res.PID, "")
	metrics.SetStopForced(s.opts.Name, res.Forced)
	metrics.SetRunning(0, false)
	return res, nil
}

// Restart is Stop (a NotRunning outcome is fine), a settle pause, then Start.
func (s *Supervisor) Restart(ctx context.Context) (StopResult, Report, error) {
	res, err := s.Stop(ctx)
	if err != nil && !errors.Is(err, ErrNotRunning) {
		return res, Report{}, err
	}
	s.opts.Sleep(s.opts.RestartSettle)
	rep, err := s.Start(ctx)
	return res, rep, err
}

// ShowLogs returns the last TailLines lines of today's capture file. A
// missing file is reported through LogTail.Exists, not as an error.
func (s *Supervisor) ShowLogs() (LogTail, error) {
	return s.Tail(s.opts.TailLines)
}

// Tail is ShowLogs with an explicit line count.
func (s *Supervisor) Tail(n int) (LogTail, error) {
	t := LogTail{Path: s.LogPath()}
	lines, err := logstream.Tail(t.Path, n)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return t, nil
		}
		return t, err
	}
	t.Exists = true
	t.Lines = lines
	return t, nil
}

// record appends a lifecycle event. Journal failures never fail the operation.
func (s *Supervisor) record(ctx context.Context, typ history.EventType, pid int, detail string) {
	now := s.opts.Now()
	metrics.MarkEvent(string(typ), now)
	e := history.Event{
		Type:       typ,
		OccurredAt: now,
		Process:    s.opts.Name,
		PID:        pid,
		LogPath:    s.LogPath(),
		Detail:     detail,
	}
	if err := s.opts.History.Send(ctx, e); err != nil {
		s.log.Warn("history write failed", "event", typ, "error", err)
	}
}
