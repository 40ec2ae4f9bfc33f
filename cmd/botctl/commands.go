package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/loykin/botctl/internal/history"
	"github.com/loykin/botctl/internal/logstream"
	"github.com/loykin/botctl/internal/metrics"
	"github.com/loykin/botctl/internal/process"
	"github.com/loykin/botctl/internal/supervisor"
	"github.com/loykin/botctl/internal/unit"
)

// command binds the CLI actions to their dependencies. The zero values of
// controller, sleep, now and sample select the host OS and the wall clock.
type command struct {
	flags  *GlobalFlags
	stdout io.Writer
	stderr io.Writer

	controller process.Controller
	sleep      func(time.Duration)
	now        func() time.Time
	sample     func(name string, pid int) (metrics.Usage, error)
}

func (c *command) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// Start launches the managed process. AlreadyRunning and LaunchFailed exit 1.
func (c *command) Start(ctx context.Context) error {
	s, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	return c.start(ctx, s, newPrinter(c.stdout))
}

func (c *command) start(ctx context.Context, s *session, p *printer) error {
	rep, err := s.sup.Start(ctx)
	return c.reportStart(s, p, rep, err)
}

func (c *command) reportStart(s *session, p *printer, rep supervisor.Report, err error) error {
	name := s.cfg.Name
	switch {
	case err == nil:
		p.okf("%s started (pid %d)", name, rep.PID)
		p.line("log: %s", rep.LogPath)
		p.hint("follow with: botctl logs -f   or   tail -f %s", rep.LogPath)
		return nil
	case errors.Is(err, supervisor.ErrAlreadyRunning):
		p.warnf("%s is already running (pid %d)", name, rep.PID)
		p.hint("use 'botctl status' or 'botctl stop' first")
		return exitError{code: 1}
	case errors.Is(err, supervisor.ErrLaunchFailed):
		p.badf("%s failed to start: %v", name, err)
		p.line("log: %s", rep.LogPath)
		return exitError{code: 1}
	}
	return err
}

// Stop terminates the managed process. NotRunning exits 1.
func (c *command) Stop(ctx context.Context) error {
	s, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	p := newPrinter(c.stdout)
	if err := c.stop(ctx, s, p); err != nil {
		if errors.Is(err, supervisor.ErrNotRunning) {
			return exitError{code: 1}
		}
		return err
	}
	return nil
}

func (c *command) stop(ctx context.Context, s *session, p *printer) error {
	res, err := s.sup.Stop(ctx)
	return c.reportStop(s, p, res, err)
}

func (c *command) reportStop(s *session, p *printer, res supervisor.StopResult, err error) error {
	name := s.cfg.Name
	if res.Stale {
		p.hint("removed stale handle %s (pid %d was not alive)", s.sup.HandlePath(), res.PID)
	}
	if err != nil {
		if errors.Is(err, supervisor.ErrNotRunning) {
			p.warnf("%s is not running", name)
		}
		return err
	}
	if res.Forced {
		p.warnf("%s did not exit within %s; force-killed (pid %d)", name, s.cfg.StopTimeout, res.PID)
		return nil
	}
	p.okf("%s stopped gracefully (pid %d)", name, res.PID)
	return nil
}

// Restart stops the process when it runs, waits the settle time and starts
// it again. Nothing running is fine.
func (c *command) Restart(ctx context.Context) error {
	s, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	p := newPrinter(c.stdout)

	res, rep, err := s.sup.Restart(ctx)
	if rep.State == "" {
		// The stop phase failed; nothing was started.
		return err
	}
	if res.PID != 0 && !res.Stale {
		_ = c.reportStop(s, p, res, nil)
	} else {
		if res.Stale {
			p.hint("removed stale handle %s (pid %d was not alive)", s.sup.HandlePath(), res.PID)
		}
		p.hint("%s was not running", s.cfg.Name)
	}
	return c.reportStart(s, p, rep, err)
}

// Status reports Running (exit 0) or NotRunning (exit 1).
func (c *command) Status(ctx context.Context) error {
	s, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	p := newPrinter(c.stdout)
	name := s.cfg.Name

	rep, err := s.sup.Status(ctx)
	if err != nil {
		return err
	}
	if rep.Stale {
		p.hint("removed stale handle %s (pid %d was not alive)", s.sup.HandlePath(), rep.PID)
	}
	if rep.State != supervisor.Running {
		p.badf("%s is not running", name)
		return exitError{code: 1}
	}

	p.okf("%s is running (pid %d)", name, rep.PID)
	if !rep.StartedAt.IsZero() {
		p.line("started: %s (%s)", rep.StartedAt.Format(time.DateTime), humanize.RelTime(rep.StartedAt, c.clock(), "ago", "from now"))
	}
	sample := c.sample
	if sample == nil {
		sample = metrics.Sample
	}
	if u, err := sample(name, rep.PID); err == nil {
		line := fmt.Sprintf("memory: %s rss, threads: %d, cpu: %.1f%%", humanize.IBytes(u.MemoryRSS), u.NumThreads, u.CPUPercent)
		if u.NumFDs > 0 {
			line += fmt.Sprintf(", fds: %d", u.NumFDs)
		}
		p.line("%s", line)
	} else {
		s.log.Debug("resource sample failed", "pid", rep.PID, "error", err)
	}
	p.line("log: %s", rep.LogPath)
	return nil
}

// Logs prints the tail of today's log. A missing file is not a failure.
func (c *command) Logs(ctx context.Context, f LogsFlags) error {
	s, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	p := newPrinter(c.stdout)

	n := f.Lines
	if n <= 0 {
		n = s.cfg.TailLines
	}
	tail, err := s.sup.Tail(n)
	if err != nil {
		return err
	}
	if !tail.Exists {
		p.warnf("no log file for today: %s", tail.Path)
		return nil
	}
	p.hint("==> %s (last %d lines) <==", tail.Path, len(tail.Lines))
	for _, l := range tail.Lines {
		p.line("%s", l)
	}
	if !f.Follow {
		p.hint("follow with: botctl logs -f   or   tail -f %s", tail.Path)
		return nil
	}

	fctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = logstream.Follow(fctx, tail.Path, c.stdout)
	if errors.Is(err, logstream.ErrRemoved) {
		p.warnf("log file %s was removed", tail.Path)
		return nil
	}
	return err
}

// History prints the most recent journal entries, newest first.
func (c *command) History(ctx context.Context, f HistoryFlags) error {
	s, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	p := newPrinter(c.stdout)

	r, ok := s.history.(history.Reader)
	if !ok {
		return errors.New("no readable history journal configured (set history.dsn)")
	}
	events, err := r.Recent(ctx, f.Limit)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	if len(events) == 0 {
		p.hint("no lifecycle events recorded yet")
		return nil
	}
	now := c.clock()
	for _, e := range events {
		line := fmt.Sprintf("%s  %-13s  pid %-7d  %s",
			e.OccurredAt.Local().Format(time.DateTime), e.Type, e.PID,
			humanize.RelTime(e.OccurredAt, now, "ago", "from now"))
		if e.Detail != "" {
			line += "  " + e.Detail
		}
		switch e.Type {
		case history.EventLaunchFailed:
			p.line("%s", p.bad.Render(line))
		case history.EventForcedStop:
			p.line("%s", p.warn.Render(line))
		default:
			p.line("%s", line)
		}
	}
	return nil
}

// InstallService renders the systemd unit. It refuses while a process
// started through the handle file is alive, since both mechanisms would then
// manage the same executable.
func (c *command) InstallService(ctx context.Context, f InstallServiceFlags) error {
	s, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	p := newPrinter(c.stdout)

	rep, err := s.sup.Status(ctx)
	if err != nil {
		return err
	}
	if rep.State == supervisor.Running {
		p.badf("%s is running under botctl (pid %d); run 'botctl stop' before handing it to systemd", s.cfg.Name, rep.PID)
		return exitError{code: 1}
	}

	tmplPath := f.Template
	if tmplPath == "" {
		tmplPath = s.cfg.Unit.Template
	}
	tmpl, err := unit.Load(tmplPath)
	if err != nil {
		return err
	}
	workDir := f.WorkDir
	if workDir == "" {
		if workDir, err = os.Getwd(); err != nil {
			return err
		}
	}
	content, err := unit.Render(tmpl, workDir)
	if err != nil {
		return err
	}
	out := f.Output
	if out == "" {
		out = s.cfg.Unit.Output
	}
	if err := unit.Write(out, content); err != nil {
		return fmt.Errorf("write unit: %w", err)
	}
	s.log.Info("unit written", "path", out, "workdir", workDir)

	p.okf("wrote %s", out)
	p.line("register it with:")
	p.line("  %s", strings.Join(unit.Commands(out), "\n  "))
	p.hint("do not use 'botctl start' for this bot once systemd manages it")
	return nil
}
