// Package botctl supervises a single long-running process without a daemon:
// every call re-derives state from a pid handle file and the OS process table.
package botctl

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/loykin/botctl/internal/config"
	"github.com/loykin/botctl/internal/history"
	"github.com/loykin/botctl/internal/history/factory"
	"github.com/loykin/botctl/internal/logstream"
	"github.com/loykin/botctl/internal/metrics"
	"github.com/loykin/botctl/internal/process"
	"github.com/loykin/botctl/internal/supervisor"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Spec = process.Spec

type Controller = process.Controller

type Options = supervisor.Options

type Report = supervisor.Report

type StopResult = supervisor.StopResult

type LogTail = supervisor.LogTail

type State = supervisor.State

type LogStream = logstream.Stream

type Config = cfg.Config

type HistorySink = history.Sink

type HistoryEvent = history.Event

const (
	Running    = supervisor.Running
	NotRunning = supervisor.NotRunning
)

var (
	ErrAlreadyRunning = supervisor.ErrAlreadyRunning
	ErrNotRunning     = supervisor.ErrNotRunning
	ErrLaunchFailed   = supervisor.ErrLaunchFailed
)

// Supervisor is a thin facade over internal/supervisor.
type Supervisor struct{ inner *supervisor.Supervisor }

func New(o Options) *Supervisor { return &Supervisor{inner: supervisor.New(o)} }

func (s *Supervisor) Start(ctx context.Context) (Report, error) { return s.inner.Start(ctx) }
func (s *Supervisor) Stop(ctx context.Context) (StopResult, error) { return s.inner.Stop(ctx) }
func (s *Supervisor) Status(ctx context.Context) (Report, error) { return s.inner.Status(ctx) }

// Restart stops the process if it runs, waits the settle delay, then starts it.
func (s *Supervisor) Restart(ctx context.Context) (StopResult, Report, error) {
	return s.inner.Restart(ctx)
}

func (s *Supervisor) ShowLogs() (LogTail, error) { return s.inner.ShowLogs() }
func (s *Supervisor) Tail(n int) (LogTail, error) { return s.inner.Tail(n) }
func (s *Supervisor) LogPath() string { return s.inner.LogPath() }
func (s *Supervisor) HandlePath() string { return s.inner.HandlePath() }

// LoadConfig reads a TOML config; an empty path uses ./botctl.toml when present.
func LoadConfig(path string) (*Config, error) { return cfg.Load(path) }

// NewFromConfig builds a Supervisor for c with the host OS controller.
func NewFromConfig(c *Config) (*Supervisor, error) {
	o, err := c.SupervisorOptions()
	if err != nil {
		return nil, err
	}
	return New(o), nil
}

// NewHistorySink opens the journal named by dsn; empty disables history.
func NewHistorySink(ctx context.Context, dsn string) (HistorySink, error) {
	return factory.NewSinkFromDSN(ctx, dsn)
}

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
