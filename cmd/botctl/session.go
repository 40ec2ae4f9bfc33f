package main

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/botctl/internal/config"
	"github.com/loykin/botctl/internal/history"
	"github.com/loykin/botctl/internal/history/factory"
	"github.com/loykin/botctl/internal/logger"
	"github.com/loykin/botctl/internal/metrics"
	"github.com/loykin/botctl/internal/supervisor"
)

// session is everything one invocation needs. Close must run before exit:
// it flushes metrics and releases the log file and the history journal.
type session struct {
	cfg     *config.Config
	sup     *supervisor.Supervisor
	log     *slog.Logger
	history history.Sink
	reg     *prometheus.Registry
	closers []io.Closer
}

func (c *command) open(ctx context.Context) (*session, error) {
	cfg, err := config.Load(c.flags.ConfigPath)
	if err != nil {
		return nil, err
	}
	log, logCloser, err := logger.New(cfg.Log, c.stderr)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, log: log, closers: []io.Closer{logCloser}}

	if cfg.Metrics.Enabled() {
		s.reg = prometheus.NewRegistry()
		if err := metrics.Register(s.reg); err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	sink, err := factory.NewSinkFromDSN(ctx, cfg.History.DSN)
	if err != nil {
		// The journal is auxiliary; lifecycle actions still work without it.
		log.Warn("history disabled", "error", err)
		sink = history.Nop{}
	}
	if cl, ok := sink.(io.Closer); ok {
		s.closers = append(s.closers, cl)
	}
	s.history = sink

	opts, err := cfg.SupervisorOptions()
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	opts.Logger = log
	opts.History = sink
	opts.Controller = c.controller
	opts.Sleep = c.sleep
	opts.Now = c.now
	s.sup = supervisor.New(opts)
	return s, nil
}

// flushMetrics writes the registry to the configured textfile and/or
// Pushgateway. Failures are logged only.
func (s *session) flushMetrics() {
	if s.reg == nil {
		return
	}
	m := s.cfg.Metrics
	if m.Textfile != "" {
		if err := metrics.WriteTextfile(m.Textfile, s.reg); err != nil {
			s.log.Warn("metrics textfile write failed", "path", m.Textfile, "error", err)
		}
	}
	if m.Pushgateway != "" {
		if err := metrics.Push(m.Pushgateway, m.Job, s.reg); err != nil {
			s.log.Warn("metrics push failed", "url", m.Pushgateway, "error", err)
		}
	}
}

func (s *session) Close() error {
	s.flushMetrics()
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	return errors.Join(errs...)
}
