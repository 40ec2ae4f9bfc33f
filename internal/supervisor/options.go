package supervisor

import (
	"io"
	"log/slog"
	"time"

	"github.com/loykin/botctl/internal/history"
	"github.com/loykin/botctl/internal/logstream"
	"github.com/loykin/botctl/internal/process"
)

// Timing and layout defaults. Every one of them can be overridden through
// Options so tests can shrink the waits.
const (
	DefaultName          = "energy-bot"
	DefaultHandleFile    = "bot.pid"
	DefaultStartGrace    = 3 * time.Second
	DefaultStopTimeout   = 10 * time.Second
	DefaultStopPoll      = time.Second
	DefaultRestartSettle = 2 * time.Second
	DefaultTailLines     = 50
)

// Options configure a Supervisor. Zero values fall back to the defaults above.
type Options struct {
	Name       string       // label for logs, history and metrics
	Process    process.Spec // Output is set by Start
	HandleFile string
	Logs       logstream.Stream

	StartGrace    time.Duration // wait before confirming a start
	StopTimeout   time.Duration // total graceful wait before escalating
	StopPoll      time.Duration // liveness poll interval while stopping
	RestartSettle time.Duration // pause between stop and start on restart
	TailLines     int

	Controller process.Controller
	History    history.Sink
	Logger     *slog.Logger

	Now   func() time.Time
	Sleep func(time.Duration)
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = DefaultName
	}
	if o.HandleFile == "" {
		o.HandleFile = DefaultHandleFile
	}
	if o.StartGrace <= 0 {
		o.StartGrace = DefaultStartGrace
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = DefaultStopTimeout
	}
	if o.StopPoll <= 0 {
		o.StopPoll = DefaultStopPoll
	}
	if o.StopPoll > o.StopTimeout {
		o.StopPoll = o.StopTimeout
	}
	if o.RestartSettle <= 0 {
		o.RestartSettle = DefaultRestartSettle
	}
	if o.TailLines <= 0 {
		o.TailLines = DefaultTailLines
	}
	if o.Controller == nil {
		o.Controller = process.NewOS()
	}
	if o.History == nil {
		o.History = history.Nop{}
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}
	if o.Logs.Now == nil {
		o.Logs.Now = o.Now
	}
	return o
}
