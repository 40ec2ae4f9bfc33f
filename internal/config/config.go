// Package config loads botctl settings from an optional TOML file and
// BOTCTL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/botctl/internal/env"
	"github.com/loykin/botctl/internal/logger"
	"github.com/loykin/botctl/internal/logstream"
	"github.com/loykin/botctl/internal/process"
	"github.com/loykin/botctl/internal/supervisor"
	"github.com/loykin/botctl/internal/unit"
)

// DefaultFile is read when present and no --config is given.
const DefaultFile = "botctl.toml"

// EnvPrefix prefixes environment overrides; "history.dsn" becomes BOTCTL_HISTORY_DSN.
const EnvPrefix = "BOTCTL"

// Config is the top-level TOML structure.
type Config struct {
	Name     string   `toml:"name" mapstructure:"name"`
	Command  string   `toml:"command" mapstructure:"command"`
	WorkDir  string   `toml:"work_dir" mapstructure:"work_dir"`
	Env      []string `toml:"env" mapstructure:"env"`
	EnvFiles []string `toml:"env_files" mapstructure:"env_files"`

	HandleFile string `toml:"handle_file" mapstructure:"handle_file"`
	LogDir     string `toml:"log_dir" mapstructure:"log_dir"`
	LogPrefix  string `toml:"log_prefix" mapstructure:"log_prefix"`

	StartGrace    time.Duration `toml:"start_grace" mapstructure:"start_grace"`
	StopTimeout   time.Duration `toml:"stop_timeout" mapstructure:"stop_timeout"`
	StopPoll      time.Duration `toml:"stop_poll" mapstructure:"stop_poll"`
	RestartSettle time.Duration `toml:"restart_settle" mapstructure:"restart_settle"`
	TailLines     int           `toml:"tail_lines" mapstructure:"tail_lines"`

	History HistoryConfig `toml:"history" mapstructure:"history"`
	Metrics MetricsConfig `toml:"metrics" mapstructure:"metrics"`
	Log     logger.Config `toml:"log" mapstructure:"log"`
	Unit    UnitConfig    `toml:"unit" mapstructure:"unit"`
}

type HistoryConfig struct {
	// DSN selects the journal: sqlite path, postgres:// or clickhouse://.
	// Empty disables history.
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

type MetricsConfig struct {
	Textfile    string `toml:"textfile" mapstructure:"textfile"`       // node_exporter textfile target
	Pushgateway string `toml:"pushgateway" mapstructure:"pushgateway"` // Pushgateway base URL
	Job         string `toml:"job" mapstructure:"job"`
}

// Enabled reports whether any metrics destination is configured.
func (m MetricsConfig) Enabled() bool { return m.Textfile != "" || m.Pushgateway != "" }

type UnitConfig struct {
	Template string `toml:"template" mapstructure:"template"`
	Output   string `toml:"output" mapstructure:"output"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("name", supervisor.DefaultName)
	v.SetDefault("command", "./energy-bot")
	v.SetDefault("work_dir", "")
	v.SetDefault("env", []string{})
	v.SetDefault("env_files", []string{})
	v.SetDefault("handle_file", supervisor.DefaultHandleFile)
	v.SetDefault("log_dir", logstream.DefaultDir)
	v.SetDefault("log_prefix", logstream.DefaultPrefix)
	v.SetDefault("start_grace", supervisor.DefaultStartGrace)
	v.SetDefault("stop_timeout", supervisor.DefaultStopTimeout)
	v.SetDefault("stop_poll", supervisor.DefaultStopPoll)
	v.SetDefault("restart_settle", supervisor.DefaultRestartSettle)
	v.SetDefault("tail_lines", supervisor.DefaultTailLines)
	v.SetDefault("history.dsn", "")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("metrics.pushgateway", "")
	v.SetDefault("metrics.job", "botctl")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.compress", false)
	v.SetDefault("unit.template", "")
	v.SetDefault("unit.output", unit.DefaultOutput)
}

// Load reads path, or DefaultFile when path is empty and the file exists,
// and applies environment overrides. A missing explicit path is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file := path
	if file == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			file = DefaultFile
		}
	}
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects settings the supervisor cannot honor.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Command) == "" {
		errs = append(errs, errors.New("command must not be empty"))
	}
	for name, d := range map[string]time.Duration{
		"start_grace":    c.StartGrace,
		"stop_timeout":   c.StopTimeout,
		"stop_poll":      c.StopPoll,
		"restart_settle": c.RestartSettle,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.StopPoll > c.StopTimeout && c.StopTimeout > 0 {
		errs = append(errs, fmt.Errorf("stop_poll (%s) must not exceed stop_timeout (%s)", c.StopPoll, c.StopTimeout))
	}
	if c.TailLines <= 0 {
		errs = append(errs, fmt.Errorf("tail_lines must be positive, got %d", c.TailLines))
	}
	if c.HandleFile == "" {
		errs = append(errs, errors.New("handle_file must not be empty"))
	}
	for _, kv := range c.Env {
		if !strings.Contains(kv, "=") {
			errs = append(errs, fmt.Errorf("env entry %q must be K=V", kv))
		}
	}
	return errors.Join(errs...)
}

// ProcessEnv merges env_files in order and then the env list; later entries
// win and ${VAR} references are resolved. The result is sorted by key.
func (c *Config) ProcessEnv() ([]string, error) {
	e := env.New()
	for _, p := range c.EnvFiles {
		if err := e.LoadFile(p); err != nil {
			return nil, fmt.Errorf("env file %s: %w", p, err)
		}
	}
	return e.Overrides(c.Env), nil
}

// SupervisorOptions maps the file settings onto supervisor.Options. Controller,
// History and Logger are left for the caller.
func (c *Config) SupervisorOptions() (supervisor.Options, error) {
	vars, err := c.ProcessEnv()
	if err != nil {
		return supervisor.Options{}, err
	}
	return supervisor.Options{
		Name: c.Name,
		Process: process.Spec{
			Command: c.Command,
			WorkDir: c.WorkDir,
			Env:     vars,
		},
		HandleFile:    c.HandleFile,
		Logs:          logstream.Stream{Dir: c.LogDir, Prefix: c.LogPrefix},
		StartGrace:    c.StartGrace,
		StopTimeout:   c.StopTimeout,
		StopPoll:      c.StopPoll,
		RestartSettle: c.RestartSettle,
		TailLines:     c.TailLines,
	}, nil
}
