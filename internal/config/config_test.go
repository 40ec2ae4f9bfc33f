package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "botctl.toml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

// chdir switches into a fresh directory so botctl.toml discovery is isolated.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdir(t)
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "energy-bot", c.Name)
	assert.Equal(t, "./energy-bot", c.Command)
	assert.Equal(t, "bot.pid", c.HandleFile)
	assert.Equal(t, "logs", c.LogDir)
	assert.Equal(t, "bot_", c.LogPrefix)
	assert.Equal(t, 3*time.Second, c.StartGrace)
	assert.Equal(t, 10*time.Second, c.StopTimeout)
	assert.Equal(t, time.Second, c.StopPoll)
	assert.Equal(t, 2*time.Second, c.RestartSettle)
	assert.Equal(t, 50, c.TailLines)
	assert.Empty(t, c.History.DSN)
	assert.False(t, c.Metrics.Enabled())
	assert.Equal(t, "botctl", c.Metrics.Job)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, 10, c.Log.MaxSizeMB)
	assert.Equal(t, "energy-bot.service", c.Unit.Output)
}

func TestLoadFile(t *testing.T) {
	chdir(t)
	path := writeTOML(t, `
name = "grid-bot"
command = "./grid-bot --live"
work_dir = "/opt/grid"
env = ["MODE=live", "REGION=NL"]
handle_file = "run/grid.pid"
log_dir = "/var/log/grid"
log_prefix = "grid_"
start_grace = "5s"
stop_timeout = "30s"
stop_poll = "500ms"
restart_settle = "1s"
tail_lines = 200

[history]
dsn = "sqlite:///var/lib/botctl/history.db"

[metrics]
textfile = "/var/lib/node_exporter/botctl.prom"
pushgateway = "http://push:9091"
job = "grid"

[log]
level = "debug"
json = true
file = "/var/log/botctl.log"
max_backups = 9

[unit]
template = "deploy/grid.service.tmpl"
output = "deploy/grid.service"
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "grid-bot", c.Name)
	assert.Equal(t, "./grid-bot --live", c.Command)
	assert.Equal(t, "/opt/grid", c.WorkDir)
	assert.Equal(t, []string{"MODE=live", "REGION=NL"}, c.Env)
	assert.Equal(t, "run/grid.pid", c.HandleFile)
	assert.Equal(t, 5*time.Second, c.StartGrace)
	assert.Equal(t, 30*time.Second, c.StopTimeout)
	assert.Equal(t, 500*time.Millisecond, c.StopPoll)
	assert.Equal(t, 200, c.TailLines)
	assert.Equal(t, "sqlite:///var/lib/botctl/history.db", c.History.DSN)
	assert.True(t, c.Metrics.Enabled())
	assert.Equal(t, "grid", c.Metrics.Job)
	assert.Equal(t, "debug", c.Log.Level)
	assert.True(t, c.Log.JSON)
	assert.Equal(t, 9, c.Log.MaxBackups)
	assert.Equal(t, 10, c.Log.MaxSizeMB, "unset keys keep defaults")
	assert.Equal(t, "deploy/grid.service", c.Unit.Output)
}

func TestLoadDiscoversDefaultFile(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), []byte(`command = "./other-bot"`), 0o644))
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "./other-bot", c.Command)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	chdir(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	chdir(t)
	path := writeTOML(t, "stop_timeout = \"30s\"\n[history]\ndsn = \"file.db\"\n")
	t.Setenv("BOTCTL_STOP_TIMEOUT", "4s")
	t.Setenv("BOTCTL_HISTORY_DSN", "postgres://bot@db/bot")
	t.Setenv("BOTCTL_COMMAND", "./energy-bot --paper")
	t.Setenv("BOTCTL_LOG_LEVEL", "warn")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4*time.Second, c.StopTimeout)
	assert.Equal(t, "postgres://bot@db/bot", c.History.DSN)
	assert.Equal(t, "./energy-bot --paper", c.Command)
	assert.Equal(t, "warn", c.Log.Level)
}

func TestValidate(t *testing.T) {
	chdir(t)
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"empty command", `command = "  "`, "command must not be empty"},
		{"zero grace", `start_grace = "0s"`, "start_grace must be positive"},
		{"negative timeout", `stop_timeout = "-1s"`, "stop_timeout must be positive"},
		{"poll above timeout", "stop_timeout = \"2s\"\nstop_poll = \"5s\"", "must not exceed stop_timeout"},
		{"zero tail", `tail_lines = 0`, "tail_lines must be positive"},
		{"bad env", `env = ["NOVALUE"]`, "must be K=V"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTOML(t, tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestProcessEnvMerge(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "base.env")
	second := filepath.Join(dir, "secrets.env")
	require.NoError(t, os.WriteFile(first, []byte("A=1\n#comment\nB=two\nexport C=\"quoted\"\n"), 0o644))
	require.NoError(t, os.WriteFile(second, []byte("B=override\nTOKEN='abc'\n"), 0o644))

	c := &Config{EnvFiles: []string{first, second}, Env: []string{"A=top", "EMPTY="}}
	env, err := c.ProcessEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"A=top", "B=override", "C=quoted", "EMPTY=", "TOKEN=abc"}, env)

	c.EnvFiles = append(c.EnvFiles, filepath.Join(dir, "missing.env"))
	_, err = c.ProcessEnv()
	assert.Error(t, err)
}

func TestSupervisorOptions(t *testing.T) {
	chdir(t)
	path := writeTOML(t, `
command = "./energy-bot"
env = ["MODE=paper"]
handle_file = "state/bot.pid"
log_dir = "out"
stop_timeout = "7s"
`)
	c, err := Load(path)
	require.NoError(t, err)
	o, err := c.SupervisorOptions()
	require.NoError(t, err)

	assert.Equal(t, "energy-bot", o.Name)
	assert.Equal(t, "./energy-bot", o.Process.Command)
	assert.Equal(t, []string{"MODE=paper"}, o.Process.Env)
	assert.Equal(t, "state/bot.pid", o.HandleFile)
	assert.Equal(t, "out", o.Logs.Dir)
	assert.Equal(t, "bot_", o.Logs.Prefix)
	assert.Equal(t, 7*time.Second, o.StopTimeout)
	assert.Nil(t, o.Controller)
	assert.True(t, strings.HasSuffix(o.Logs.PathFor(time.Date(2026, 10, 17, 0, 0, 0, 0, time.Local)), "bot_20261017.log"))
}
