package process

import (
	"errors"
	"os"
	"os/exec"
	"strings"

	"github.com/google/shlex"
)

// ErrEmptyCommand is returned for a spec without a command line.
var ErrEmptyCommand = errors.New("process requires command")

// Spec describes how the managed executable is launched.
type Spec struct {
	Command string   // command line of the managed executable
	WorkDir string   // optional working directory
	Env     []string // extra K=V pairs appended to the inherited environment
	// Output receives the combined stdout/stderr of the child. It must be a
	// real file so the descriptor stays valid after the supervisor exits.
	// A nil Output discards everything to os.DevNull.
	Output *os.File
}

// Validate reports whether the spec can be launched.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Command) == "" {
		return ErrEmptyCommand
	}
	if strings.ContainsAny(s.Command, "\n\r") {
		return errors.New("command must be a single line")
	}
	if s.WorkDir != "" {
		fi, err := os.Stat(s.WorkDir)
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			return errors.New("work_dir is not a directory: " + s.WorkDir)
		}
	}
	for _, kv := range s.Env {
		if !strings.Contains(kv, "=") {
			return errors.New("env entry must be K=V: " + kv)
		}
	}
	return nil
}

// BuildCommand constructs an *exec.Cmd for the given spec.Command.
// It avoids invoking a shell when not necessary, and it also respects
// an explicit shell invocation already present in the command string
// (e.g., "sh -c 'exec ./bot'"), avoiding double-wrapping with another shell.
func (s Spec) BuildCommand() (*exec.Cmd, error) {
	cmdStr := strings.TrimSpace(s.Command)
	if cmdStr == "" {
		return nil, ErrEmptyCommand
	}
	if afterC, ok := parseExplicitShell(cmdStr); ok {
		return getShellCommand(afterC), nil
	}
	// Fallback: when metacharacters are present, use a shell
	if strings.ContainsAny(cmdStr, "|&;<>*?`$(){}[]~") {
		return getShellCommand(cmdStr), nil
	}
	// Quoting alone does not need a shell.
	parts, err := shlex.Split(cmdStr)
	if err != nil || len(parts) == 0 {
		return getShellCommand(cmdStr), nil
	}
	// #nosec G204
	return exec.Command(parts[0], parts[1:]...), nil
}

// parseExplicitShell detects patterns like "sh -c <ARG>" or "/bin/sh -c <ARG>" at the
// beginning of cmdStr and returns the script after "-c" verbatim.
func parseExplicitShell(cmdStr string) (string, bool) {
	trim := strings.TrimLeft(cmdStr, " \t")
	for _, p := range []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "} {
		if !strings.HasPrefix(trim, p) {
			continue
		}
		after := trim[len(p):]
		// Strip one pair of outer quotes so redirections inside the script still parse.
		if n := len(after); n >= 2 {
			if (after[0] == '\'' && after[n-1] == '\'') || (after[0] == '"' && after[n-1] == '"') {
				after = after[1 : n-1]
			}
		}
		return after, true
	}
	return "", false
}
