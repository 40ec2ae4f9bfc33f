// Package unit renders and writes the systemd unit that hands supervision of
// the managed process to the host service manager.
package unit

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

// Placeholder is replaced by the absolute installation directory.
const Placeholder = "__WORKDIR__"

// DefaultOutput is where Install writes when no path is given.
const DefaultOutput = "energy-bot.service"

//go:embed energy-bot.service
var defaultTemplate string

// ErrNoPlaceholder is returned when a template never mentions Placeholder.
var ErrNoPlaceholder = errors.New("unit template has no " + Placeholder + " placeholder")

// Load returns the template at path, or the embedded one when path is empty.
func Load(path string) (string, error) {
	if path == "" {
		return defaultTemplate, nil
	}
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("read unit template: %w", err)
	}
	return string(b), nil
}

// Render substitutes every Placeholder in tmpl with the absolute form of workDir.
func Render(tmpl, workDir string) (string, error) {
	if !strings.Contains(tmpl, Placeholder) {
		return "", ErrNoPlaceholder
	}
	abs, err := filepath.Abs(workDir)
	if err != nil {
		return "", err
	}
	if strings.ContainsAny(abs, " \t\n") {
		// systemd splits WorkingDirectory/ExecStart on whitespace.
		return "", fmt.Errorf("installation path %q contains whitespace", abs)
	}
	return strings.ReplaceAll(tmpl, Placeholder, abs), nil
}

// Write stores the rendered unit at path atomically.
func Write(path, content string) error {
	if path == "" {
		path = DefaultOutput
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return renameio.WriteFile(path, []byte(content), 0o644)
}

// Commands lists the systemctl invocations that register the unit at path.
// They are printed for the operator and never executed here.
func Commands(path string) []string {
	name := filepath.Base(path)
	return []string{
		fmt.Sprintf("sudo cp %s /etc/systemd/system/%s", path, name),
		"sudo systemctl daemon-reload",
		"sudo systemctl enable --now " + name,
		"systemctl status " + name,
		"journalctl -u " + strings.TrimSuffix(name, ".service") + " -f",
	}
}
