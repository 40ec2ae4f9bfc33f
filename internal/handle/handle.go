// Package handle persists the identity of the managed process between
// supervisor invocations. The record is a single file holding the pid as
// decimal text and nothing else.
package handle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
)

// ErrInvalid is returned by Read when the file exists but does not hold a
// positive decimal pid.
var ErrInvalid = errors.New("invalid handle file")

// File is the handle record at a fixed path. It is not locked: concurrent
// writers race and the last rename wins.
type File struct {
	Path string
}

// Read returns the stored pid. ok is false when no handle file exists.
func (f File) Read() (pid int, ok bool, err error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, err
	}
	// Tolerate a trailing newline written by hand or by older tooling.
	first, _, _ := strings.Cut(string(b), "\n")
	pid, err = strconv.Atoi(strings.TrimSpace(first))
	if err != nil || pid <= 0 {
		return 0, true, fmt.Errorf("%w %s: %q", ErrInvalid, f.Path, strings.TrimSpace(string(b)))
	}
	return pid, true, nil
}

// Write records pid. The content is written to a temporary file, synced and
// renamed over Path, so readers never observe a partially written pid.
func (f File) Write(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("refusing to record pid %d", pid)
	}
	if dir := filepath.Dir(f.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}
	return renameio.WriteFile(f.Path, []byte(strconv.Itoa(pid)), 0o644)
}

// Remove deletes the handle file. A missing file is not an error.
func (f File) Remove() error {
	err := os.Remove(f.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
