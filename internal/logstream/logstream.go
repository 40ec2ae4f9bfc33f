// Package logstream manages the per-date capture files of the managed
// process's combined output.
package logstream

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Default layout: logs/bot_<YYYYMMDD>.log
const (
	DefaultDir    = "logs"
	DefaultPrefix = "bot_"
	dateLayout    = "20060102"
)

// Stream selects the capture file by calendar date. Files are append-only
// and never rotated while a process writes to them; a new date yields a new
// file on the next spawn.
type Stream struct {
	Dir    string
	Prefix string
	Now    func() time.Time // defaults to time.Now
}

func (s Stream) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Stream) dir() string {
	if s.Dir == "" {
		return DefaultDir
	}
	return s.Dir
}

// PathFor returns the capture file for the local calendar date of t.
func (s Stream) PathFor(t time.Time) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return filepath.Join(s.dir(), prefix+t.Format(dateLayout)+".log")
}

// Current returns today's capture file path.
func (s Stream) Current() string { return s.PathFor(s.now()) }

// Open returns today's capture file opened for appending, creating the
// directory and an empty file when needed.
func (s Stream) Open() (*os.File, error) {
	if err := os.MkdirAll(s.dir(), 0o750); err != nil {
		return nil, err
	}
	// #nosec G302 G304
	return os.OpenFile(s.Current(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// Tail returns at most n trailing lines of the file at path, without their
// line terminators. A missing file yields os.ErrNotExist.
func Tail(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	// #nosec G304
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	ring := make([]string, n)
	count := 0
	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			ring[count%n] = trimEOL(line)
			count++
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
	}
	if count <= n {
		return ring[:count], nil
	}
	out := make([]string, 0, n)
	start := count % n
	out = append(out, ring[start:]...)
	out = append(out, ring[:start]...)
	return out, nil
}

func trimEOL(s string) string {
	if l := len(s); l > 0 && s[l-1] == '\n' {
		s = s[:l-1]
		if l := len(s); l > 0 && s[l-1] == '\r' {
			s = s[:l-1]
		}
	}
	return s
}
