package logstream

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"
)

// ErrRemoved is returned by Follow when the followed file is removed or renamed.
var ErrRemoved = errors.New("log file removed")

// Follow copies bytes appended to the file at path into w until ctx is done,
// starting from the current end of the file. Cancellation is a clean exit.
func Follow(ctx context.Context, path string, w io.Writer) error {
	// #nosec G304
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		_ = f.Close()
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		_ = f.Close()
		return err
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		_ = f.Close()
		return err
	}

	sctx := stopper.WithContext(ctx)
	sctx.Defer(func() {
		_ = watcher.Close()
		_ = f.Close()
	})

	var (
		mu      sync.Mutex
		loopErr error
	)
	done := make(chan struct{})
	sctx.Go(func(sctx *stopper.Context) error {
		defer close(done)
		err := followLoop(ctx, sctx, watcher, path, f, w)
		mu.Lock()
		loopErr = err
		mu.Unlock()
		return err
	})

	select {
	case <-ctx.Done():
	case <-done:
	}
	sctx.Stop(100 * time.Millisecond)
	_ = sctx.Wait()

	mu.Lock()
	defer mu.Unlock()
	return loopErr
}

func followLoop(ctx context.Context, sctx *stopper.Context, watcher *fsnotify.Watcher, path string, f *os.File, w io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sctx.Stopping():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Write) {
				if _, err := io.Copy(w, f); err != nil {
					return err
				}
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) || (ev.Has(fsnotify.Chmod) && gone(path)) {
				// Flush whatever was written before the file went away.
				_, _ = io.Copy(w, f)
				return ErrRemoved
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

// gone reports whether path was unlinked. While we hold the file open inotify
// only reports the link count change as a Chmod event.
func gone(path string) bool {
	_, err := os.Stat(path)
	return errors.Is(err, os.ErrNotExist)
}
