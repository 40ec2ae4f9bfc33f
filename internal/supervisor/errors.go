package supervisor

import "errors"

var (
	// ErrAlreadyRunning is returned by Start when a live handle exists.
	ErrAlreadyRunning = errors.New("already running")
	// ErrNotRunning is returned by Stop when there is no live process.
	ErrNotRunning = errors.New("not running")
	// ErrLaunchFailed is returned by Start when the spawned process did not
	// survive the start grace period, or could not be spawned at all.
	ErrLaunchFailed = errors.New("launch failed")
)
