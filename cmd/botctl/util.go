package main

import (
	"fmt"
	"strings"
)

// exitError carries a process exit code. The human-readable outcome has
// already been printed, so run does not print it again.
type exitError struct {
	code int
}

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// usageError marks command-line mistakes; run prints usage for them.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func isUnknownCommand(err error) bool {
	return strings.HasPrefix(err.Error(), "unknown command")
}
