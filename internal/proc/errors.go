package proc

import (
	"errors"
	"fmt"
	"os/exec"
)

// ErrCancelled is returned when a running command was interrupted through
// its context.
var ErrCancelled = errors.New("cancelled by user")

// ExitError reports a command that could not be started or exited with a
// non-zero status.
type ExitError struct {
	Cmdline string
	Status  int
	Program string
	Hint    string
	Err     error
}

func newExitError(cmdline, program string, status int, err error) *ExitError {
	e := &ExitError{Cmdline: cmdline, Status: status, Program: program, Err: err}
	if _, lerr := exec.LookPath(program); status == 127 || lerr != nil {
		e.Hint = fmt.Sprintf("you may need to install `%s`", program)
	}
	return e
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("command failed with status %d: %s", e.Status, e.Cmdline)
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }
