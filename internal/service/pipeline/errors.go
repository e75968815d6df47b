package pipeline

import (
	"errors"
	"fmt"
)

// ExitError carries a non-zero child exit code up to the CLI.
type ExitError struct {
	// Code is the child's exit code.
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("child exited with code %d", e.Code)
}

// ExitCode returns the code the process should exit with.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// ExitCode maps the result of Run to a process exit status: 0 for nil, the
// child's code for an *ExitError and 1 for every other failure.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	return 1
}
