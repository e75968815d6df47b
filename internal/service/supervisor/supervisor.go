package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/oshokin/launchpad/internal/logger"
)

// DefaultGracePeriod is how long a signalled child may take to exit.
const DefaultGracePeriod = 10 * time.Second

// State is the child lifecycle state.
type State int

const (
	// StateNotStarted is the initial state.
	StateNotStarted State = iota
	// StateRunning lasts from a successful start until the child is reaped.
	StateRunning
	// StateExited is final.
	StateExited
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

var (
	// ErrAlreadyStarted is returned by a second Run call.
	ErrAlreadyStarted = errors.New("child process already started")
	// ErrStartFailed wraps failures to launch the child.
	ErrStartFailed = errors.New("start child process")
)

// Supervisor launches and waits for one child process.
type Supervisor struct {
	// GracePeriod is the wait between the forwarded signal and a kill.
	GracePeriod time.Duration
	// Stdin, Stdout and Stderr are handed to the child unchanged.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	mu    sync.Mutex
	state State
	pid   int
}

// New returns a supervisor wired to the current process streams.
func New(gracePeriod time.Duration) *Supervisor {
	if gracePeriod <= 0 {
		gracePeriod = DefaultGracePeriod
	}

	return &Supervisor{
		GracePeriod: gracePeriod,
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// PID returns the child process id, or 0 before start.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pid
}

// Run starts executable with args and blocks until it exits. The returned
// code is the child's exit code, or 0 when the child has none (terminated by
// a signal). A non-nil error means the child could not be started or waited for.
func (s *Supervisor) Run(ctx context.Context, executable string, args ...string) (int, error) {
	s.mu.Lock()
	if s.state != StateNotStarted {
		s.mu.Unlock()
		return 0, ErrAlreadyStarted
	}

	//nolint:gosec // The executable was verified and located by the pipeline.
	cmd := exec.Command(executable, args...)
	cmd.Stdin = s.Stdin
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr

	if err := cmd.Start(); err != nil {
		s.state = StateExited
		s.mu.Unlock()

		return 0, fmt.Errorf("%w: %s: %w", ErrStartFailed, executable, err)
	}

	s.state = StateRunning
	s.pid = cmd.Process.Pid
	s.mu.Unlock()

	logChildProcess(ctx, cmd.Process.Pid)

	done := make(chan error, 1)

	go func() {
		done <- cmd.Wait()
	}()

	var waitErr error

	select {
	case waitErr = <-done:
	case <-ctx.Done():
		waitErr = s.stop(ctx, cmd.Process, done)
	}

	s.mu.Lock()
	s.state = StateExited
	s.mu.Unlock()

	return exitCode(ctx, waitErr)
}

// stop forwards the terminate signal, waits up to the grace period and kills
// the child if it is still running. Processes the child had started when the
// interrupt arrived are killed once the child is gone.
func (s *Supervisor) stop(ctx context.Context, process *os.Process, done <-chan error) error {
	logger.InfoKV(ctx, "Interrupt received, stopping child", "pid", process.Pid, "grace_period", s.GracePeriod.String())

	tree := descendants(ctx, process.Pid)

	err := s.terminate(ctx, process, done)

	killDescendants(ctx, tree)
	confirmExited(ctx, process.Pid)

	return err
}

// terminate signals the child and escalates to a kill after the grace period.
func (s *Supervisor) terminate(ctx context.Context, process *os.Process, done <-chan error) error {
	if err := process.Signal(terminateSignal()); err != nil {
		logger.WarnKV(ctx, "Could not signal child, killing it", "pid", process.Pid, "error", err)
		_ = process.Kill()

		return <-done
	}

	timer := time.NewTimer(s.GracePeriod)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		logger.WarnKV(ctx, "Child did not exit in time, killing it", "pid", process.Pid)

		if err := process.Kill(); err != nil {
			logger.ErrorKV(ctx, "Failed to kill child", "pid", process.Pid, "error", err)
		}

		return <-done
	}
}

// terminateSignal is the signal forwarded to the child on interrupt.
func terminateSignal() os.Signal {
	if runtime.GOOS == "windows" {
		return os.Interrupt
	}

	return syscall.SIGTERM
}

// exitCode maps the result of Wait to the child's exit code.
func exitCode(ctx context.Context, waitErr error) (int, error) {
	if waitErr == nil {
		logger.InfoKV(ctx, "Child exited", "code", 0)
		return 0, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return 0, fmt.Errorf("wait for child process: %w", waitErr)
	}

	code := exitErr.ExitCode()
	if code < 0 {
		logger.InfoKV(ctx, "Child terminated without exit code", "state", exitErr.String())
		return 0, nil
	}

	logger.InfoKV(ctx, "Child exited", "code", code)

	return code, nil
}
