package supervisor

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/launchpad/internal/testutil"
)

func script(t *testing.T, body string) string {
	t.Helper()
	testutil.RequireUnix(t)

	path := filepath.Join(t.TempDir(), "child.sh")
	require.NoError(t, os.WriteFile(path, []byte(testutil.Script(body)), 0o700))

	return path
}

func quiet(grace time.Duration) *Supervisor {
	s := New(grace)
	s.Stdin = nil
	s.Stdout = nil
	s.Stderr = nil

	return s
}

// TestRun_PropagatesExitCode returns the child's own exit code.
func TestRun_PropagatesExitCode(t *testing.T) {
	t.Parallel()

	for _, code := range []int{0, 1, 7, 42} {
		s := quiet(time.Second)
		require.Equal(t, StateNotStarted, s.State())

		got, err := s.Run(context.Background(), script(t, "exit "+strconv.Itoa(code)))
		require.NoError(t, err)
		require.Equal(t, code, got)
		require.Equal(t, StateExited, s.State())
		require.NotZero(t, s.PID())
	}
}

// TestRun_InheritsStreamsAndArgs passes arguments and output through unchanged.
func TestRun_InheritsStreamsAndArgs(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer

	s := quiet(time.Second)
	s.Stdout = &stdout
	s.Stdin = bytes.NewBufferString("from-stdin\n")

	code, err := s.Run(context.Background(), script(t, `read line; echo "$1 $2 $line"`), "--config=/x/config.json", "--print-time")
	require.NoError(t, err)
	require.Zero(t, code)
	require.Equal(t, "--config=/x/config.json --print-time from-stdin\n", stdout.String())
}

// TestRun_StartFailure reports a launch error and never runs.
func TestRun_StartFailure(t *testing.T) {
	t.Parallel()

	s := quiet(time.Second)

	_, err := s.Run(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, ErrStartFailed)
	require.Equal(t, StateExited, s.State())
}

// TestRun_OnlyOnce refuses to restart the child.
func TestRun_OnlyOnce(t *testing.T) {
	t.Parallel()

	s := quiet(time.Second)
	path := script(t, "exit 0")

	_, err := s.Run(context.Background(), path)
	require.NoError(t, err)

	_, err = s.Run(context.Background(), path)
	require.ErrorIs(t, err, ErrAlreadyStarted)
}

// TestRun_InterruptForwardsSignal stops the child when the context is cancelled.
func TestRun_InterruptForwardsSignal(t *testing.T) {
	t.Parallel()

	s := quiet(5 * time.Second)
	path := script(t, "exec sleep 30")

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	started := time.Now()
	code, err := s.Run(ctx, path)
	require.NoError(t, err)
	require.Zero(t, code, "signal-terminated child reports 0")
	require.Less(t, time.Since(started), 5*time.Second)
}

// TestRun_InterruptHandledByChild keeps the code chosen by a child that traps SIGTERM.
func TestRun_InterruptHandledByChild(t *testing.T) {
	t.Parallel()

	s := quiet(5 * time.Second)
	path := script(t, `trap 'exit 3' TERM; while :; do sleep 0.1; done`)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(300*time.Millisecond, cancel)

	code, err := s.Run(ctx, path)
	require.NoError(t, err)
	require.Equal(t, 3, code)
}

// TestRun_KillsAfterGracePeriod kills a child that ignores SIGTERM.
func TestRun_KillsAfterGracePeriod(t *testing.T) {
	t.Parallel()

	s := quiet(200 * time.Millisecond)
	path := script(t, `trap '' TERM; while :; do sleep 0.1; done`)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	started := time.Now()
	code, err := s.Run(ctx, path)
	require.NoError(t, err)
	require.Zero(t, code)
	require.Less(t, time.Since(started), 5*time.Second)
}

// TestStateString names every state.
func TestStateString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "not-started", StateNotStarted.String())
	require.Equal(t, "running", StateRunning.String())
	require.Equal(t, "exited", StateExited.String())
}
