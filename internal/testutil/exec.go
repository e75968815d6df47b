package testutil

import (
	"runtime"
	"testing"
)

// RequireUnix skips tests that rely on POSIX shells and signals.
func RequireUnix(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

// Script returns the contents of a /bin/sh script with the given body.
func Script(body string) string {
	return "#!/bin/sh\n" + body + "\n"
}
