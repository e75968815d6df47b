// Package testutil holds helpers shared by package and integration tests.
package testutil

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"os/exec"
	"path"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

// Entry is one regular file in a test archive.
type Entry struct {
	// Body is the file contents.
	Body string
	// Mode is the file mode; zero means 0o644.
	Mode int64
}

// TarGz builds a gzip-compressed tar archive in memory. Parent directories
// are added for every nested path.
func TarGz(t *testing.T, entries map[string]Entry) []byte {
	t.Helper()

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}

	sort.Strings(names)

	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	dirs := make(map[string]struct{})
	modTime := time.Unix(1700000000, 0)

	for _, name := range names {
		for dir := path.Dir(name); dir != "." && dir != "/"; dir = path.Dir(dir) {
			if _, seen := dirs[dir]; seen {
				continue
			}

			dirs[dir] = struct{}{}

			require.NoError(t, tw.WriteHeader(&tar.Header{
				Typeflag: tar.TypeDir,
				Name:     strings.TrimSuffix(dir, "/") + "/",
				Mode:     0o755,
				ModTime:  modTime,
			}))
		}

		entry := entries[name]

		mode := entry.Mode
		if mode == 0 {
			mode = 0o644
		}

		require.NoError(t, tw.WriteHeader(&tar.Header{
			Typeflag: tar.TypeReg,
			Name:     name,
			Mode:     mode,
			Size:     int64(len(entry.Body)),
			ModTime:  modTime,
		}))

		_, err := tw.Write([]byte(entry.Body))
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	return buf.Bytes()
}

// WriteFile writes data to path and returns its hex SHA-256.
func WriteFile(t *testing.T, path string, data []byte) string {
	t.Helper()

	require.NoError(t, os.WriteFile(path, data, 0o600))

	return Digest(data)
}

// Digest returns the lowercase hex SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:])
}

// RequireTool skips the test when name is not on PATH.
func RequireTool(t *testing.T, name string) {
	t.Helper()

	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
}
