package extractor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/launchpad/internal/testutil"
)

// TestProbe_MissingTool reports an unavailable tool, not an extraction failure.
func TestProbe_MissingTool(t *testing.T) {
	t.Parallel()

	e := New("launchpad-no-such-tool")

	err := e.Probe(context.Background())
	require.ErrorIs(t, err, ErrToolUnavailable)
	require.NotErrorIs(t, err, ErrExtractionFailed)
}

// TestProbe_Tar succeeds when tar is installed.
func TestProbe_Tar(t *testing.T) {
	t.Parallel()
	testutil.RequireTool(t, DefaultTool)

	require.NoError(t, New("").Probe(context.Background()))
}

// TestExtract unpacks nested files.
func TestExtract(t *testing.T) {
	t.Parallel()
	testutil.RequireTool(t, DefaultTool)

	dir := t.TempDir()
	archive := filepath.Join(dir, "release.tgz")
	out := filepath.Join(dir, "out")
	require.NoError(t, os.Mkdir(out, 0o755))

	data := testutil.TarGz(t, map[string]testutil.Entry{
		"release-1.0/tool":        {Body: "binary", Mode: 0o755},
		"release-1.0/doc/README":  {Body: "readme"},
		"release-1.0/config.json": {Body: "{}"},
	})
	testutil.WriteFile(t, archive, data)

	require.NoError(t, New("").Extract(context.Background(), archive, out))

	got, err := os.ReadFile(filepath.Join(out, "release-1.0", "tool"))
	require.NoError(t, err)
	require.Equal(t, "binary", string(got))

	_, err = os.Stat(filepath.Join(out, "release-1.0", "doc", "README"))
	require.NoError(t, err)
}

// TestExtract_NotGzip rejects archives in an unsupported format before running tar.
func TestExtract_NotGzip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archive := filepath.Join(dir, "release.tgz")
	testutil.WriteFile(t, archive, []byte("PK\x03\x04 definitely a zip"))

	err := New("launchpad-no-such-tool").Extract(context.Background(), archive, dir)
	require.ErrorIs(t, err, ErrUnsupportedArchive)
}

// TestExtract_Corrupt reports a failed extraction for a truncated archive.
func TestExtract_Corrupt(t *testing.T) {
	t.Parallel()
	testutil.RequireTool(t, DefaultTool)

	dir := t.TempDir()
	archive := filepath.Join(dir, "release.tgz")

	data := testutil.TarGz(t, map[string]testutil.Entry{
		"tool": {Body: string(make([]byte, 64*1024))},
	})
	testutil.WriteFile(t, archive, data[:len(data)/2])

	err := New("").Extract(context.Background(), archive, dir)
	require.ErrorIs(t, err, ErrExtractionFailed)
}
