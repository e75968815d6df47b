package runtimecfg

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/launchpad/internal/domain/endpoint"
)

func testSet(t *testing.T, label string) endpoint.Set {
	t.Helper()

	set, err := endpoint.BuildSet([]string{
		"stratum+ssl://primary.example.com:20128",
		"stratum+tcp://fallback.example.com:10128",
		"stratum+ssl://alt.example.com:20128",
	}, "account-1", label, true)
	require.NoError(t, err)

	return set
}

// TestWriteRead_Shape checks endpoints, order, labels and flags after parsing back.
func TestWriteRead_Shape(t *testing.T) {
	t.Parallel()

	set := testSet(t, "worker-1700000000000-abcd1234")
	flags := Flags{Autosave: true, CPUEnabled: true, HugePages: false}

	doc, err := Build(set, flags, nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), Filename)
	require.NoError(t, Write(path, doc))

	loaded, err := Read(path)
	require.NoError(t, err)
	require.True(t, loaded.Autosave)
	require.True(t, loaded.CPU.Enabled)
	require.False(t, loaded.CPU.HugePages)
	require.Len(t, loaded.Pools, len(set))

	for i, pool := range loaded.Pools {
		require.Equal(t, set[i].URL(), pool.URL)
		require.Equal(t, "account-1", pool.User)
		require.Equal(t, "worker-1700000000000-abcd1234", pool.Pass)
		require.True(t, pool.Keepalive)
	}

	require.Nil(t, loaded.Extra)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(fileMode), info.Mode().Perm())
}

// TestWrite_RawKeys checks the serialized key names the launched program reads.
func TestWrite_RawKeys(t *testing.T) {
	t.Parallel()

	doc, err := Build(testSet(t, "w"), Flags{HugePages: true}, nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), Filename)
	require.NoError(t, Write(path, doc))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.ElementsMatch(t, []string{"autosave", "cpu", "pools"}, keys(raw))

	cpu, ok := raw["cpu"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, true, cpu["huge-pages"])

	pools, ok := raw["pools"].([]any)
	require.True(t, ok)

	first, ok := pools[0].(map[string]any)
	require.True(t, ok)
	require.ElementsMatch(t, []string{"url", "user", "pass", "keepalive"}, keys(first))
}

// TestBuild_ExtraPassThrough copies extra keys but keeps owned keys authoritative.
func TestBuild_ExtraPassThrough(t *testing.T) {
	t.Parallel()

	extra, err := ParseExtra([]byte(`{
		// operator tweaks
		"donate-level": 1,
		"http": {"enabled": false,},
		"autosave": false,
	}`))
	require.NoError(t, err)

	doc, err := Build(testSet(t, "w"), Flags{Autosave: true}, extra)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), Filename)
	require.NoError(t, Write(path, doc))

	loaded, err := Read(path)
	require.NoError(t, err)
	require.True(t, loaded.Autosave)
	require.JSONEq(t, `1`, string(loaded.Extra["donate-level"]))
	require.JSONEq(t, `{"enabled": false}`, string(loaded.Extra["http"]))
	require.NotContains(t, loaded.Extra, "autosave")
}

// TestParseExtra_RejectsNonObject refuses arrays and scalars.
func TestParseExtra_RejectsNonObject(t *testing.T) {
	t.Parallel()

	_, err := ParseExtra([]byte(`[1, 2]`))
	require.ErrorIs(t, err, errExtraNotAnObj)

	_, err = ParseExtra([]byte(`// nothing`))
	require.ErrorIs(t, err, errExtraNotAnObj)
}

// TestLoadExtra reads files and treats an empty path as no extras.
func TestLoadExtra(t *testing.T) {
	t.Parallel()

	extra, err := LoadExtra("")
	require.NoError(t, err)
	require.Nil(t, extra)

	path := filepath.Join(t.TempDir(), "extra.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{"print-time": 30}`), 0o600))

	extra, err = LoadExtra(path)
	require.NoError(t, err)
	require.Contains(t, extra, "print-time")

	_, err = LoadExtra(filepath.Join(t.TempDir(), "absent.jsonc"))
	require.Error(t, err)
}

// TestBuild_EmptySet needs at least one endpoint.
func TestBuild_EmptySet(t *testing.T) {
	t.Parallel()

	_, err := Build(nil, Flags{}, nil)
	require.ErrorIs(t, err, errNoPools)
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}

	return out
}
