package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Account = "account-1"

	return cfg
}

// TestValidate checks required fields and format validations for Config.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Missing account.
	require.Error(t, Validate(Default()))

	require.NoError(t, Validate(validConfig()))

	// Bad endpoint scheme.
	cfg := validConfig()
	cfg.Endpoints = []string{"http://pool.example.com:80"}
	require.Error(t, Validate(cfg))

	// Bad digest.
	cfg = validConfig()
	cfg.Release.SHA256 = "abc"
	require.Error(t, Validate(cfg))

	// Non-positive print interval.
	cfg = validConfig()
	cfg.Runtime.PrintTime = 0
	require.ErrorIs(t, Validate(cfg), errInvalidPrintTime)

	// Negative redirect bound.
	cfg = validConfig()
	cfg.Fetch.MaxRedirects = -1
	require.ErrorIs(t, Validate(cfg), errInvalidRedirects)

	// Defaults are filled in.
	cfg = validConfig()
	cfg.Workspace.Prefix = ""
	cfg.Supervisor.GracePeriod = 0
	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultWorkspacePrefix, cfg.Workspace.Prefix)
	require.Equal(t, DefaultGracePeriod, cfg.Supervisor.GracePeriod)

	require.ErrorIs(t, Validate(nil), errConfigIsNotSet)
}

// TestApplyEnvironment overrides only non-empty variables.
func TestApplyEnvironment(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		EnvAccount:          "from-env",
		EnvEndpointFallback: "stratum+tcp://fallback.example.com:3333",
		EnvReleaseVersion:   "  ",
		EnvReleaseSHA256:    DefaultSHA256,
		EnvLogLevel:         "debug",
	}

	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := Default()
	primary := cfg.Endpoints[0]

	ApplyEnvironment(cfg, lookup)

	require.Equal(t, "from-env", cfg.Account)
	require.Equal(t, primary, cfg.Endpoints[0])
	require.Equal(t, "stratum+tcp://fallback.example.com:3333", cfg.Endpoints[1])
	require.Equal(t, DefaultReleaseVersion, cfg.Release.Version)
	require.Equal(t, "debug", cfg.LogLevel)
}

// TestApplyEnvironment_GrowsEndpointList fills missing slots when the file lists fewer endpoints.
func TestApplyEnvironment_GrowsEndpointList(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Endpoints = nil

	ApplyEnvironment(cfg, func(key string) (string, bool) {
		if key == EnvEndpointPrimary {
			return "stratum+ssl://primary.example.com:443", true
		}

		return "", false
	})

	require.Equal(t, []string{"stratum+ssl://primary.example.com:443"}, cfg.Endpoints)
}

// TestApplyEnvironment_AltWithShortList appends the alternate endpoint instead of leaving gaps.
func TestApplyEnvironment_AltWithShortList(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Endpoints = []string{"stratum+tcp://one.example:1"}

	ApplyEnvironment(cfg, func(key string) (string, bool) {
		if key == EnvEndpointAlt {
			return "stratum+tcp://alt.example:2", true
		}

		return "", false
	})

	require.Equal(t, []string{"stratum+tcp://one.example:1", "stratum+tcp://alt.example:2"}, cfg.Endpoints)
	require.NoError(t, Validate(cfg))
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
//
//nolint:paralleltest // Load reads the process environment.
func TestSaveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	cfg := validConfig()
	cfg.Runtime.PrintTime = 30 * time.Second
	cfg.Runtime.HugePages = false
	cfg.Fetch.Timeout = time.Minute

	require.NoError(t, Save(path, cfg))

	for _, key := range []string{EnvAccount, EnvEndpointPrimary, EnvEndpointFallback, EnvEndpointAlt,
		EnvReleaseVersion, EnvReleaseSHA256, EnvLogLevel} {
		t.Setenv(key, "")
	}

	loaded, err := Load(path, true)
	require.NoError(t, err)
	require.Equal(t, cfg.Account, loaded.Account)
	require.Equal(t, cfg.Endpoints, loaded.Endpoints)
	require.Equal(t, 30*time.Second, loaded.Runtime.PrintTime)
	require.False(t, loaded.Runtime.HugePages)
	require.Equal(t, time.Minute, loaded.Fetch.Timeout)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())
}

// TestLoad_MissingFile tolerates an absent default file but not an explicit one.
//
//nolint:paralleltest // Load reads the process environment.
func TestLoad_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	t.Setenv(EnvAccount, "account-1")

	cfg, err := Load(missing, false)
	require.NoError(t, err)
	require.Equal(t, "account-1", cfg.Account)

	_, err = Load(missing, true)
	require.Error(t, err)
}
