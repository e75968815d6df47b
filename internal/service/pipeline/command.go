package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/launchpad/internal/config"
	"github.com/oshokin/launchpad/internal/domain/endpoint"
	"github.com/oshokin/launchpad/internal/domain/release"
	"github.com/oshokin/launchpad/internal/logger"
	"github.com/oshokin/launchpad/internal/service/extractor"
	"github.com/oshokin/launchpad/internal/service/fetcher"
	"github.com/oshokin/launchpad/internal/service/locator"
	"github.com/oshokin/launchpad/internal/service/runtimecfg"
	"github.com/oshokin/launchpad/internal/service/supervisor"
	"github.com/oshokin/launchpad/internal/service/verifier"
	"github.com/oshokin/launchpad/internal/version"
)

// unpackDirName is the workspace subdirectory receiving the archive contents.
const unpackDirName = "unpacked"

var (
	errSettingsNotInitialised = errors.New("settings are not initialized")
	errArtifactNotVerified    = errors.New("artifact is not verified")
)

// Fetcher downloads a URL into a local file.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

// Extractor checks for and runs the decompression utility.
type Extractor interface {
	Probe(ctx context.Context) error
	Extract(ctx context.Context, archive, dir string) error
}

// Launcher runs the executable and returns its exit code.
type Launcher interface {
	Run(ctx context.Context, executable string, args ...string) (int, error)
}

// Options are inputs accepted by the pipeline entry point. Nil stages are
// built from the configuration.
type Options struct {
	// DryRun stops after the runtime configuration is written.
	DryRun bool
	// Fetcher overrides the HTTP downloader.
	Fetcher Fetcher
	// Extractor overrides the tar-based extractor.
	Extractor Extractor
	// Launcher overrides the process supervisor.
	Launcher Launcher
	// Now overrides the clock used for session labels.
	Now func() time.Time
}

// runner holds the state of a single pipeline execution.
// Callers go through Run(ctx, cfg, opts).
type runner struct {
	cfg        *config.Config     // Immutable settings of this run.
	opts       Options            // Stages and switches.
	runID      string             // Random identifier of this run.
	descriptor release.Descriptor // What to fetch and how to check it.
	workspace  *Workspace         // Owns every file created by the run.
	artifact   *release.Artifact  // Downloaded archive and its lifecycle.
	executable string             // Located executable path.
	configPath string             // Runtime configuration path.
}

// Run executes the pipeline and is the public entry point for the CLI.
// A child that exits non-zero yields an *ExitError with its code.
func Run(ctx context.Context, cfg *config.Config, opts *Options) error {
	runID := uuid.NewString()

	// Set context with logger name and run id for tracking.
	ctx = logger.WithName(ctx, "launchpad")
	ctx = logger.WithKV(ctx, "run_id", runID)

	u, err := newRunner(ctx, cfg, opts, runID)
	if err != nil {
		logger.ErrorKV(ctx, "Launch aborted", "error", err)
		return err
	}

	defer u.cleanup(ctx)

	code, err := u.Run(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Launch failed", "error", err)
		return err
	}

	if code != 0 {
		return &ExitError{Code: code}
	}

	logger.Info(ctx, "Launch completed")

	return nil
}

// newRunner builds the descriptor, fills missing stages and creates the workspace.
func newRunner(ctx context.Context, cfg *config.Config, opts *Options, runID string) (*runner, error) {
	if cfg == nil {
		return nil, errSettingsNotInitialised
	}

	u := &runner{
		cfg:   cfg,
		runID: runID,
	}

	if opts != nil {
		u.opts = *opts
	}

	u.fillDefaults()

	descriptor, err := cfg.Descriptor()
	if err != nil {
		return nil, fmt.Errorf("release descriptor: %w", err)
	}

	u.descriptor = descriptor

	archiveName, err := descriptor.ArchiveName()
	if err != nil {
		return nil, err
	}

	workspace, err := NewWorkspace(cfg.Workspace.Dir, cfg.Workspace.Prefix)
	if err != nil {
		return nil, err
	}

	u.workspace = workspace
	u.artifact = release.NewArtifact(workspace.Path(archiveName))

	logger.InfoKV(ctx, "Workspace created",
		"dir", workspace.Dir, "launcher_version", version.Short(), "release", descriptor.Version)

	return u, nil
}

// fillDefaults builds the stages the caller did not provide.
func (u *runner) fillDefaults() {
	if u.opts.Fetcher == nil {
		u.opts.Fetcher = fetcher.New(
			fetcher.WithMaxRedirects(u.cfg.Fetch.MaxRedirects),
			fetcher.WithTimeout(u.cfg.Fetch.Timeout),
			fetcher.WithPlainHTTP(u.cfg.Fetch.AllowPlainHTTP),
		)
	}

	if u.opts.Extractor == nil {
		u.opts.Extractor = extractor.New(u.cfg.Tools.Tar)
	}

	if u.opts.Launcher == nil {
		u.opts.Launcher = supervisor.New(u.cfg.Supervisor.GracePeriod)
	}

	if u.opts.Now == nil {
		u.opts.Now = time.Now
	}
}

// Run executes the workflow for this runner instance:
// 1) Download the archive.
// 2) Verify its digest.
// 3) Unpack it.
// 4) Locate the executable.
// 5) Write the runtime configuration.
// 6) Launch and wait for the child.
func (u *runner) Run(ctx context.Context) (int, error) {
	logger.InfoKV(ctx, "Downloading release archive", "url", u.descriptor.URL)

	if err := u.download(ctx); err != nil {
		return 0, fmt.Errorf("download archive: %w", err)
	}

	logger.Info(ctx, "Verifying the SHA-256 of the archive")

	if err := u.verify(ctx); err != nil {
		return 0, fmt.Errorf("verify archive: %w", err)
	}

	logger.Info(ctx, "Unpacking the archive")

	unpackDir, err := u.unpack(ctx)
	if err != nil {
		return 0, fmt.Errorf("unpack archive: %w", err)
	}

	logger.InfoKV(ctx, "Looking for the executable", "name", u.descriptor.ExecutableName)

	if err = u.locate(ctx, unpackDir); err != nil {
		return 0, fmt.Errorf("locate executable: %w", err)
	}

	logger.Info(ctx, "Writing the runtime configuration")

	if err = u.writeRuntimeConfig(ctx); err != nil {
		return 0, fmt.Errorf("write runtime configuration: %w", err)
	}

	if u.opts.DryRun {
		logger.Info(ctx, "Dry run requested, not starting the executable")
		return 0, nil
	}

	logger.InfoKV(ctx, "Starting executable (press Ctrl-C to stop)", "path", u.executable)

	code, err := u.opts.Launcher.Run(ctx, u.executable, u.launchArgs()...)
	if err != nil {
		return 0, fmt.Errorf("run executable: %w", err)
	}

	return code, nil
}

// download fetches the archive into the workspace.
func (u *runner) download(ctx context.Context) error {
	if err := u.artifact.MarkDownloading(); err != nil {
		return err
	}

	if err := u.opts.Fetcher.Fetch(ctx, u.descriptor.URL, u.artifact.Path); err != nil {
		return err
	}

	return u.artifact.MarkDownloaded()
}

// verify is the digest gate: nothing past this point runs on a mismatch.
func (u *runner) verify(ctx context.Context) error {
	actual, err := verifier.Verify(u.artifact.Path, u.descriptor.Digest)
	if err != nil {
		if errors.Is(err, verifier.ErrDigestMismatch) {
			if markErr := u.artifact.MarkRejected(); markErr != nil {
				return errors.Join(err, markErr)
			}
		}

		return err
	}

	logger.InfoKV(ctx, "SHA-256 OK", "sha256", actual)

	return u.artifact.MarkVerified()
}

// unpack probes the decompression tool and extracts the verified archive.
func (u *runner) unpack(ctx context.Context) (string, error) {
	if !u.artifact.Verified() {
		return "", fmt.Errorf("%w: state %s", errArtifactNotVerified, u.artifact.State())
	}

	if err := u.opts.Extractor.Probe(ctx); err != nil {
		return "", err
	}

	unpackDir, err := u.workspace.Mkdir(unpackDirName)
	if err != nil {
		return "", err
	}

	if err = u.opts.Extractor.Extract(ctx, u.artifact.Path, unpackDir); err != nil {
		return "", err
	}

	return unpackDir, nil
}

// locate finds the executable and makes it runnable.
func (u *runner) locate(ctx context.Context, unpackDir string) error {
	executable, err := locator.Locate(unpackDir, u.descriptor.ExecutableName)
	if err != nil {
		return err
	}

	if err = locator.MakeExecutable(executable); err != nil {
		return err
	}

	u.executable = executable
	logger.InfoKV(ctx, "Found executable", "path", executable)

	return nil
}

// writeRuntimeConfig builds the endpoint set for this run and persists the document.
func (u *runner) writeRuntimeConfig(ctx context.Context) error {
	label := endpoint.NewSessionLabel(u.opts.Now(), u.runID)

	set, err := endpoint.BuildSet(u.cfg.Endpoints, u.cfg.Account, label, u.cfg.Runtime.Keepalive)
	if err != nil {
		return err
	}

	extra, err := runtimecfg.LoadExtra(u.cfg.Runtime.ExtraConfig)
	if err != nil {
		return err
	}

	flags := runtimecfg.Flags{
		Autosave:   u.cfg.Runtime.Autosave,
		CPUEnabled: u.cfg.Runtime.CPUEnabled,
		HugePages:  u.cfg.Runtime.HugePages,
	}

	doc, err := runtimecfg.Build(set, flags, extra)
	if err != nil {
		return err
	}

	u.configPath = u.workspace.Path(runtimecfg.Filename)
	if err = runtimecfg.Write(u.configPath, doc); err != nil {
		return err
	}

	primary, _ := set.Primary()
	logger.InfoKV(ctx, "Runtime configuration written",
		"path", u.configPath, "endpoints", len(set), "primary", primary.URL(), "session", label)

	return nil
}

// launchArgs are the fixed invocation flags of the executable.
func (u *runner) launchArgs() []string {
	return []string{
		"--config=" + u.configPath,
		"--print-time",
		strconv.Itoa(int(u.cfg.Runtime.PrintTime / time.Second)),
	}
}

// cleanup removes the workspace and everything in it.
func (u *runner) cleanup(ctx context.Context) {
	u.workspace.Destroy(context.WithoutCancel(ctx))
	logger.Info(ctx, "The launcher has been stopped")
}
