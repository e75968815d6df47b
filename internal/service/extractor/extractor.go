package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/oshokin/launchpad/internal/logger"
)

const (
	// DefaultTool is the decompression utility used when none is configured.
	DefaultTool = "tar"

	// probeTimeout bounds the `<tool> --version` call.
	probeTimeout = 10 * time.Second

	// maxStderrTail is how much tool output is kept in error messages.
	maxStderrTail = 2048
)

var (
	// ErrToolUnavailable means the utility is not on PATH or does not run.
	ErrToolUnavailable = errors.New("decompression tool unavailable")
	// ErrUnsupportedArchive means the archive is not a gzip stream.
	ErrUnsupportedArchive = errors.New("unsupported archive format")
	// ErrExtractionFailed means the utility ran and failed.
	ErrExtractionFailed = errors.New("extraction failed")
)

// Extractor runs an external tar utility.
type Extractor struct {
	// Tool is the utility name or path.
	Tool string
}

// New creates an Extractor for tool; an empty tool means DefaultTool.
func New(tool string) *Extractor {
	if strings.TrimSpace(tool) == "" {
		tool = DefaultTool
	}

	return &Extractor{Tool: tool}
}

// Probe resolves the tool on PATH and checks that it runs.
func (e *Extractor) Probe(ctx context.Context) error {
	path, err := exec.LookPath(e.Tool)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrToolUnavailable, e.Tool, err)
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	output, err := exec.CommandContext(probeCtx, path, "--version").CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s --version: %w", ErrToolUnavailable, path, err)
	}

	firstLine, _, _ := strings.Cut(strings.TrimSpace(string(output)), "\n")
	logger.InfoKV(ctx, "Decompression tool found", "path", path, "version", firstLine)

	return nil
}

// Extract unpacks archive into dir, which must exist.
func (e *Extractor) Extract(ctx context.Context, archive, dir string) error {
	if err := checkGzip(archive); err != nil {
		return err
	}

	//nolint:gosec // Tool comes from operator configuration, archive from the workspace.
	cmd := exec.CommandContext(ctx, e.Tool, "-xzf", archive, "-C", dir)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return fmt.Errorf("%w: %w", ErrToolUnavailable, err)
		}

		return fmt.Errorf("%w: %s: %w: %s", ErrExtractionFailed, filepath.Base(archive), err, tail(stderr.String()))
	}

	logger.InfoKV(ctx, "Archive extracted", "archive", archive, "dir", dir)

	return nil
}

// checkGzip reads the gzip header of archive.
func checkGzip(archive string) error {
	file, err := os.Open(filepath.Clean(archive))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	defer func() {
		_ = file.Close()
	}()

	reader, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnsupportedArchive, filepath.Base(archive), err)
	}

	return reader.Close()
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderrTail {
		s = s[len(s)-maxStderrTail:]
	}

	return s
}
