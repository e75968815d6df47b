package release

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

const (
	// VersionPlaceholder is substituted with the release version in URL templates.
	VersionPlaceholder = "{version}"

	// DigestLength is the length of a hex-encoded SHA-256 digest.
	DigestLength = 64
)

var (
	errVersionRequired     = errors.New("release version must be provided")
	errTemplatePlaceholder = errors.New("url template must contain " + VersionPlaceholder)
	errInvalidDigest       = errors.New("digest must be 64 hexadecimal characters")
	errInvalidExecutable   = errors.New("executable name must be a bare file name")
	errNoArchiveName       = errors.New("release url has no file name")
)

// Descriptor identifies the artifact to fetch. It is never mutated after NewDescriptor.
type Descriptor struct {
	// Version is the pinned release identifier.
	Version string
	// URL is the resolved download location of the archive.
	URL string
	// Digest is the expected lowercase hex SHA-256 of the archive.
	Digest string
	// ExecutableName is the file name searched for in the unpacked tree.
	ExecutableName string
}

// NewDescriptor resolves the URL template for version and validates the result.
func NewDescriptor(version, urlTemplate, digest, executable string) (Descriptor, error) {
	version = strings.TrimSpace(version)
	if version == "" {
		return Descriptor{}, errVersionRequired
	}

	if !strings.Contains(urlTemplate, VersionPlaceholder) {
		return Descriptor{}, errTemplatePlaceholder
	}

	digest = NormalizeDigest(digest)
	if err := ValidateDigest(digest); err != nil {
		return Descriptor{}, err
	}

	if err := ValidateExecutableName(executable); err != nil {
		return Descriptor{}, err
	}

	rawURL := strings.ReplaceAll(urlTemplate, VersionPlaceholder, version)
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return Descriptor{}, fmt.Errorf("invalid release url: %w", err)
	}

	return Descriptor{
		Version:        version,
		URL:            rawURL,
		Digest:         digest,
		ExecutableName: executable,
	}, nil
}

// ArchiveName returns the last path segment of the download URL.
func (d Descriptor) ArchiveName() (string, error) {
	parsed, err := url.Parse(d.URL)
	if err != nil {
		return "", fmt.Errorf("parse release url: %w", err)
	}

	name := path.Base(parsed.Path)
	if name == "" || name == "." || name == "/" {
		return "", errNoArchiveName
	}

	return name, nil
}

// NormalizeDigest trims and lowercases a hex digest.
func NormalizeDigest(digest string) string {
	return strings.ToLower(strings.TrimSpace(digest))
}

// ValidateDigest checks that digest is a 64-character hex string.
func ValidateDigest(digest string) error {
	if len(digest) != DigestLength {
		return fmt.Errorf("%w: got %d characters", errInvalidDigest, len(digest))
	}

	if _, err := hex.DecodeString(digest); err != nil {
		return errInvalidDigest
	}

	return nil
}

// ValidateExecutableName rejects empty names and names with path separators.
func ValidateExecutableName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", errInvalidExecutable, name)
	}

	return nil
}
