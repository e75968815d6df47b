package verifier

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrDigestMismatch is matched by every *MismatchError.
var ErrDigestMismatch = errors.New("sha256 mismatch")

// MismatchError reports both digests of a failed comparison.
type MismatchError struct {
	// Expected is the operator-supplied digest.
	Expected string
	// Actual is the digest computed from the file.
	Actual string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("sha256 mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// Is makes errors.Is(err, ErrDigestMismatch) succeed.
func (e *MismatchError) Is(target error) bool {
	return target == ErrDigestMismatch
}

// FileDigest streams the file through SHA-256 and returns the lowercase hex digest.
func FileDigest(path string) (string, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("open for digest: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := sha256.New()
	if _, err = io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("calculate digest: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Verify compares the file digest with expected. Both sides are lowercased
// and must match exactly.
func Verify(path, expected string) (string, error) {
	actual, err := FileDigest(path)
	if err != nil {
		return "", err
	}

	expected = strings.ToLower(strings.TrimSpace(expected))
	if expected == "" || actual != expected {
		return actual, &MismatchError{Expected: expected, Actual: actual}
	}

	return actual, nil
}
