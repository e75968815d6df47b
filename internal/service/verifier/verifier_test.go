package verifier

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "artifact.bin")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

// TestFileDigest matches the reference implementation for several sizes.
func TestFileDigest(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, 1, 4095, 32 * 1024, 1<<20 + 7} {
		data := make([]byte, size)
		_, err := rand.Read(data)
		require.NoError(t, err)

		sum := sha256.Sum256(data)

		got, err := FileDigest(writeFile(t, data))
		require.NoError(t, err)
		require.Equal(t, hex.EncodeToString(sum[:]), got)
	}
}

// TestVerify accepts an exact match regardless of expected digest case.
func TestVerify(t *testing.T) {
	t.Parallel()

	data := []byte("release archive")
	sum := sha256.Sum256(data)
	expected := hex.EncodeToString(sum[:])
	path := writeFile(t, data)

	actual, err := Verify(path, strings.ToUpper(expected))
	require.NoError(t, err)
	require.Equal(t, expected, actual)
}

// TestVerify_FlippedByte always reports a mismatch after a single byte changes.
func TestVerify_FlippedByte(t *testing.T) {
	t.Parallel()

	data := make([]byte, 2048)
	_, err := rand.Read(data)
	require.NoError(t, err)

	sum := sha256.Sum256(data)
	expected := hex.EncodeToString(sum[:])

	for _, offset := range []int{0, 1, 1023, 2047} {
		corrupted := append([]byte(nil), data...)
		corrupted[offset] ^= 0x01

		_, err = Verify(writeFile(t, corrupted), expected)
		require.ErrorIs(t, err, ErrDigestMismatch)

		var mismatch *MismatchError
		require.ErrorAs(t, err, &mismatch)
		require.Equal(t, expected, mismatch.Expected)
	}
}

// TestVerify_NoPrefixMatch rejects a truncated or empty expected digest.
func TestVerify_NoPrefixMatch(t *testing.T) {
	t.Parallel()

	data := []byte("x")
	sum := sha256.Sum256(data)
	full := hex.EncodeToString(sum[:])
	path := writeFile(t, data)

	_, err := Verify(path, full[:32])
	require.ErrorIs(t, err, ErrDigestMismatch)

	_, err = Verify(path, "")
	require.ErrorIs(t, err, ErrDigestMismatch)
}

// TestVerify_MissingFile returns an I/O error, not a mismatch.
func TestVerify_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Verify(filepath.Join(t.TempDir(), "absent"), strings.Repeat("a", 64))
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrDigestMismatch)
}
