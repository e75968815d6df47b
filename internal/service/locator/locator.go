package locator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"
)

// ExecutableMode is applied to the located file.
const ExecutableMode os.FileMode = 0o755

// ErrExecutableNotFound is returned when the tree has no matching file.
var ErrExecutableNotFound = errors.New("executable not found")

// Locate returns the path of the first regular file named name under root.
// Directories are visited depth-first in os.ReadDir order; symbolic links are
// neither matched nor followed.
func Locate(root, name string) (string, error) {
	stack := []string{root}

	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			return "", fmt.Errorf("read dir %s: %w", dir, err)
		}

		var subdirs []string

		for _, entry := range entries {
			fullPath := filepath.Join(dir, entry.Name())

			switch {
			case entry.Type().IsRegular() && entry.Name() == name:
				return fullPath, nil
			case entry.IsDir():
				subdirs = append(subdirs, fullPath)
			}
		}

		// Push in reverse so the first subdirectory is popped first.
		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, subdirs[i])
		}
	}

	return "", fmt.Errorf("%w: %s under %s", ErrExecutableNotFound, name, root)
}

// MakeExecutable rewrites the file in place with ExecutableMode so its owner
// can run it. The replacement is atomic: a sibling copy is written with the
// new mode and renamed over the original.
func MakeExecutable(path string) error {
	source, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("open executable: %w", err)
	}

	defer func() {
		_ = source.Close()
	}()

	options := goupdate.Options{
		TargetPath: path,
		TargetMode: ExecutableMode,
	}

	if err = goupdate.Apply(source, options); err != nil {
		return fmt.Errorf("apply executable mode: %w", err)
	}

	// The umask may have stripped bits from the new file.
	if err = os.Chmod(path, ExecutableMode); err != nil {
		return fmt.Errorf("chmod executable: %w", err)
	}

	return nil
}
