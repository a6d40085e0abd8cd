// Package atomicwrite writes key material to disk without ever leaving a
// half-written or world-readable file behind.
package atomicwrite

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrExists is returned by WriteSecret when the target exists and
// overwrite is false.
var ErrExists = errors.New("atomicwrite: file already exists")

// WriteSecret writes data to path with mode 0600 via a temp file in the same
// directory and a rename. Existing files are only replaced when overwrite is
// true.
func WriteSecret(path string, data []byte, overwrite bool) (err error) {
	if !overwrite {
		if _, statErr := os.Stat(path); statErr == nil {
			return fmt.Errorf("%w: %s", ErrExists, path)
		} else if !errors.Is(statErr, fs.ErrNotExist) {
			return statErr
		}
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("atomicwrite: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".authkit-*")
	if err != nil {
		return fmt.Errorf("atomicwrite: temp: %w", err)
	}
	name := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(name)
		}
	}()

	// CreateTemp ya crea con 0600; el chmod cubre umask raros.
	if err = tmp.Chmod(0o600); err != nil {
		return fmt.Errorf("atomicwrite: chmod: %w", err)
	}
	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("atomicwrite: write: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("atomicwrite: fsync: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("atomicwrite: close: %w", err)
	}
	if err = os.Rename(name, path); err != nil {
		return fmt.Errorf("atomicwrite: rename: %w", err)
	}
	return nil
}
