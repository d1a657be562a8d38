// Package filex holds small filesystem helpers.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDir returns the absolute path of dir, creating it (owner-only
// permissions) when missing. A relative dir is resolved against the working
// directory; an empty dir means os.TempDir, which is returned as is.
func EnsureDir(dir string) (string, error) {
	if dir == "" {
		return os.TempDir(), nil
	}

	if !filepath.IsAbs(dir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		dir = filepath.Join(cwd, dir)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}
