package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileNames lists the accepted workspace file names in priority order.
var FileNames = []string{"cabalrun.toml", "cabalrun.yaml", "cabalrun.yml"}

// FindWorkspace walks up from startDir to locate a workspace file.
func FindWorkspace(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		for _, name := range FileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, true, nil
			} else if !errors.Is(err, os.ErrNotExist) {
				return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}
