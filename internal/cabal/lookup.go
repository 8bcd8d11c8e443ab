package cabal

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ManifestExt is the extension of cabal package descriptions.
const ManifestExt = ".cabal"

// PresentableName names the builder in tool-facing output.
const PresentableName = "Cabal builder"

// SourceExtensions lists the file extensions GHC compiles.
var SourceExtensions = []string{".hs", ".lhs"}

// IsSource reports whether path has a compilable Haskell extension.
func IsSource(path string) bool {
	return slices.Contains(SourceExtensions, strings.ToLower(filepath.Ext(path)))
}

// IsManifest reports whether path names a .cabal file.
func IsManifest(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ManifestExt)
}

// Lookup finds the manifest of a content root.
type Lookup struct{}

// FindManifest returns the first regular *.cabal file of contentRoot in
// name order. Subdirectories are not searched.
func (Lookup) FindManifest(contentRoot string) (string, bool, error) {
	entries, err := os.ReadDir(contentRoot)
	if err != nil {
		return "", false, fmt.Errorf("read content root: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !IsManifest(e.Name()) {
			continue
		}
		return filepath.Join(contentRoot, e.Name()), true, nil
	}
	return "", false, nil
}
