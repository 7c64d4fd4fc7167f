package workspace

import (
	"path/filepath"
	"slices"
	"strings"
)

// ThemeDirs are the top level directories of a theme. Anything outside them is not an asset.
var ThemeDirs = []string{
	"assets",
	"blocks",
	"config",
	"layout",
	"locales",
	"sections",
	"snippets",
	"templates",
}

// NormPath cleans a path, converts backslashes to slashes and trims leading slashes.
func NormPath(path string) string {
	path = filepath.Clean(path)
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.TrimLeft(path, "/")
	return path
}

// IsValidKey reports whether key names a file directly or transitively inside one of ThemeDirs.
func IsValidKey(key string) bool {
	if key == "" || strings.Contains(key, "\\") {
		return false
	}
	dir, rest, ok := strings.Cut(key, "/")
	if !ok || rest == "" || strings.HasSuffix(rest, "/") {
		return false
	}
	for _, part := range strings.Split(rest, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return slices.Contains(ThemeDirs, dir)
}
