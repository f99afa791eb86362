package utils

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// SafeJoin joins a slash-separated relative path onto baseDir and refuses
// paths that would escape it.
func SafeJoin(baseDir, relPath string) (string, error) {
	cleaned := path.Clean("/" + strings.ReplaceAll(relPath, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("empty path %q", relPath)
	}

	target := filepath.Join(baseDir, filepath.FromSlash(cleaned))
	rel, err := filepath.Rel(baseDir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes %s", relPath, baseDir)
	}
	return target, nil
}

// EnsureDir ensures the parent directory of path exists
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0755)
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}
