package cfg

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveFilePath expands a leading "~" to the user's home directory
// and makes the result absolute, the same canonicalization gcsfuse's
// CLI applies to every user-supplied path (config file, log file,
// mount point) before storing it.
func ResolveFilePath(path string) (ResolvedPath, error) {
	if path == "" {
		return "", nil
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return ResolvedPath(abs), nil
}
