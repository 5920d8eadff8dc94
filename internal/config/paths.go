package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/vyrodovalexey/httpvec/internal/util"
)

// BuiltinPrefix marks an inspector location compiled into the binary
// rather than a filesystem path.
const BuiltinPrefix = "builtin:"

// IsBuiltinLocation reports whether path names compiled-in inspectors.
func IsBuiltinLocation(path string) bool {
	return strings.HasPrefix(path, BuiltinPrefix)
}

// ExpandHome replaces a leading "~" with the current user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// ResolvePath expands "~", makes path absolute and checks that it exists.
func ResolvePath(path string) (string, error) {
	if path == "" {
		return "", util.NewConfigError("", "path is empty")
	}

	abs, err := filepath.Abs(ExpandHome(path))
	if err != nil {
		return "", util.NewConfigErrorWithCause(path, "failed to resolve path", err)
	}

	if _, err := os.Stat(abs); err != nil {
		return "", util.NewConfigErrorWithCause(path, "path does not exist", err)
	}

	return abs, nil
}

// ShortenPath returns path relative to the working directory when it
// lies below it, for log output.
func ShortenPath(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(wd, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}
