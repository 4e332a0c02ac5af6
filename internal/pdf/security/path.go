package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator confines file access to one configured directory. Paths that
// leave it, directly or through symlinks, are rejected.
type PathValidator struct {
	configuredDirectory string
}

// NewPathValidator creates a new path validator for the given directory
func NewPathValidator(configuredDirectory string) (*PathValidator, error) {
	if configuredDirectory == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}

	absDir, err := filepath.Abs(configuredDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configured directory: %w", err)
	}

	return &PathValidator{
		configuredDirectory: filepath.Clean(absDir),
	}, nil
}

// ValidatePath checks if a path is within the configured directory. The
// path itself need not exist, but the configured directory must.
func (v *PathValidator) ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	isWithin, err := v.IsPathWithinDirectory(path)
	if err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}

	if !isWithin {
		return fmt.Errorf("path is outside configured directory: %s", path)
	}

	return nil
}

// IsPathWithinDirectory checks if a path is within the configured directory.
// Symlinks are resolved on both sides; for a path that does not exist yet the
// nearest existing ancestor is resolved instead.
func (v *PathValidator) IsPathWithinDirectory(path string) (bool, error) {
	realDir, err := filepath.EvalSymlinks(v.configuredDirectory)
	if err != nil {
		return false, fmt.Errorf("configured directory is not accessible: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path: %w", err)
	}
	cleanPath := filepath.Clean(absPath)

	realPath, err := resolveExisting(cleanPath)
	if err != nil {
		return false, err
	}

	return within(cleanPath, v.configuredDirectory, realDir) && within(realPath, v.configuredDirectory, realDir), nil
}

// resolveExisting evaluates symlinks in the longest existing prefix of path
// and appends the remainder unchanged
func resolveExisting(path string) (string, error) {
	var rest []string
	current := path
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to evaluate symlinks: %w", err)
		}
		parent := filepath.Dir(current)
		if parent == current {
			return path, nil
		}
		rest = append([]string{filepath.Base(current)}, rest...)
		current = parent
	}
}

func within(path string, dirs ...string) bool {
	for _, dir := range dirs {
		if path == dir {
			return true
		}
		dirWithSep := dir
		if !strings.HasSuffix(dirWithSep, string(filepath.Separator)) {
			dirWithSep += string(filepath.Separator)
		}
		if strings.HasPrefix(path, dirWithSep) {
			return true
		}
	}
	return false
}

// GetConfiguredDirectory returns the configured directory path
func (v *PathValidator) GetConfiguredDirectory() string {
	return v.configuredDirectory
}

// NormalizePath returns a normalized, absolute path within the configured directory
func (v *PathValidator) NormalizePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	// If path is relative, make it relative to configured directory
	if !filepath.IsAbs(path) {
		path = filepath.Join(v.configuredDirectory, path)
	}

	// Clean and resolve the path
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	// Validate the normalized path
	if err := v.ValidatePath(absPath); err != nil {
		return "", err
	}

	return absPath, nil
}

// ValidateDirectory checks that dirPath is an existing directory within the configured directory
func (v *PathValidator) ValidateDirectory(dirPath string) error {
	if err := v.ValidatePath(dirPath); err != nil {
		return err
	}

	info, err := os.Stat(dirPath)
	if err != nil {
		return fmt.Errorf("cannot access directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", dirPath)
	}

	return nil
}

// SanitizePath removes potentially dangerous characters and validates the path
func (v *PathValidator) SanitizePath(path string) (string, error) {
	// Remove null bytes and other dangerous characters
	path = strings.ReplaceAll(path, "\x00", "")

	// Normalize the path
	normalized, err := v.NormalizePath(path)
	if err != nil {
		return "", err
	}

	return normalized, nil
}
