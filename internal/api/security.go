// Package api provides the highlight library REST API server.
package api

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/FocuswithJustin/marginalia/internal/validation"
)

var (
	// ErrPathTraversal is returned when path traversal is detected
	ErrPathTraversal = errors.New("path traversal detected")
	// ErrInvalidPath is returned when the path is invalid
	ErrInvalidPath = errors.New("invalid path")
	// ErrPathOutsideBase is returned when path escapes base directory
	ErrPathOutsideBase = errors.New("path outside allowed directory")
)

// ValidatePath validates a user-supplied library path to prevent path
// traversal attacks. Library paths arrive in URLs and are joined onto the
// library root, so they must never contain "..", be absolute, or resolve
// outside the base directory.
func ValidatePath(baseDir, userPath string) (string, error) {
	if userPath == "" {
		return "", fmt.Errorf("%w: path cannot be empty", ErrInvalidPath)
	}

	// Fast rejection before cleaning
	if strings.Contains(userPath, "..") {
		return "", fmt.Errorf("%w: path contains '..'", ErrPathTraversal)
	}

	// Cleaning catches obfuscated attempts like "foo/./../../bar"
	cleanPath := filepath.Clean(userPath)

	if strings.Contains(cleanPath, "..") {
		return "", fmt.Errorf("%w: path contains '..' after cleaning", ErrPathTraversal)
	}

	if filepath.IsAbs(cleanPath) {
		return "", fmt.Errorf("%w: absolute paths not allowed", ErrInvalidPath)
	}

	safePath, err := validation.SanitizePath(baseDir, cleanPath)
	if err != nil {
		if errors.Is(err, validation.ErrPathTraversal) {
			return "", fmt.Errorf("%w: %v", ErrPathTraversal, err)
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	// Verify the resolved path stays inside the library root. filepath.Rel
	// avoids false positives from similar directory names that a string
	// prefix check would allow.
	fullPath := filepath.Join(baseDir, safePath)

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base directory: %w", err)
	}

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	relPath, err := filepath.Rel(absBase, absPath)
	if err != nil {
		return "", fmt.Errorf("%w: path resolution failed", ErrPathOutsideBase)
	}

	if strings.HasPrefix(relPath, "..") {
		return "", fmt.Errorf("%w: path escapes base directory", ErrPathOutsideBase)
	}

	return safePath, nil
}

// ValidateID validates a highlight id used as a URL component. IDs must be
// single path components with no separators or reserved names.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: ID cannot be empty", ErrInvalidPath)
	}

	if strings.ContainsAny(id, "/\\") {
		return fmt.Errorf("%w: ID cannot contain path separators", ErrInvalidPath)
	}

	if err := validation.ValidateFilename(id); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	// Cleaned version must equal the original; catches edge cases where
	// normalization changes the value.
	cleaned := filepath.Base(filepath.Clean(id))
	if cleaned != id {
		return fmt.Errorf("%w: ID normalization changed value", ErrInvalidPath)
	}

	return nil
}
