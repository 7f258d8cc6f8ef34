package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidateDesignName validates a design name for safety and correctness.
// Design names become directory components in the build tree and filenames
// in outputs/, so names that could escape those directories are rejected.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters
//   - No path traversal sequences (.., //, etc.)
//   - No null bytes
//   - Maximum length of 256 characters
func ValidateDesignName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "design name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeInvalidInput, "design name too long (max 256 characters)")
	}

	// Check for control characters and null bytes
	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "design name contains invalid control characters")
		}
	}

	// Check for path traversal patterns
	dangerousPatterns := []string{
		"..",   // Parent directory
		"//",   // Double slash
		"\x00", // Null byte
		"\\",   // Backslash (Windows path)
		"/",    // Path separator
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(name, pattern) {
			return New(ErrCodeInvalidInput, "design name contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// stepNameRegex matches valid flowgraph step names.
var stepNameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidateStepName validates a flowgraph step name.
// Step names become directory components (e.g. rcx_bench0), so the
// character set is restricted to lowercase identifiers.
func ValidateStepName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidFlow, "step name cannot be empty")
	}

	if !stepNameRegex.MatchString(name) {
		return New(ErrCodeInvalidFlow, "invalid step name: %q", name)
	}

	return nil
}

// layerNameRegex matches valid technology layer names (e.g. metal5, M5, met4).
var layerNameRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.]*$`)

// ValidateLayerName validates a routing layer name before it is interpolated
// into a tool script.
func ValidateLayerName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidTech, "layer name cannot be empty")
	}

	if !layerNameRegex.MatchString(name) {
		return New(ErrCodeInvalidTech, "invalid layer name: %q", name)
	}

	return nil
}

// ValidatePath validates a file path within the build tree for safety.
// It prevents path traversal attacks and ensures reasonable path length.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidInput, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidInput, "path too long (max %d characters)", maxPathLength)
	}

	// Check for null bytes and control characters
	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "path contains invalid characters")
		}
	}

	// Must not be absolute path
	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidInput, "path must be relative (cannot start with /)")
	}

	// Check for path traversal
	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidInput, "path cannot contain path traversal sequences (..)")
	}

	// No backslashes (potential Windows path injection)
	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidInput, "path cannot contain backslashes")
	}

	return nil
}
