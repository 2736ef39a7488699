package errors

import (
	"strings"
	"unicode"
)

// ValidateNodeID validates a node identifier for safety and correctness.
// Node IDs come from note names and unresolved reference texts, so the rules
// are intentionally conservative:
//   - No empty IDs
//   - No control characters or null bytes
//   - No path traversal sequences
//   - Maximum length of 256 characters
func ValidateNodeID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidNodeID, "node ID cannot be empty")
	}

	if len(id) > 256 {
		return New(ErrCodeInvalidNodeID, "node ID too long (max 256 characters)")
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidNodeID, "node ID contains invalid control characters")
		}
	}

	dangerousPatterns := []string{
		"..",   // Parent directory
		"//",   // Double slash
		"\x00", // Null byte
		"\\",   // Backslash (Windows path)
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(id, pattern) {
			return New(ErrCodeInvalidNodeID, "node ID contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// ValidateReferenceText validates the stripped text of a parent reference.
// The text becomes a candidate placeholder identity, so it follows the same
// rules as node IDs plus a ban on the link delimiters themselves.
func ValidateReferenceText(text string) error {
	if err := ValidateNodeID(text); err != nil {
		return New(ErrCodeInvalidReference, "invalid reference text: %s", UserMessage(err))
	}

	if strings.ContainsAny(text, "[]") {
		return New(ErrCodeInvalidReference, "reference text cannot contain brackets: %q", text)
	}

	return nil
}

// ValidateVaultPath validates a vault notes path.
//
// The path is the operator's own directory argument, so relative segments
// ("../notes") and platform-native separators are legal. Only input that can
// never name a directory is rejected:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
func ValidateVaultPath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidVault, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidVault, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidVault, "path contains invalid characters")
		}
	}

	return nil
}
