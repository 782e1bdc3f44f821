package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Size limits (in bytes)
const (
	MaxSourceSize = 4 * 1024 * 1024 // 4MB - module source
	MaxNameLength = 256
)

// ModuleNamePattern allows catalog style names such as "anime/site-v2"
var ModuleNamePattern = regexp.MustCompile(`^[a-zA-Z0-9._/-]+$`)

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if value == "" && !required {
		return nil // Optional field, empty is OK
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	// Check for null bytes (security issue)
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}

	return nil
}

// ValidateModuleName validates an optional module name
func ValidateModuleName(name string) error {
	if err := ValidateString(name, "name", 1, MaxNameLength, false); err != nil {
		return err
	}
	if name != "" && !ModuleNamePattern.MatchString(name) {
		return fmt.Errorf("name contains invalid characters (only alphanumeric, dots, slashes, hyphens, and underscores allowed)")
	}
	return nil
}

// ValidateSource validates module source before it reaches an engine
func ValidateSource(source string) error {
	if strings.TrimSpace(source) == "" {
		return fmt.Errorf("source is required")
	}
	if len(source) > MaxSourceSize {
		return fmt.Errorf("source size %d bytes exceeds maximum %d bytes", len(source), MaxSourceSize)
	}
	if !utf8.ValidString(source) {
		return fmt.Errorf("source is not valid UTF-8")
	}
	return nil
}
