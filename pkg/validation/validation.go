package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxIDLength   = 100
	maxNameLength = 100
)

var (
	// IDRegex validates connection and device identities
	IDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidateConnID validates an opaque connection identity referenced by a
// client (join/relay targets).
func ValidateConnID(id string) error {
	return validateID(id, "target id")
}

// ValidateDeviceID validates a caller-supplied stable device identity.
func ValidateDeviceID(id string) error {
	return validateID(id, "device id")
}

func validateID(id, field string) error {
	if id == "" {
		return fmt.Errorf("%s is required", field)
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("%s is too long (max %d characters)", field, maxIDLength)
	}
	if !IDRegex.MatchString(id) {
		return fmt.Errorf("invalid %s format", field)
	}
	return nil
}

// ValidateDisplayName validates a broadcaster's human readable label.
func ValidateDisplayName(name string) error {
	if !utf8.ValidString(name) {
		return fmt.Errorf("name contains invalid characters")
	}
	if err := ValidateNonEmptyString(name, "name"); err != nil {
		return err
	}
	return ValidateStringLength(strings.TrimSpace(name), 1, maxNameLength, "name")
}

// ValidateQuality validates quality level
func ValidateQuality(quality string) error {
	validQualities := map[string]bool{
		"low":    true,
		"medium": true,
		"high":   true,
	}
	if !validQualities[quality] {
		return fmt.Errorf("invalid quality level (must be low, medium, or high)")
	}
	return nil
}

// ValidateNonEmptyString validates that string is not empty after trimming
func ValidateNonEmptyString(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateStringLength validates string length in runes
func ValidateStringLength(s string, min, max int, fieldName string) error {
	length := utf8.RuneCountInString(s)
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}
