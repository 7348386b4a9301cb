// Package validation checks names that leave the client as object keys.
package validation

import (
	"fmt"
	"strings"
	"unicode"
)

// ValidateFilename rejects names that could not be used as a single
// object key: empty, ".", "..", or containing separators, NUL or other
// control characters.
func ValidateFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}
	if filename == "." || filename == ".." {
		return fmt.Errorf("filename cannot be %q", filename)
	}
	if strings.ContainsAny(filename, `/\`) {
		return fmt.Errorf("filename cannot contain path separators: %q", filename)
	}
	if strings.IndexFunc(filename, unicode.IsControl) >= 0 {
		return fmt.Errorf("filename contains control characters: %q", filename)
	}
	return nil
}

// SanitizeFilename returns a name that passes ValidateFilename. Separators
// and control characters become '_', surrounding whitespace is trimmed and
// names that end up empty or dot-only become "upload".
func SanitizeFilename(filename string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case unicode.IsControl(r):
			return '_'
		}
		return r
	}, strings.TrimSpace(filename))

	if strings.Trim(clean, ".") == "" {
		return "upload"
	}
	return clean
}
