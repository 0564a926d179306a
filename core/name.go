package core

import (
	"fmt"
	"regexp"
	"strings"
)

// Module names are restricted to alphanumerics, underscore, and hyphen.
var nameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidName reports whether s is a legal module name.
func ValidName(s string) bool {
	return nameRe.MatchString(s)
}

// CheckName rejects empty, whitespace-only, and malformed module names
// before any lookup happens.
func CheckName(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("module name is empty")
	}
	if !ValidName(s) {
		return fmt.Errorf("invalid module name %q: only alphanumerics, '_' and '-' are allowed", s)
	}
	return nil
}
