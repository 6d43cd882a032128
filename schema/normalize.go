package schema

import (
	"errors"
	"strings"
)

// NormalizeMethod upper-cases and validates an HTTP method token.
func NormalizeMethod(method string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(method))
	if trimmed == "" {
		return "", errors.New("method is required")
	}
	for _, r := range trimmed {
		if r < 'A' || r > 'Z' {
			return "", errors.New("invalid method " + method)
		}
	}
	return trimmed, nil
}

// ValidateControlName reports ErrUnknownControl for names outside the control set.
func ValidateControlName(name string) (Control, error) {
	control, ok := ParseControl(strings.TrimSpace(name))
	if !ok {
		return "", ErrUnknownControl
	}
	return control, nil
}
