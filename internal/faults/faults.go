package faults

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks malformed input: missing required event fields,
	// out-of-range confidence values, empty identifiers.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks operations addressing an artifact, profile, or
	// link that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks operations that would violate lifecycle rules,
	// such as rebinding an active claim or re-deciding a terminal link.
	ErrConflict = errors.New("conflict")
	// ErrConstraint marks storage-level uniqueness or range failures that
	// were not recovered locally.
	ErrConstraint = errors.New("constraint violation")
	// ErrTransient marks failures safe to retry as-is.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns a stable string classification for an engine error, used in
// batch summaries and structured logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrConstraint):
		return "constraint"
	default:
		return "transient"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "engine failure"
	}
	return strings.Join(parts, ": ")
}
