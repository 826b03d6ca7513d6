package authz

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors returned by the engine. Anything outside this taxonomy is an
// infrastructure failure: permission checks collapse it to deny (see
// Resolver.Allowed), write paths propagate it so the caller can report
// failure.
var (
	// ErrNotFound indicates the referenced role, permission or edge does not exist.
	ErrNotFound = errors.New("authz: not found")
	// ErrForbidden indicates a structurally disallowed operation, such as
	// renaming or deleting a system role. Never retried.
	ErrForbidden = errors.New("authz: forbidden")
	// ErrDuplicate indicates a uniqueness conflict, such as assigning an
	// already-held role.
	ErrDuplicate = errors.New("authz: duplicate")
)

// ValidationError carries user-correctable field problems from a mutation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "authz: validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "authz: validation failed: " + strings.Join(parts, "; ")
}

func validationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
