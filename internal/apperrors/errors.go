// internal/apperrors/errors.go
package apperrors

import (
	"fmt"
	"sort"
	"strings"
)

// IntegrationError is raised when an upstream collaborator (GitHub, AI
// provider, OAuth endpoint) fails or a required external profile is missing.
type IntegrationError struct {
	Msg     string
	Details map[string]any
	Err     error
}

func (e *IntegrationError) Error() string {
	return formatError(e.Msg, e.Details, e.Err)
}

func (e *IntegrationError) Unwrap() error { return e.Err }

// NewIntegration wraps err as an IntegrationError with structured details.
func NewIntegration(msg string, details map[string]any, err error) *IntegrationError {
	return &IntegrationError{Msg: msg, Details: details, Err: err}
}

// ValidationError is raised for malformed timeline-node input: bad dates,
// depth violations, or hierarchy mismatches.
type ValidationError struct {
	Msg     string
	Details map[string]any
}

func (e *ValidationError) Error() string {
	return formatError(e.Msg, e.Details, nil)
}

// NewValidation builds a ValidationError with structured details.
func NewValidation(msg string, details map[string]any) *ValidationError {
	return &ValidationError{Msg: msg, Details: details}
}

// NotFoundError is raised when a timeline, node, or profile does not exist.
type NotFoundError struct {
	Msg     string
	Details map[string]any
}

func (e *NotFoundError) Error() string {
	return formatError(e.Msg, e.Details, nil)
}

// NewNotFound builds a NotFoundError with structured details.
func NewNotFound(msg string, details map[string]any) *NotFoundError {
	return &NotFoundError{Msg: msg, Details: details}
}

func formatError(msg string, details map[string]any, err error) string {
	var b strings.Builder
	b.WriteString(msg)
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, details[k])
	}
	if err != nil {
		fmt.Fprintf(&b, ": %v", err)
	}
	return b.String()
}
