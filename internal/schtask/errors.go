package schtask

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAlreadyExists is returned by Create without overwrite when the
	// task name is already registered.
	ErrAlreadyExists = errors.New("task already exists")
	// ErrNotFound is returned by operations that require an existing task.
	ErrNotFound = errors.New("task not found")
	// ErrMalformedInput marks specs rejected before any host invocation.
	ErrMalformedInput = errors.New("malformed task spec")
)

// RegistrationError reports a failed task registration. Output carries the
// host's diagnostic text verbatim; operators need the scheduler's own
// message to diagnose permission or trigger problems.
type RegistrationError struct {
	Name   string
	Output string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("failed to register task %q:\n%s", e.Name, e.Output)
}

// OperationError reports a failed delete/run/enable/disable/stop invocation.
type OperationError struct {
	Op     string
	Name   string
	Output string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("failed to %s task %q:\n%s", e.Op, e.Name, e.Output)
}

// ListingError reports a failed enumeration invocation.
type ListingError struct {
	Output string
}

func (e *ListingError) Error() string {
	return fmt.Sprintf("failed to list tasks:\n%s", e.Output)
}

// diagnostic combines captured stderr and stdout the way the host printed
// them, without paraphrasing.
func diagnostic(res Result) string {
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(res.Stderr); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(res.Stdout); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n")
}
