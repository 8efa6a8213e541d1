// Package opkgerr defines the closed set of error kinds surfaced by the
// openpackage core, per spec §7. The CLI maps a Kind to an exit code and a
// user-facing message; internal packages never format final error text
// themselves, they wrap a Kind with structured fields.
package opkgerr

import (
	"errors"
	"fmt"
)

// Kind is the closed taxonomy of core error kinds.
type Kind string

const (
	Validation         Kind = "validation"
	PackageNotFound    Kind = "package-not-found"
	VersionNotFound    Kind = "version-not-found"
	VersionConflict    Kind = "version-conflict"
	VersionExists      Kind = "version-exists"
	CircularDependency Kind = "circular-dependency"
	RegistryIO         Kind = "registry-io"
	Filesystem         Kind = "filesystem"
	UserCancellation   Kind = "user-cancellation"
	Network            Kind = "network"
	AccessDenied       Kind = "access-denied"
	Integrity          Kind = "integrity"
)

// Error wraps a Kind with a cause and kind-specific structured fields.
type Error struct {
	Kind    Kind
	Message string
	Cause   error

	// VersionConflict fields.
	Ranges    []string
	Available []string

	// CircularDependency fields.
	Cycle []string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of the given kind that wraps cause.
func Wrap(cause error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithConflict attaches version-conflict fields and returns the receiver.
func (e *Error) WithConflict(ranges, available []string) *Error {
	e.Ranges = ranges
	e.Available = available
	return e
}

// WithCycle attaches circular-dependency fields and returns the receiver.
func (e *Error) WithCycle(cycle []string) *Error {
	e.Cycle = cycle
	return e
}

// KindOf extracts the Kind from err, returning ("", false) if err is not (or
// does not wrap) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err is (or wraps) an *Error of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// ExitCode maps a Kind to the process exit code described in spec §6/§7.
// user-cancellation is the sole zero-exit error kind.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if Is(err, UserCancellation) {
		return 0
	}
	return 1
}
