// Package apperrors defines the error kinds shared by the pose object model,
// the mappers and the container store.
//
// Every failure is reported as an *Error that wraps one of the sentinel kinds
// below, so callers can branch with errors.Is:
//
//	if errors.Is(err, apperrors.ErrDuplicateName) {
//	    // name already taken in the collection
//	}
//
// The Path field, when set, is the location of the offending object inside
// the container hierarchy (for example /processing/behavior/Skeletons/mouse).
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind sentinels.
var (
	ErrShape         = errors.New("shape mismatch")
	ErrDuplicateName = errors.New("duplicate name")
	ErrNotFound      = errors.New("not found")
	ErrLink          = errors.New("invalid link")
	ErrConflict      = errors.New("conflicting arguments")
	ErrDeprecated    = errors.New("deprecated usage")
	ErrReadOnly      = errors.New("read-only field")
	ErrStructure     = errors.New("malformed structure")
	ErrVersion       = errors.New("unsupported schema version")
)

// Error describes one violated invariant.
type Error struct {
	Kind error
	Path string
	Msg  string
	Err  error
}

// New returns an *Error of the given kind.
func New(kind error, path, format string, args ...any) *Error {
	return &Error{Kind: kind, Path: path, Msg: fmt.Sprintf(format, args...)}
}

// Wrap returns an *Error of the given kind that also wraps cause.
func Wrap(kind error, path string, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Path: path, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// Error formats as "[kind] path: msg: cause".
func (e *Error) Error() string {
	if e == nil {
		return "apperrors <nil>"
	}

	var b strings.Builder
	if e.Kind != nil {
		b.WriteString("[" + e.Kind.Error() + "] ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is reports whether target is the kind of this error.
func (e *Error) Is(target error) bool {
	return e.Kind != nil && e.Kind == target
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind sentinel of err, or nil when err is not an *Error.
func KindOf(err error) error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return nil
}
