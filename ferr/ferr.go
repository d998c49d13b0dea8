// Package ferr defines the error kinds surfaced by the bitio, meta, and
// frame packages.
//
// Every failure reported by this module's core codec packages carries one
// of a small, closed set of kinds so that callers can branch on what went
// wrong (a truncated stream vs. a malformed field vs. a misused API)
// without parsing error strings.
package ferr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies why an operation failed.
type Kind int

const (
	// EndOfStream reports that the underlying source was exhausted before a
	// read could complete.
	EndOfStream Kind = iota
	// InvalidData reports a violation of a FLAC format rule: bad sync, a
	// reserved code, a CRC mismatch, an out-of-range field, misordered seek
	// points, an invalid UTF-8 position, or a residual that overflowed the
	// decoder's guard.
	InvalidData
	// InvalidState reports that a serializer was invoked while its
	// invariants were violated.
	InvalidState
	// InvalidArgument reports that the caller violated a documented
	// precondition.
	InvalidArgument
	// NotAligned reports that a byte-boundary-only operation was called
	// mid-byte.
	NotAligned
	// Unsupported reports that a seek or length query was made against a
	// source that does not support it.
	Unsupported
)

func (k Kind) String() string {
	switch k {
	case EndOfStream:
		return "end of stream"
	case InvalidData:
		return "invalid data"
	case InvalidState:
		return "invalid state"
	case InvalidArgument:
		return "invalid argument"
	case NotAligned:
		return "not aligned"
	case Unsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("ferr.Kind(%d)", int(k))
	}
}

// Error is a kinded error, optionally wrapping an underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

// Unwrap allows errors.Is/errors.As to see through Error to its cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a new Error of the given kind, annotated with op and msg.
func New(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

// Newf is like New but formats its message.
func Newf(kind Kind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: errors.Errorf(format, args...)}
}

// Wrap annotates err with op and kind. It returns nil if err is nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: errors.WithStack(err)}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
