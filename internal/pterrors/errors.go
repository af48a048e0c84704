// Package pterrors defines the error kinds shared by the section, asid,
// and image packages.
//
// Every public operation that can fail for a reason a caller should
// branch on returns one of these kinds, never a panic. Panics are
// reserved for broken invariants that indicate a bug in this module
// itself, not in caller input.
package pterrors

import (
	"errors"
	"fmt"
)

// Kind identifies why an operation failed.
type Kind int

const (
	// Internal means a precondition internal to this module was
	// violated: a nil image/section/asid where the public API should
	// have already guarded against it, a malformed clone range, or the
	// identical-range overlap branch finding a nil filename on either
	// side.
	Internal Kind = iota + 1

	// Invalid means malformed user-facing input, such as a nil filename
	// or image handed to a convenience wrapper.
	Invalid

	// NoMem means allocation failed for a list entry or section handle.
	NoMem

	// NoMap means a read did not locate any region and no callback
	// supplied bytes.
	NoMap

	// BadImage means a remove target was not present in the image.
	BadImage
)

func (k Kind) String() string {
	switch k {
	case Internal:
		return "internal"
	case Invalid:
		return "invalid"
	case NoMem:
		return "nomem"
	case NoMap:
		return "nomap"
	case BadImage:
		return "bad_image"
	default:
		return "unknown"
	}
}

// Error pairs a Kind with an optional human-readable cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg == "" && e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a *Error with the same Kind as e, so
// `errors.Is(err, pterrors.ErrNoMap)` matches any NoMap error (see the
// sentinels below).
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// New constructs an *Error carrying kind, the failing operation name,
// and an optional message.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap constructs an *Error carrying kind, the failing operation name,
// and an underlying cause.
func Wrap(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind from err if it is (or wraps) a *Error,
// reporting ok = false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Sentinel instances for use with errors.Is against a specific kind,
// e.g. `errors.Is(err, pterrors.ErrNoMap)`.
var (
	ErrInternal = &Error{Kind: Internal}
	ErrInvalid  = &Error{Kind: Invalid}
	ErrNoMem    = &Error{Kind: NoMem}
	ErrNoMap    = &Error{Kind: NoMap}
	ErrBadImage = &Error{Kind: BadImage}
)
