// Package resultcode provides the D3D-style result taxonomy this module's
// callers expect at the device boundary (spec §7, §8). It mirrors the
// now-superseded core/error.go's structured-error shape rather than
// exposing bare sentinel values only: every non-OK result carries the
// stage and detail that produced it.
package resultcode

import "fmt"

// Code is a D3D-style HRESULT-ish classification. Values are stable; callers
// may switch on them without depending on the accompanying message text.
type Code int

const (
	// OK indicates success.
	OK Code = iota
	// InvalidCall indicates a call made in an illegal state or with illegal
	// arguments (D3DERR_INVALIDCALL).
	InvalidCall
	// MoreData indicates a caller-supplied buffer was too small and the
	// operation was not performed (D3DERR_MOREDATA, resolves spec §9's open
	// question on reporting undersized output buffers).
	MoreData
	// DeviceLost indicates the underlying backend is no longer usable and
	// must be reinitialized (D3DERR_DEVICELOST).
	DeviceLost
	// NotAvailable indicates a requested backend or feature could not be
	// created on this host (e.g. a forced backend with no driver support).
	NotAvailable
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case InvalidCall:
		return "InvalidCall"
	case MoreData:
		return "MoreData"
	case DeviceLost:
		return "DeviceLost"
	case NotAvailable:
		return "NotAvailable"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// Error is the structured error value returned for any non-OK result.
// Stage names the component or step that produced it (e.g. "backend/hardwaregl:
// context", "shader: parse"), matching the stage-prefixed substrings spec
// §4.5 requires from render-backend failures.
type Error struct {
	Result Code
	Stage  string
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Stage, e.Result, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Stage, e.Result, e.Detail)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, resultcode.InvalidCall) style matching against a
// bare Code by wrapping it as a sentinel comparison target.
func (e *Error) Is(target error) bool {
	if c, ok := target.(codeSentinel); ok {
		return e.Result == Code(c)
	}
	return false
}

type codeSentinel Code

// Sentinel returns an error value usable with errors.Is to test a result
// code against an *Error without caring about stage/detail text, e.g.
// errors.Is(err, resultcode.Sentinel(resultcode.MoreData)).
func Sentinel(c Code) error { return codeSentinel(c) }

func (c codeSentinel) Error() string { return Code(c).String() }

// New builds a structured Error.
func New(result Code, stage, detail string) *Error {
	return &Error{Result: result, Stage: stage, Detail: detail}
}

// Wrap builds a structured Error around an underlying cause.
func Wrap(result Code, stage, detail string, cause error) *Error {
	return &Error{Result: result, Stage: stage, Detail: detail, Cause: cause}
}
