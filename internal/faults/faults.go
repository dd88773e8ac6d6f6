package faults

import (
	"errors"
	"fmt"
)

// Kind classifies an error at a component boundary.
type Kind int

const (
	// KindUnknown marks errors that escaped classification.
	KindUnknown Kind = iota
	// KindValidation marks malformed user input; callers re-prompt without side effects.
	KindValidation
	// KindTransport marks connect/network failures against the remote platform.
	KindTransport
	// KindAuth marks rejected codes or second-factor secrets.
	KindAuth
	// KindIntegrity marks vault records that failed authentication or decoding.
	KindIntegrity
	// KindQuota marks operations blocked by the account-limit guard.
	KindQuota
	// KindStore marks persistence failures.
	KindStore
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindAuth:
		return "auth"
	case KindIntegrity:
		return "integrity"
	case KindQuota:
		return "quota"
	case KindStore:
		return "store"
	default:
		return "unknown"
	}
}

// Error carries a classification kind alongside the underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		if e.Msg != "" {
			return e.Msg + ": " + e.Err.Error()
		}
		return e.Err.Error()
	}
	return e.Msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New constructs a classified error without a cause.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf constructs a classified error from a format string.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error; a nil cause yields nil.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf reports the classification of err, or KindUnknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
