package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error so handlers can map it to an HTTP status
// without inspecting message text.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindUnauthorized
	KindConfiguration
	KindUpstreamFetch
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindConfiguration:
		return "configuration"
	case KindUpstreamFetch:
		return "upstream_fetch"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error is a tagged error carrying a kind and an optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is allows errors.Is comparisons against sentinel kinds, e.g.
// errors.Is(err, apperr.Validation("")).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Msg: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Msg: msg}
}

func Configuration(msg string) *Error {
	return &Error{Kind: KindConfiguration, Msg: msg}
}

func UpstreamFetch(msg string, cause error) *Error {
	return &Error{Kind: KindUpstreamFetch, Msg: msg, Err: cause}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Msg: msg}
}

// KindOf extracts the kind from an error chain, KindUnknown if untagged.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
