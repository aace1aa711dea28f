package reconcile

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a reconciliation did not succeed.
type FailureKind string

const (
	// MissingKey reports an empty or blank key.
	MissingKey FailureKind = "missing_key"
	// MissingValue reports a Present state without a value.
	MissingValue FailureKind = "missing_value"
	// InvalidState reports a presence other than present/absent.
	InvalidState FailureKind = "invalid_state"
	// UnknownProvider reports a provider name nobody registered.
	UnknownProvider FailureKind = "unknown_provider"
	// ProviderUnavailable reports a provider that is known but cannot be constructed.
	ProviderUnavailable FailureKind = "provider_unavailable"
	// BackendUnavailable reports a transport or connectivity failure.
	BackendUnavailable FailureKind = "backend_unavailable"
	// ConcurrentModification reports exhausted compare-and-swap retries.
	ConcurrentModification FailureKind = "concurrent_modification"
	// Timeout reports that the caller's deadline expired.
	Timeout FailureKind = "timeout"
)

var kindMessages = map[FailureKind]string{
	MissingKey:             "missing key",
	MissingValue:           "missing value",
	InvalidState:           "invalid state",
	UnknownProvider:        "unknown provider",
	ProviderUnavailable:    "provider unavailable",
	BackendUnavailable:     "backend unavailable",
	ConcurrentModification: "concurrent modification",
	Timeout:                "timeout",
}

// IsValidation reports whether the kind is a caller input defect.
func (k FailureKind) IsValidation() bool {
	return k == MissingKey || k == MissingValue || k == InvalidState
}

// IsConfiguration reports whether the kind is a provider resolution defect.
func (k FailureKind) IsConfiguration() bool {
	return k == UnknownProvider || k == ProviderUnavailable
}

// Error is the typed error returned by validation, resolution and reconciliation.
type Error struct {
	Kind FailureKind
	Key  string
	Err  error
}

func newError(kind FailureKind, key string, err error) *Error {
	return &Error{Kind: kind, Key: key, Err: err}
}

// NewError builds an Error of the given kind.
func NewError(kind FailureKind, key string, err error) *Error {
	return newError(kind, key, err)
}

func (e *Error) Error() string {
	msg, ok := kindMessages[e.Kind]
	if !ok {
		msg = string(e.Kind)
	}
	if e.Key != "" {
		msg = fmt.Sprintf("%s (key %q)", msg, e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches kind sentinels, so errors.Is(err, ErrTimeout) works for any
// Error of kind Timeout regardless of key or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Key == "" && t.Err == nil && t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrMissingKey             = &Error{Kind: MissingKey}
	ErrMissingValue           = &Error{Kind: MissingValue}
	ErrInvalidState           = &Error{Kind: InvalidState}
	ErrUnknownProvider        = &Error{Kind: UnknownProvider}
	ErrProviderUnavailable    = &Error{Kind: ProviderUnavailable}
	ErrBackendUnavailable     = &Error{Kind: BackendUnavailable}
	ErrConcurrentModification = &Error{Kind: ConcurrentModification}
	ErrTimeout                = &Error{Kind: Timeout}
)

// Unavailable wraps a transport failure from a backend operation.
// Backends return it for anything that is not a token mismatch or a missing key.
func Unavailable(op string, err error) error {
	return newError(BackendUnavailable, "", fmt.Errorf("%s: %w", op, err))
}

// KindOf returns the failure kind carried by err, or "" when err is nil or untyped.
func KindOf(err error) FailureKind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}
