package domain

import "errors"

type ErrorKind string

const (
    KindInvalidInput            ErrorKind = "InvalidInput"
    KindIntelligenceUnavailable ErrorKind = "IntelligenceUnavailable"
    KindNarrationUnavailable    ErrorKind = "NarrationUnavailable"
    KindInternal                ErrorKind = "InternalInvariantViolation"
)

// Error carries a kind and the message surfaced to callers verbatim.
type Error struct {
    Kind    ErrorKind
    Message string
    Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the kind sentinels below work
// with errors.Is.
func (e *Error) Is(target error) bool {
    t, ok := target.(*Error)
    if !ok {
        return false
    }
    return t.Kind == e.Kind
}

var (
    ErrInvalidInput            = &Error{Kind: KindInvalidInput, Message: "invalid input"}
    ErrIntelligenceUnavailable = &Error{Kind: KindIntelligenceUnavailable, Message: "intelligence unavailable"}
    ErrNarrationUnavailable    = &Error{Kind: KindNarrationUnavailable, Message: "narration unavailable"}
    ErrInternal                = &Error{Kind: KindInternal, Message: "internal invariant violation"}
)

func InvalidInput(msg string) error { return &Error{Kind: KindInvalidInput, Message: msg} }

func Internal(msg string) error { return &Error{Kind: KindInternal, Message: msg} }

// IntelligenceUnavailable wraps err keeping its message as-is. An err that is
// already a domain error of that kind is returned unchanged.
func IntelligenceUnavailable(err error) error {
    return wrapKind(KindIntelligenceUnavailable, err)
}

func NarrationUnavailable(err error) error {
    return wrapKind(KindNarrationUnavailable, err)
}

func wrapKind(kind ErrorKind, err error) error {
    var de *Error
    if errors.As(err, &de) && de.Kind == kind {
        return de
    }
    return &Error{Kind: kind, Message: err.Error(), Err: err}
}

// KindOf returns the kind of the first domain error in err's chain, or
// KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
    var de *Error
    if errors.As(err, &de) {
        return de.Kind
    }
    return KindInternal
}
