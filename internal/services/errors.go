package services

import (
	"errors"

	"github.com/samber/oops"
)

type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"
	KindDuplicateAccount   ErrorKind = "duplicate_account"
	KindAccountNotFound    ErrorKind = "account_not_found"
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindInvalidOrExpired   ErrorKind = "invalid_or_expired_token"
	KindNotificationFailed ErrorKind = "notification_delivery_failed"
	KindInternal           ErrorKind = "internal"
)

// Error is returned by every auth operation. Message is safe to show to the
// client; Err carries the detail that only goes to logs.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind only, so errors.Is(err, ErrInvalidCredentials) works for
// any message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrValidation            = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrDuplicateAccount      = &Error{Kind: KindDuplicateAccount, Message: "User already exists"}
	ErrAccountNotFound       = &Error{Kind: KindAccountNotFound, Message: "User not found"}
	ErrInvalidCredentials    = &Error{Kind: KindInvalidCredentials, Message: "Invalid credentials"}
	ErrInvalidOrExpiredToken = &Error{Kind: KindInvalidOrExpired, Message: "Invalid or expired token"}
	ErrNotificationFailed    = &Error{Kind: KindNotificationFailed, Message: "Notification delivery failed"}
	ErrInternal              = &Error{Kind: KindInternal, Message: "Internal server error"}
)

func newError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func validationError(msg string) *Error {
	return newError(KindValidation, msg, nil)
}

// internalError tags the cause with an oops code and operation context; the
// client only ever sees the generic message.
func internalError(code, operation string, err error) *Error {
	return newError(KindInternal, ErrInternal.Message,
		oops.Code(code).With("operation", operation).Wrap(err))
}

// KindOf returns the kind of an auth error, or KindInternal for anything else.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage returns the client-facing message for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return ErrInternal.Message
}
