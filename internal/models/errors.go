package models

import "errors"

var (
	ErrValidation       = errors.New("validation failed")
	ErrDuplicateAccount = errors.New("account already exists")
	ErrAuthentication   = errors.New("authentication failed")
	ErrNotFound         = errors.New("not found")
	ErrPersistence      = errors.New("persistence failure")
	ErrNotification     = errors.New("notification failure")
)

// Error carries a short user-facing message together with its kind and cause.
// errors.Is matches against both Kind and Err.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func ValidationError(msg string) error {
	return &Error{Kind: ErrValidation, Message: msg}
}

func NotFoundError(msg string) error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

func PersistenceError(msg string, err error) error {
	return &Error{Kind: ErrPersistence, Message: msg, Err: err}
}

func NotificationError(msg string, err error) error {
	return &Error{Kind: ErrNotification, Message: msg, Err: err}
}

// UserMessage returns the short message meant for display, without the cause chain.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
