package response

import (
	"errors"
)

// Error pairs a message with the HTTP status it should surface as.
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Err.Error() == t.Err.Error()
}

func NewError(code int, err string) error {
	return &Error{code, errors.New(err)}
}

// StatusCode returns the status carried by err, or fallback when err is not a *Error.
func StatusCode(err error, fallback int) int {
	var respErr *Error
	if errors.As(err, &respErr) {
		return respErr.Code
	}
	return fallback
}
