package panel

import (
	"errors"
	"fmt"
)

var (
	ErrNotLoggedIn        = errors.New("not logged in")
	ErrNoActiveDomain     = errors.New("no domain active")
	ErrUnexpectedStatus   = errors.New("unexpected response status")
	ErrMissingLocation    = errors.New("location header not found in response")
	ErrUnexpectedRedirect = errors.New("unexpected location header")
	ErrMalformedPage      = errors.New("malformed page")
	ErrRejected           = errors.New("rejected by panel")
)

// SessionError reports a violation of the panel protocol: an unexpected
// status or redirect, a page that could not be parsed, a rejected update,
// or an operation attempted before the session reached the required state.
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("panel: %s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

func sessionError(op string, err error) error {
	return &SessionError{Op: op, Err: err}
}
