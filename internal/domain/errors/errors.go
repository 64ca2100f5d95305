package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAlreadyExists        = errors.New("already exists")
	ErrNotFound             = errors.New("not found")
	ErrInvalidMembershipID  = errors.New("invalid membership id")
	ErrInvalidProduct       = errors.New("product is not configured")
	ErrInvalidAuthorization = errors.New("authorization id is required")
	ErrInvalidStatus        = errors.New("unknown transfer status")
	ErrLocked               = errors.New("resource is locked")
)

// Kind classifies a backend failure once, at the client boundary.
type Kind int

const (
	// KindUnrecoverable fails the record immediately.
	KindUnrecoverable Kind = iota
	// KindRecoverable is a known transient condition worth retrying or rescheduling.
	KindRecoverable
	// KindNotFound is a transport level 404.
	KindNotFound
	// KindValidation is a customer-fixable input error.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindRecoverable:
		return "recoverable"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	default:
		return "unrecoverable"
	}
}

// BackendError is returned by the licensing backend client for every failed call.
// API errors carry Code and Details; transport errors carry StatusCode only.
type BackendError struct {
	Kind       Kind
	Code       string
	Message    string
	Details    []string
	StatusCode int
}

func (e *BackendError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%d - %s", e.StatusCode, e.Message)
	}
	if len(e.Details) == 0 {
		return fmt.Sprintf("%s - %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s - %s: %s", e.Code, e.Message, strings.Join(e.Details, ", "))
}

// Transport reports whether the error came from HTTP status rather than an API payload.
func (e *BackendError) Transport() bool {
	return e.Code == ""
}

// AsBackend unwraps a BackendError.
func AsBackend(err error) (*BackendError, bool) {
	var be *BackendError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// HasCode reports whether err is a backend API error with the given code.
func HasCode(err error, code string) bool {
	be, ok := AsBackend(err)
	return ok && be.Code == code
}
