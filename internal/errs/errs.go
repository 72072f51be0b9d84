// Package errs holds the error taxonomy shared by the messenger services.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError reports a required message attribute that is missing or invalid.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("attribute '%s' can not be empty", e.Field)
	}
	return fmt.Sprintf("attribute '%s' %s", e.Field, e.Reason)
}

// ConfigurationError reports an unusable combination of send options.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "incorrect usage: " + e.Reason
}

// NotFoundError reports a thread or participant that does not exist.
type NotFoundError struct {
	Resource string
	ThreadID uint64
	UserID   uint64
}

func (e *NotFoundError) Error() string {
	if e.UserID != 0 {
		return fmt.Sprintf("%s not found (thread %d, user %d)", e.Resource, e.ThreadID, e.UserID)
	}
	return fmt.Sprintf("%s %d not found", e.Resource, e.ThreadID)
}

// ForbiddenError reports an action the caller is not allowed to take on a thread.
type ForbiddenError struct {
	Action   string
	ThreadID uint64
}

func (e *ForbiddenError) Error() string {
	if e.ThreadID != 0 {
		return fmt.Sprintf("not allowed to %s thread %d", e.Action, e.ThreadID)
	}
	return "not allowed to " + e.Action
}

// ErrNotFound matches any *NotFoundError through errors.Is.
var ErrNotFound = errors.New("not found")

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsConfiguration(err error) bool {
	var c *ConfigurationError
	return errors.As(err, &c)
}

func IsForbidden(err error) bool {
	var f *ForbiddenError
	return errors.As(err, &f)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// HTTPStatus maps the taxonomy to a response code; anything else is a server error.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsValidation(err):
		return http.StatusBadRequest
	case IsConfiguration(err):
		return http.StatusConflict
	case IsForbidden(err):
		return http.StatusForbidden
	case IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
