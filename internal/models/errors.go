package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized is matched by every error caused by an HTTP 401 from the remote service.
var ErrUnauthorized = errors.New("unauthorized")

// ValidationError reports malformed user input. The operation was not attempted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ResourceError is a non-2xx answer of the remote service. Message holds the
// server-provided explanation when there was one.
type ResourceError struct {
	StatusCode int
	Message    string
}

func (e *ResourceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote service answered %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("remote service answered %d: %s", e.StatusCode, e.Message)
}

func (e *ResourceError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// TransportError is a failure to reach the remote service or to read its answer.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "remote service unreachable: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UserMessage returns the text a notification should show for err:
// the server message when the server sent one, fallback otherwise.
func UserMessage(err error, fallback string) string {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Message
	}

	var resourceErr *ResourceError
	if errors.As(err, &resourceErr) && resourceErr.Message != "" {
		return resourceErr.Message
	}

	return fallback
}
