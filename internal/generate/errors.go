package generate

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError rejects a request before any model work was done.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Reason)
}

// StatusCode maps validation failures to 400.
func (e ValidationError) StatusCode() int { return http.StatusBadRequest }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v ValidationError
	return errors.As(err, &v)
}

// ModelError is a backend failure during generation. It ends the current
// request only.
type ModelError struct{ Err error }

func (e ModelError) Error() string { return "model error: " + e.Err.Error() }
func (e ModelError) Unwrap() error { return e.Err }

// StatusCode maps backend failures to 500.
func (e ModelError) StatusCode() int { return http.StatusInternalServerError }

// IsModelError reports whether err is (or wraps) a ModelError.
func IsModelError(err error) bool {
	var m ModelError
	return errors.As(err, &m)
}
