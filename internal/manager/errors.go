package manager

import (
	"errors"
	"net/http"
)

// CapacityError signals that the request could not be admitted: the queue was
// full, the wait exceeded max_wait, or the server is shutting down.
type CapacityError struct{ Reason string }

func (e CapacityError) Error() string { return "server busy: " + e.Reason }

// StatusCode maps capacity rejections to 429.
func (e CapacityError) StatusCode() int { return http.StatusTooManyRequests }

// IsCapacity reports whether err indicates backpressure (return 429).
func IsCapacity(err error) bool {
	var c CapacityError
	return errors.As(err, &c)
}

// Rejection reasons, also used as metric labels.
const (
	reasonQueueFull = "queue_full"
	reasonWait      = "max_wait"
	reasonDraining  = "draining"
)

// unavailableError signals that no model is loaded (anymore) so the HTTP layer
// can return 503 instead of 500.
type unavailableError struct{ msg string }

func (e unavailableError) Error() string   { return e.msg }
func (e unavailableError) StatusCode() int { return http.StatusServiceUnavailable }

// IsUnavailable reports whether err indicates the model is not serving.
func IsUnavailable(err error) bool {
	var u unavailableError
	return errors.As(err, &u)
}
