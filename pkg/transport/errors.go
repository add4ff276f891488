package transport

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// NetworkError is returned when a request never produced an HTTP response:
// connection refused, DNS failure, TLS failure, or caller cancellation.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: network error: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// TimeoutError is returned when a request exceeded its deadline. It is kept
// separate from NetworkError so callers can tell "slow" from "unreachable".
type TimeoutError struct {
	Method  string
	Path    string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %s: timed out after %s", e.Method, e.Path, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// IsTimeout reports whether err carries a *TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsNetwork reports whether err carries a *NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not an *HTTPError.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}

// IsNotFound reports whether the remote answered 404.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// DecodeError is returned when a 2xx body could not be parsed.
type DecodeError struct {
	Method string
	Path   string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s %s: decode response: %v", e.Method, e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
