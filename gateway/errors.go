package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotAuthorized is wrapped by request errors for HTTP 401 and 403 responses.
var ErrNotAuthorized = errors.New("not authorized")

// TransportError reports a non-2xx response whose body carried no structured
// error message.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: error %d", e.Op, e.StatusCode)
}

func (e *TransportError) Unwrap() error {
	return authCause(e.StatusCode)
}

// RemoteError reports a non-2xx response whose JSON body carried a message.
type RemoteError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.StatusCode)
}

func (e *RemoteError) Unwrap() error {
	return authCause(e.StatusCode)
}

// ConnectionError reports a request that produced no HTTP response.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: request failed: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// DecodeError reports a successful response whose body could not be decoded.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decode response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ResponseTooLargeError reports a successful response whose body exceeds the
// configured maximum size. The body is discarded rather than truncated.
type ResponseTooLargeError struct {
	Op    string
	Limit int64
}

func (e *ResponseTooLargeError) Error() string {
	return fmt.Sprintf("%s: response larger than %d bytes", e.Op, e.Limit)
}

func authCause(status int) error {
	if isAuthStatus(status) {
		return ErrNotAuthorized
	}
	return nil
}

func isAuthStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// IsNotAuthorized reports whether err came from a 401 or 403 response.
func IsNotAuthorized(err error) bool {
	return errors.Is(err, ErrNotAuthorized)
}

// StatusCode returns the HTTP status carried by err, or 0 when err did not
// come from an HTTP response.
func StatusCode(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}
