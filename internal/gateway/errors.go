package gateway

import (
	"errors"
	"fmt"
)

// ErrNotImplemented is returned by operations the backend does not expose yet.
var ErrNotImplemented = errors.New("not implemented")

// NetworkError means the request never produced an HTTP response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError is a 4xx/5xx response from the backend.
type HTTPError struct {
	Op     string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: backend responded %d: %s", e.Op, e.Status, e.Body)
}

// DecodeError means the response body did not match the expected schema.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decode: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// StatusOf returns the backend status carried by err, or 0.
func StatusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}

// IsGatewayError reports whether err came from the gateway taxonomy.
func IsGatewayError(err error) bool {
	var (
		ne *NetworkError
		he *HTTPError
		de *DecodeError
	)
	return errors.As(err, &ne) || errors.As(err, &he) || errors.As(err, &de)
}
