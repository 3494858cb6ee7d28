package clients

import "fmt"

// NetworkError means the request never produced an HTTP response
// (DNS failure, refused connection, timeout).
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError means the server responded with a non-2xx status.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("API returned status code: %d, response: %s", e.Status, e.Body)
}
