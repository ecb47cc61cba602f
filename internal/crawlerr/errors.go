// Package crawlerr defines the error taxonomy shared by the crawl and
// backlink pipelines. Each error type maps to the error_type column of the
// crawl_errors table.
package crawlerr

import (
	"errors"
	"fmt"
)

// Error kinds recorded in the catalog.
const (
	KindHTTP     = "http_error"
	KindNetwork  = "network_error"
	KindTimeout  = "timeout_error"
	KindParse    = "parse_error"
	KindDatabase = "database_error"
	KindUnknown  = "unknown_error"
)

// ErrRobotsDisallowed marks a URL skipped by robots.txt. It is not recorded
// as a crawl error.
var ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

// HTTPError is a response with a non-2xx status code.
type HTTPError struct {
	URL    string
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error %d fetching %s", e.Status, e.URL)
}

// Kind returns the catalog error kind.
func (e *HTTPError) Kind() string { return KindHTTP }

// NetworkError is a connect, DNS or TLS failure before any response arrived.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Kind returns the catalog error kind.
func (e *NetworkError) Kind() string { return KindNetwork }

// TimeoutError is a request that exceeded the configured timeout.
type TimeoutError struct {
	URL string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout fetching %s", e.URL)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// Kind returns the catalog error kind.
func (e *TimeoutError) Kind() string { return KindTimeout }

// ParseError is an HTML document or URL that could not be parsed.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Kind returns the catalog error kind.
func (e *ParseError) Kind() string { return KindParse }

// DatabaseError is a failed catalog operation.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database error in %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// Kind returns the catalog error kind.
func (e *DatabaseError) Kind() string { return KindDatabase }

// kinder is satisfied by every taxonomy error.
type kinder interface {
	Kind() string
}

// Kind classifies an arbitrary error into a catalog error kind.
func Kind(err error) string {
	var k kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not an
// HTTPError.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}
