// Package fetcher handles HTTP fetching with redirect tracking and
// content decoding.
package fetcher

import (
	"mime"
	"net/http"
	"strings"
	"time"
)

// Response is the result of fetching a URL.
type Response struct {
	// Original requested URL
	RequestURL string

	// Final URL after redirects
	FinalURL string

	// HTTP status code
	StatusCode int

	// Status text (e.g., "200 OK")
	Status string

	// Response headers of the final hop
	Headers http.Header

	// Content-Type without parameters (e.g., "text/html")
	ContentType string

	// Decoded response body
	Body []byte

	// Decoded body size in bytes
	BodySize int64

	// URLs traversed when the request redirected, original first, final
	// last. Empty when the URL resolved directly.
	RedirectChain []string

	// Total time from first request to body fully read
	ResponseTime time.Duration
}

// IsSuccess reports whether the response status is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsHTML reports whether the response carries an HTML document.
func (r *Response) IsHTML() bool {
	return r.ContentType == "text/html" || r.ContentType == "application/xhtml+xml"
}

// WasRedirected reports whether the request went through any redirect.
func (r *Response) WasRedirected() bool {
	return len(r.RedirectChain) > 0
}

// Charset returns the charset parameter of the Content-Type header,
// lowercased, or "utf-8" when absent.
func (r *Response) Charset() string {
	if r.Headers != nil {
		if _, params, err := mime.ParseMediaType(r.Headers.Get("Content-Type")); err == nil {
			if cs := params["charset"]; cs != "" {
				return strings.ToLower(cs)
			}
		}
	}
	return "utf-8"
}

// GetHeader returns a header value of the final hop, case-insensitive.
func (r *Response) GetHeader(name string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get(name)
}
