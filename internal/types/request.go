package types

import (
	"fmt"
	"net/http"
	"net/url"
)

// Request is a document load issued by the static backend.
type Request struct {
	URL     *url.URL
	Method  string
	Headers http.Header
	Body    []byte
	// Referer is the page the load was triggered from, if any.
	Referer string
}

// NewRequest creates a GET request for rawURL.
func NewRequest(rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	return &Request{
		URL:     u,
		Method:  http.MethodGet,
		Headers: make(http.Header),
	}, nil
}

// URLString returns the string representation of the request URL.
func (r *Request) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}
