package types

import (
	"net/http"
	"time"
)

// Response is a loaded document.
type Response struct {
	StatusCode    int
	Headers       http.Header
	Body          []byte
	ContentType   string
	FinalURL      string
	FetchDuration time.Duration
}

// NewResponse creates a Response from an http.Response.
func NewResponse(httpResp *http.Response, body []byte, duration time.Duration) *Response {
	return &Response{
		StatusCode:    httpResp.StatusCode,
		Headers:       httpResp.Header,
		Body:          body,
		ContentType:   httpResp.Header.Get("Content-Type"),
		FinalURL:      httpResp.Request.URL.String(),
		FetchDuration: duration,
	}
}

// IsSuccess returns true if the response status is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
