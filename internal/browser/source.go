package browser

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/IshaanNene/dealstalk/internal/types"
)

// HandlerFunc answers a request served by a MapSource.
type HandlerFunc func(req *types.Request) (*types.Response, error)

// MapSource serves documents from memory, keyed by URL. A key matches the
// full URL first, then the URL without its query string.
type MapSource struct {
	mu       sync.Mutex
	pages    map[string]string
	handlers map[string]HandlerFunc
	visits   []*types.Request
}

// NewMapSource creates a source over pages (URL to HTML).
func NewMapSource(pages map[string]string) *MapSource {
	m := &MapSource{
		pages:    make(map[string]string, len(pages)),
		handlers: make(map[string]HandlerFunc),
	}
	for u, body := range pages {
		m.pages[u] = body
	}
	return m
}

// Set registers or replaces the document served at url.
func (m *MapSource) Set(url, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[url] = body
}

// Handle registers a handler for url, taking precedence over Set.
func (m *MapSource) Handle(url string, h HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[url] = h
}

// Visits returns every request served, in order.
func (m *MapSource) Visits() []*types.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*types.Request(nil), m.visits...)
}

// VisitCount returns how many requests targeted url (query ignored).
func (m *MapSource) VisitCount(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.visits {
		if stripQuery(r.URLString()) == stripQuery(url) {
			n++
		}
	}
	return n
}

// Load implements Source.
func (m *MapSource) Load(ctx context.Context, req *types.Request) (*types.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full := req.URLString()
	bare := stripQuery(full)

	m.mu.Lock()
	m.visits = append(m.visits, req)
	h, hok := m.handlers[full]
	if !hok {
		h, hok = m.handlers[bare]
	}
	body, ok := m.pages[full]
	if !ok {
		body, ok = m.pages[bare]
	}
	m.mu.Unlock()

	if hok {
		return h(req)
	}
	if !ok {
		return nil, &types.FetchError{
			URL:        full,
			StatusCode: http.StatusNotFound,
			Err:        fmt.Errorf("no document for %s", full),
		}
	}
	return HTMLResponse(full, body), nil
}

// HTMLResponse builds a 200 text/html response.
func HTMLResponse(url, body string) *types.Response {
	return &types.Response{
		StatusCode:  http.StatusOK,
		Headers:     http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
		Body:        []byte(body),
		ContentType: "text/html; charset=utf-8",
		FinalURL:    url,
	}
}

func stripQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}

// Fetcher is the transport behind an HTTPSource, satisfied by
// *fetcher.HTTPFetcher.
type Fetcher interface {
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)
}

// HTTPSource loads documents through a Fetcher.
type HTTPSource struct {
	fetcher Fetcher
}

// NewHTTPSource wraps f.
func NewHTTPSource(f Fetcher) *HTTPSource {
	return &HTTPSource{fetcher: f}
}

// Load implements Source.
func (s *HTTPSource) Load(ctx context.Context, req *types.Request) (*types.Response, error) {
	return s.fetcher.Fetch(ctx, req)
}
