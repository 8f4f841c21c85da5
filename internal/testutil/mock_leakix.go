// Package testutil provides testing utilities for the LeakIX client.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// MockLeakIX is a configurable mock LeakIX API server.
type MockLeakIX struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// Tracking
	RequestCount      int
	SearchCount       int
	LastRequestHeader http.Header
	LastQuery         string
}

// NewMockLeakIX creates a started mock server. Paths without a configured
// handler return 404 with an empty JSON object.
func NewMockLeakIX() *MockLeakIX {
	mock := &MockLeakIX{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.LastQuery = r.URL.Query().Get("q")
		if r.URL.Path == "/search" {
			mock.SearchCount++
		}
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{}`)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockLeakIX) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockLeakIX) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockLeakIX) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.SearchCount = 0
	m.LastRequestHeader = nil
	m.LastQuery = ""
}

// Requests returns the total number of requests seen.
func (m *MockLeakIX) Requests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// SetHandler sets a custom handler for a specific path.
func (m *MockLeakIX) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockLeakIX) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetPlugins configures /api/plugins with the given plugin names.
func (m *MockLeakIX) SetPlugins(names ...string) {
	body := "["
	for i, n := range names {
		if i > 0 {
			body += ","
		}
		body += fmt.Sprintf(`{"name":%q,"access":"free"}`, n)
	}
	body += "]"
	m.SetResponse("/api/plugins", MockResponse{StatusCode: http.StatusOK, Body: body})
}

// SetSearchPages scripts /search responses keyed by the page parameter.
// Pages without an entry get an empty body, which clients treat as the end
// of results.
func (m *MockLeakIX) SetSearchPages(pages map[int]MockResponse) {
	m.SetHandler("/search", func(w http.ResponseWriter, r *http.Request) {
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil {
			page = 0
		}
		resp, ok := pages[page]
		if !ok {
			w.WriteHeader(http.StatusOK)
			return
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetRateLimited makes /search answer 429 with the given retry-after hint
// in the x-limited-for header.
func (m *MockLeakIX) SetRateLimited(retryAfterSeconds int) {
	m.SetResponse("/search", MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Headers:    map[string]string{"x-limited-for": strconv.Itoa(retryAfterSeconds)},
	})
}

// SetPageLimit makes /search answer with the tier page-limit sentinel.
func (m *MockLeakIX) SetPageLimit() {
	m.SetResponse("/search", MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"Error": "Page limit"}`,
	})
}

// SetBulk streams the given NDJSON body from /bulk/search.
func (m *MockLeakIX) SetBulk(ndjson string) {
	m.SetResponse("/bulk/search", MockResponse{StatusCode: http.StatusOK, Body: ndjson})
}

// SetHost configures /host/{ip} with a JSON document.
func (m *MockLeakIX) SetHost(ip, body string) {
	m.SetResponse("/host/"+ip, MockResponse{StatusCode: http.StatusOK, Body: body})
}

// SetDomain configures /domain/{name} with a JSON document.
func (m *MockLeakIX) SetDomain(name, body string) {
	m.SetResponse("/domain/"+name, MockResponse{StatusCode: http.StatusOK, Body: body})
}

// SetSubdomains configures /api/subdomains/{name} with a JSON array.
func (m *MockLeakIX) SetSubdomains(name, body string) {
	m.SetResponse("/api/subdomains/"+name, MockResponse{StatusCode: http.StatusOK, Body: body})
}
