// Package search drives LeakIX queries and presents their results as one
// lazy record sequence, whether they run over the paginated search
// endpoint or the bulk stream.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/leakix-tools/leakix-go/pkg/transport"
)

// API endpoints driven by the engines.
const (
	SearchEndpoint = "/search"
	BulkEndpoint   = "/bulk/search"
)

// Scope partitions a query: leak events or exposed-service events.
type Scope string

const (
	// ScopeLeak selects data-exposure records.
	ScopeLeak Scope = "leak"

	// ScopeService selects exposed-service records.
	ScopeService Scope = "service"
)

// Valid reports whether the scope is one of the two known partitions.
func (s Scope) Valid() bool {
	return s == ScopeLeak || s == ScopeService
}

// Caller-contract violations, raised eagerly before any network call.
var (
	// ErrInvalidScope is returned for a scope outside leak/service.
	ErrInvalidScope = errors.New("scope must be \"leak\" or \"service\"")

	// ErrBulkScope is returned for the invalid bulk + service combination.
	// Bulk retrieval exists only for the leak scope.
	ErrBulkScope = errors.New("bulk mode is only available for the leak scope")
)

// RateLimitError ends a paginated sequence when the upstream returns 429.
// There is no automatic retry: whether and how long to wait is the
// caller's decision.
type RateLimitError struct {
	// RetryAfter is the upstream wait hint. Zero means unspecified.
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, wait %s before the next request", e.RetryAfter)
	}
	return "rate limited, wait time not specified"
}

// ErrMalformedFirstPage is yielded when the very first page cannot be
// parsed. Later malformed pages end the sequence silently because partial
// results were already produced; a malformed first page has nothing to
// soften the failure.
var ErrMalformedFirstPage = errors.New("first page of results is malformed")

// Query describes one search. Immutable once a fetch begins.
type Query struct {
	// Scope selects the event partition.
	Scope Scope

	// Query is the raw search expression.
	Query string

	// Plugins restricts results to the named detector plugins.
	Plugins []string

	// Pages bounds a paginated search. Zero means an immediately empty
	// sequence with no network calls.
	Pages int

	// Bulk selects the streaming bulk endpoint instead of pagination.
	Bulk bool
}

// Validate checks the caller-supplied combination before any fetch.
func (q Query) Validate() error {
	if !q.Scope.Valid() {
		return ErrInvalidScope
	}
	if q.Bulk && q.Scope != ScopeLeak {
		return ErrBulkScope
	}
	return nil
}

// QueryString returns the search expression with the plugin filter
// appended, e.g. `ssh +plugin:(OpenSSH GitConfigHttpPlugin)`.
func (q Query) QueryString() string {
	names := make([]string, 0, len(q.Plugins))
	for _, p := range q.Plugins {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	if len(names) == 0 {
		return q.Query
	}
	return fmt.Sprintf("%s +plugin:(%s)", q.Query, strings.Join(names, " "))
}

// Fetcher is the engines' view of the API transport. *transport.Client
// implements it; tests substitute scripted fakes.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string, params map[string]string) transport.Outcome
	OpenStream(ctx context.Context, endpoint string, params map[string]string) (io.ReadCloser, error)
}
