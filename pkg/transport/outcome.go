package transport

import (
	"encoding/json"
	"time"
)

// Kind classifies the result of one API fetch. Every engine decision is a
// switch over this value.
type Kind int

const (
	// KindPage is a successful response carrying records.
	KindPage Kind = iota

	// KindEndOfResults is a well-formed "nothing more to return" response
	// (empty body). Normal termination, not a failure.
	KindEndOfResults

	// KindPageLimit is the upstream sentinel for an account-tier page
	// limit. Terminal for the query regardless of pages remaining.
	KindPageLimit

	// KindRateLimited is an HTTP 429, optionally carrying a wait hint.
	KindRateLimited

	// KindTransportError covers network failures, timeouts and non-2xx
	// statuses without special meaning.
	KindTransportError

	// KindMalformed is a body that failed to parse as JSON.
	KindMalformed
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindPage:
		return "page"
	case KindEndOfResults:
		return "end_of_results"
	case KindPageLimit:
		return "page_limit"
	case KindRateLimited:
		return "rate_limited"
	case KindTransportError:
		return "transport_error"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of one API fetch.
type Outcome struct {
	Kind Kind

	// Records holds the individual record documents of a page response.
	Records []json.RawMessage

	// Raw is the full response payload, kept for caching.
	Raw json.RawMessage

	// RetryAfter is the rate-limit wait hint. Zero means the upstream did
	// not specify one and the caller should apply its own backoff policy.
	RetryAfter time.Duration

	// Status is the HTTP status code, when a response was received.
	Status int

	// Err carries the network-level failure of a transport error.
	Err error

	// CacheTTL is the TTL extracted from response caching headers.
	// Zero means no override; the cache default applies.
	CacheTTL time.Duration
}
