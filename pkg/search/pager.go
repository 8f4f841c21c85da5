package search

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/leakix-tools/leakix-go/pkg/cache"
	"github.com/leakix-tools/leakix-go/pkg/logging"
	"github.com/leakix-tools/leakix-go/pkg/record"
	"github.com/leakix-tools/leakix-go/pkg/transport"
)

// DefaultPageDelay is the politeness throttle between successive network
// page fetches. Cache hits bypass it entirely.
const DefaultPageDelay = 1200 * time.Millisecond

// pagerState tracks where the page loop is for one query.
type pagerState int

const (
	stateFetching pagerState = iota
	stateExhausted
	stateFailed
)

// Pager fetches search pages strictly in sequence, consulting the cache
// store before the network for every page. Pages are independent requests
// upstream; serializing them keeps rate-limit handling predictable.
type Pager struct {
	fetcher Fetcher
	store   cache.Store
	delay   time.Duration
	logger  zerolog.Logger
}

// NewPager creates a pagination engine. store may be nil to disable
// caching. A negative delay disables the politeness throttle; zero
// selects DefaultPageDelay.
func NewPager(fetcher Fetcher, store cache.Store, delay time.Duration) *Pager {
	if delay == 0 {
		delay = DefaultPageDelay
	}
	return &Pager{
		fetcher: fetcher,
		store:   store,
		delay:   delay,
		logger:  logging.NewLogger("pager"),
	}
}

// Records returns the lazy sequence of records across up to q.Pages
// pages. Pages == 0 yields an empty sequence with zero transport calls.
//
// Network and data anomalies end the sequence with a diagnostic; records
// already yielded stay valid. Only a rate limit (surfaced with its wait
// hint) and a malformed first page are reported through the iterator's
// error value.
func (p *Pager) Records(ctx context.Context, q Query) iter.Seq2[record.Record, error] {
	return func(yield func(record.Record, error) bool) {
		queryString := q.QueryString()
		state := stateFetching
		emitted := 0
		networkFetches := 0

		for page := 0; page < q.Pages && state == stateFetching; page++ {
			params := map[string]string{
				"page":  strconv.Itoa(page),
				"q":     queryString,
				"scope": string(q.Scope),
			}
			key := cache.Key{Endpoint: SearchEndpoint, Params: params}

			if records, ok := p.fromCache(ctx, key); ok {
				p.logger.Debug().Int("page", page).Msg("Page served from cache")
				if len(records) == 0 {
					state = stateExhausted
					break
				}
				for _, raw := range records {
					if !yield(record.New(raw), nil) {
						return
					}
					emitted++
				}
				continue
			}

			// Politeness throttle between network fetches only. The first
			// fetch and all cache hits skip it.
			if networkFetches > 0 && p.delay > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(p.delay):
				}
			}

			outcome := p.fetcher.Fetch(ctx, SearchEndpoint, params)
			networkFetches++

			switch outcome.Kind {
			case transport.KindPage:
				p.cachePage(ctx, key, outcome)
				records := dropLeadingMeta(outcome.Records)
				if len(records) == 0 {
					state = stateExhausted
					break
				}
				for _, raw := range records {
					if !yield(record.New(raw), nil) {
						return
					}
					emitted++
				}

			case transport.KindEndOfResults:
				p.logger.Debug().Int("page", page).Msg("No more results")
				state = stateExhausted

			case transport.KindPageLimit:
				p.logger.Warn().Int("page", page).Msg("Page limit reached for this account tier")
				state = stateExhausted

			case transport.KindRateLimited:
				p.logger.Warn().
					Dur("retry_after", outcome.RetryAfter).
					Int("page", page).
					Msg("Rate limited, stopping")
				state = stateFailed
				yield(record.Record{}, &RateLimitError{RetryAfter: outcome.RetryAfter})

			case transport.KindMalformed:
				p.logger.Warn().Int("page", page).Msg("Malformed page payload, stopping")
				state = stateExhausted
				if page == 0 && emitted == 0 {
					yield(record.Record{}, ErrMalformedFirstPage)
				}

			case transport.KindTransportError:
				p.logger.Warn().Err(outcome.Err).Int("page", page).Msg("Transport error, stopping")
				state = stateExhausted
			}
		}
	}
}

// fromCache returns the cached page records for key, already stripped of
// any leading metadata element.
func (p *Pager) fromCache(ctx context.Context, key cache.Key) ([]json.RawMessage, bool) {
	if p.store == nil {
		return nil, false
	}

	data, err := p.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			p.logger.Warn().Err(err).Msg("Cache read failed")
		}
		return nil, false
	}

	records, err := transport.SplitRecords(data)
	if err != nil {
		// A cached payload that no longer parses is treated as a miss.
		_ = p.store.Invalidate(ctx, key)
		return nil, false
	}
	return dropLeadingMeta(records), true
}

// cachePage stores the raw page payload, honoring a TTL override
// extracted from the response headers. Cache failures only cost later
// latency and are never surfaced.
func (p *Pager) cachePage(ctx context.Context, key cache.Key, outcome transport.Outcome) {
	if p.store == nil {
		return
	}
	if err := p.store.Set(ctx, key, outcome.Raw, outcome.CacheTTL); err != nil {
		p.logger.Warn().Err(err).Msg("Cache write failed")
	}
}

// dropLeadingMeta strips the leading envelope element some wire formats
// embed at the head of a page array. An element counts as metadata only
// when it carries none of the fields that identify an event.
func dropLeadingMeta(records []json.RawMessage) []json.RawMessage {
	if len(records) == 0 {
		return records
	}
	if isMetaElement(records[0]) {
		return records[1:]
	}
	return records
}

var eventMarkers = []string{"ip", "host", "event_type", "event_source"}

func isMetaElement(raw json.RawMessage) bool {
	r := record.New(raw)
	for _, marker := range eventMarkers {
		if _, ok := r.Field(marker); ok {
			return false
		}
	}
	return true
}
