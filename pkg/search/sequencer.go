package search

import (
	"context"
	"iter"
	"time"

	"github.com/leakix-tools/leakix-go/pkg/cache"
	"github.com/leakix-tools/leakix-go/pkg/record"
)

// Sequencer unifies the pagination and bulk engines behind one lazy
// sequence contract. The caller drives progress by pulling records; no
// prefetching happens in the background, and abandoning the sequence
// early releases whatever engine-level resource is open.
type Sequencer struct {
	fetcher Fetcher
	store   cache.Store
	delay   time.Duration
}

// NewSequencer creates a result sequencer. store may be nil to disable
// response caching for paginated queries.
func NewSequencer(fetcher Fetcher, store cache.Store, delay time.Duration) *Sequencer {
	return &Sequencer{fetcher: fetcher, store: store, delay: delay}
}

// Results validates the query and returns its record sequence. The
// sequence is single-pass and finite in paginated mode (bounded by
// q.Pages); in bulk mode it runs for the life of the stream. Restart by
// calling Results again; there is no rewind.
//
// Validation failures (unknown scope, bulk + service) are returned here,
// before any network traffic. Runtime anomalies are handled inside the
// sequence per engine policy.
func (s *Sequencer) Results(ctx context.Context, q Query) (iter.Seq2[record.Record, error], error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if q.Bulk {
		return s.bulkSequence(ctx, q), nil
	}
	return NewPager(s.fetcher, s.store, s.delay).Records(ctx, q), nil
}

// bulkSequence opens the stream on first pull and guarantees the
// connection is released on every exit path: exhaustion, caller break,
// and error all run the same deferred Close, which is idempotent with the
// release Next performs at end of stream.
func (s *Sequencer) bulkSequence(ctx context.Context, q Query) iter.Seq2[record.Record, error] {
	return func(yield func(record.Record, error) bool) {
		stream, err := OpenBulk(ctx, s.fetcher, q)
		if err != nil {
			yield(record.Record{}, err)
			return
		}
		defer stream.Close()

		for {
			rec, ok := stream.Next()
			if !ok {
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}
