package search

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leakix-tools/leakix-go/pkg/cache"
	"github.com/leakix-tools/leakix-go/pkg/transport"
)

// noDelay disables the politeness throttle for tests.
const noDelay = -1 * time.Millisecond

func leakQuery(pages int) Query {
	return Query{Scope: ScopeLeak, Query: "test", Pages: pages}
}

func TestPager_ZeroPages(t *testing.T) {
	fetcher := &fakeFetcher{}
	pager := NewPager(fetcher, nil, noDelay)

	records, err := Collect(pager.Records(context.Background(), leakQuery(0)))

	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, fetcher.fetchCalls, "pages=0 must make no transport calls")
}

func TestPager_EndOfResultsAfterOneCall(t *testing.T) {
	fetcher := &fakeFetcher{} // every page answers EndOfResults
	pager := NewPager(fetcher, nil, noDelay)

	records, err := Collect(pager.Records(context.Background(), leakQuery(5)))

	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 1, fetcher.fetchCalls, "termination must be detected on the first page")
}

func TestPager_PageLimitStopsWithoutError(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]transport.Outcome{
		0: pageOutcome(`[{"ip":"1.1.1.1","port":80}]`),
		1: pageOutcome(`[{"ip":"2.2.2.2","port":80}]`),
		2: {Kind: transport.KindPageLimit},
	}}
	pager := NewPager(fetcher, nil, noDelay)

	records, err := Collect(pager.Records(context.Background(), leakQuery(5)))

	require.NoError(t, err, "page limit is a normal stop, not an error")
	require.Len(t, records, 2)
	assert.Equal(t, "1.1.1.1", records[0].FieldOr("ip", ""))
	assert.Equal(t, "2.2.2.2", records[1].FieldOr("ip", ""))
	assert.Equal(t, 3, fetcher.fetchCalls, "no pages fetched past the limit sentinel")
}

func TestPager_Scenario_LeakTwoPages(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]transport.Outcome{
		0: pageOutcome(`[{"ip":"1.2.3.4","port":80,"protocol":"http"}]`),
		// page 1 answers EndOfResults via the fake's default
	}}
	pager := NewPager(fetcher, nil, noDelay)

	records, err := Collect(pager.Records(context.Background(), leakQuery(2)))

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1.2.3.4", records[0].FieldOr("ip", ""))
}

func TestPager_RateLimitSurfacesWaitHint(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]transport.Outcome{
		0: pageOutcome(`[{"ip":"1.1.1.1"}]`),
		1: {Kind: transport.KindRateLimited, RetryAfter: 60 * time.Second},
	}}
	pager := NewPager(fetcher, nil, noDelay)

	records, err := Collect(pager.Records(context.Background(), leakQuery(5)))

	require.Len(t, records, 1, "records before the rate limit stay valid")
	var rateErr *RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, 60*time.Second, rateErr.RetryAfter)
}

func TestPager_RateLimitWithoutHint(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]transport.Outcome{
		0: {Kind: transport.KindRateLimited},
	}}
	pager := NewPager(fetcher, nil, noDelay)

	_, err := Collect(pager.Records(context.Background(), leakQuery(1)))

	var rateErr *RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Zero(t, rateErr.RetryAfter)
}

func TestPager_MalformedFirstPage(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]transport.Outcome{
		0: {Kind: transport.KindMalformed},
	}}
	pager := NewPager(fetcher, nil, noDelay)

	records, err := Collect(pager.Records(context.Background(), leakQuery(3)))

	assert.Empty(t, records)
	assert.ErrorIs(t, err, ErrMalformedFirstPage)
}

func TestPager_MalformedLaterPageKeepsPartialResults(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]transport.Outcome{
		0: pageOutcome(`[{"ip":"1.1.1.1"}]`),
		1: {Kind: transport.KindMalformed},
	}}
	pager := NewPager(fetcher, nil, noDelay)

	records, err := Collect(pager.Records(context.Background(), leakQuery(5)))

	require.NoError(t, err, "partial good data was produced, sequence ends quietly")
	assert.Len(t, records, 1)
}

func TestPager_TransportErrorFailSoft(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]transport.Outcome{
		0: pageOutcome(`[{"ip":"1.1.1.1"}]`),
		1: {Kind: transport.KindTransportError, Err: assert.AnError},
	}}
	pager := NewPager(fetcher, nil, noDelay)

	records, err := Collect(pager.Records(context.Background(), leakQuery(5)))

	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestPager_CacheHitSkipsNetwork(t *testing.T) {
	ctx := context.Background()
	store := cache.NewFileStore(filepath.Join(t.TempDir(), cache.CacheFileName), 0)

	q := leakQuery(2)
	page0Key := cache.Key{Endpoint: SearchEndpoint, Params: map[string]string{
		"page": "0", "q": q.QueryString(), "scope": "leak",
	}}
	require.NoError(t, store.Set(ctx, page0Key, []byte(`[{"ip":"9.9.9.9"}]`), 0))

	fetcher := &fakeFetcher{pages: map[int]transport.Outcome{
		1: pageOutcome(`[{"ip":"8.8.8.8"}]`),
	}}
	pager := NewPager(fetcher, store, noDelay)

	records, err := Collect(pager.Records(ctx, q))

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "9.9.9.9", records[0].FieldOr("ip", ""))
	assert.Equal(t, "8.8.8.8", records[1].FieldOr("ip", ""))
	assert.Equal(t, 1, fetcher.fetchCalls, "cached page 0 must not hit the network")
}

func TestPager_NetworkPageGetsCached(t *testing.T) {
	ctx := context.Background()
	store := cache.NewFileStore(filepath.Join(t.TempDir(), cache.CacheFileName), 0)

	fetcher := &fakeFetcher{pages: map[int]transport.Outcome{
		0: pageOutcome(`[{"ip":"7.7.7.7"}]`),
	}}
	pager := NewPager(fetcher, store, noDelay)

	q := leakQuery(1)
	_, err := Collect(pager.Records(ctx, q))
	require.NoError(t, err)

	key := cache.Key{Endpoint: SearchEndpoint, Params: map[string]string{
		"page": "0", "q": q.QueryString(), "scope": "leak",
	}}
	cached, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"ip":"7.7.7.7"}]`, string(cached))
}

func TestPager_LeadingMetaElementSkipped(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]transport.Outcome{
		0: pageOutcome(`[{"node":"fr-1","took":12},{"ip":"1.2.3.4","port":80}]`),
	}}
	pager := NewPager(fetcher, nil, noDelay)

	records, err := Collect(pager.Records(context.Background(), leakQuery(1)))

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1.2.3.4", records[0].FieldOr("ip", ""))
}

func TestPager_EarlyBreak(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]transport.Outcome{
		0: pageOutcome(`[{"ip":"1.1.1.1"},{"ip":"2.2.2.2"},{"ip":"3.3.3.3"}]`),
	}}
	pager := NewPager(fetcher, nil, noDelay)

	records, err := CollectN(pager.Records(context.Background(), leakQuery(3)), 1)

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, fetcher.fetchCalls)
}

func TestDropLeadingMeta(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, dropLeadingMeta(nil))
	})
	t.Run("first_is_event", func(t *testing.T) {
		records, _ := transport.SplitRecords([]byte(`[{"ip":"1.2.3.4"},{"ip":"5.6.7.8"}]`))
		assert.Len(t, dropLeadingMeta(records), 2)
	})
	t.Run("first_is_meta", func(t *testing.T) {
		records, _ := transport.SplitRecords([]byte(`[{"took":3},{"ip":"5.6.7.8"}]`))
		assert.Len(t, dropLeadingMeta(records), 1)
	})
}
