package search

import (
	"context"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/leakix-tools/leakix-go/pkg/transport"
)

// fakeFetcher scripts one outcome per page index and a canned bulk body.
type fakeFetcher struct {
	pages       map[int]transport.Outcome
	fetchCalls  int
	streamCalls int
	streamBody  io.Reader
	streamErr   error
	lastStream  *trackingBody
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string, params map[string]string) transport.Outcome {
	f.fetchCalls++
	page, _ := strconv.Atoi(params["page"])
	if outcome, ok := f.pages[page]; ok {
		return outcome
	}
	return transport.Outcome{Kind: transport.KindEndOfResults}
}

func (f *fakeFetcher) OpenStream(_ context.Context, _ string, _ map[string]string) (io.ReadCloser, error) {
	f.streamCalls++
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	f.lastStream = &trackingBody{reader: f.streamBody}
	return f.lastStream, nil
}

// trackingBody counts Close calls on a bulk connection.
type trackingBody struct {
	reader     io.Reader
	closeCount atomic.Int32
}

func (b *trackingBody) Read(p []byte) (int, error) {
	return b.reader.Read(p)
}

func (b *trackingBody) Close() error {
	b.closeCount.Add(1)
	return nil
}

func pageOutcome(body string) transport.Outcome {
	records, err := transport.SplitRecords([]byte(body))
	if err != nil {
		panic("bad test payload: " + err.Error())
	}
	return transport.Outcome{
		Kind:    transport.KindPage,
		Records: records,
		Raw:     []byte(body),
	}
}

// endlessFrames produces bulk NDJSON frames forever.
type endlessFrames struct {
	buf []byte
}

func (e *endlessFrames) Read(p []byte) (int, error) {
	for len(e.buf) < len(p) {
		e.buf = append(e.buf, []byte(`{"events":[{"ip":"10.0.0.1","event_type":"leak"}]}`+"\n")...)
	}
	n := copy(p, e.buf)
	e.buf = e.buf[n:]
	return n, nil
}

func ndjson(lines ...string) io.Reader {
	return strings.NewReader(strings.Join(lines, "\n") + "\n")
}
