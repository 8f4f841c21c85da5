package search

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/leakix-tools/leakix-go/pkg/logging"
	"github.com/leakix-tools/leakix-go/pkg/record"
)

// bulkMaxLineSize bounds a single NDJSON frame. Event frames can carry
// large leak bodies.
const bulkMaxLineSize = 10 * 1024 * 1024

// BulkStream is a forward-only cursor over one open bulk connection.
// Each line of the stream is parsed independently; a line that fails to
// parse is skipped so a single bad frame never loses the remainder of the
// stream. Lines carrying an "events" array are flattened into individual
// records.
//
// The underlying connection is owned exclusively by the stream and is
// released exactly once, whichever way the cursor is abandoned: normal
// exhaustion, an explicit Close, or the deferred Close of a surrounding
// sequence.
type BulkStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	pending []json.RawMessage

	closeOnce sync.Once
	closed    bool
	yielded   int
	logger    zerolog.Logger
}

// OpenBulk validates the query and opens the bulk connection. The
// bulk + service combination is rejected before any network call.
func OpenBulk(ctx context.Context, fetcher Fetcher, q Query) (*BulkStream, error) {
	bulkQuery := q
	bulkQuery.Bulk = true
	if err := bulkQuery.Validate(); err != nil {
		return nil, err
	}

	params := map[string]string{"q": q.QueryString()}
	body, err := fetcher.OpenStream(ctx, BulkEndpoint, params)
	if err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), bulkMaxLineSize)

	return &BulkStream{
		body:    body,
		scanner: scanner,
		logger:  logging.NewLogger("bulk"),
	}, nil
}

// Next returns the next record. ok is false once the stream is exhausted,
// dropped, or closed; the connection is released before Next returns
// false. A dropped stream is not an error: bulk delivery is best-effort,
// and whatever was yielded before the drop stands.
func (s *BulkStream) Next() (record.Record, bool) {
	if s.closed {
		return record.Record{}, false
	}

	for {
		if len(s.pending) > 0 {
			raw := s.pending[0]
			s.pending = s.pending[1:]
			s.yielded++
			return record.New(raw), true
		}

		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				s.logger.Warn().Err(err).Int("yielded", s.yielded).Msg("Bulk stream dropped")
			}
			if s.yielded == 0 {
				s.logger.Warn().Msg("No results returned from bulk query")
			}
			s.Close()
			return record.Record{}, false
		}

		s.pending = parseBulkLine(s.scanner.Bytes())
	}
}

// Close releases the underlying connection. Safe to call any number of
// times from the consuming goroutine; only the first call closes.
func (s *BulkStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed = true
		err = s.body.Close()
	})
	return err
}

// parseBulkLine extracts the events of one NDJSON frame. Blank lines,
// non-JSON noise and unparsable frames yield nothing.
func parseBulkLine(line []byte) []json.RawMessage {
	text := strings.TrimSpace(string(line))
	if text == "" || (text[0] != '{' && text[0] != '[') {
		return nil
	}

	var frame struct {
		Events []json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal([]byte(text), &frame); err != nil {
		return nil
	}
	return frame.Events
}
