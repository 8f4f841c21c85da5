// Package stats computes value-frequency summaries over a record sequence.
package stats

import (
	"iter"
	"sort"
	"strings"

	"github.com/leakix-tools/leakix-go/pkg/record"
)

// DefaultFields are the event attributes tallied when the caller does not
// pick their own.
var DefaultFields = []string{
	"geoip.country_name",
	"geoip.city_name",
	"protocol",
	"port",
	"event_type",
	"event_source",
	"host",
	"transport",
}

// Summary holds per-field value counts over a drained record sequence.
type Summary struct {
	// Total is the number of records consumed.
	Total int

	// Fields maps a dotted field path to its value frequency table.
	// Fields that never produced a value are absent.
	Fields map[string]map[string]int
}

// Count pairs one field value with its occurrence count.
type Count struct {
	Value string
	N     int
}

// Analyze drains seq once and tallies the given dotted fields. Empty fields
// selects DefaultFields. Records lacking a field simply do not count toward
// it. On a sequence error the summary of everything consumed so far is
// returned alongside the error.
func Analyze(seq iter.Seq2[record.Record, error], fields []string) (Summary, error) {
	if len(fields) == 0 {
		fields = DefaultFields
	}

	summary := Summary{Fields: make(map[string]map[string]int, len(fields))}
	for _, f := range fields {
		summary.Fields[f] = make(map[string]int)
	}

	for rec, err := range seq {
		if err != nil {
			summary.prune()
			return summary, err
		}
		summary.Total++
		for _, f := range fields {
			value, ok := rec.Field(f)
			if !ok {
				continue
			}
			s := strings.TrimSpace(value.String())
			if s == "" {
				continue
			}
			summary.Fields[f][s]++
		}
	}

	summary.prune()
	return summary, nil
}

// prune drops fields that never matched a record.
func (s *Summary) prune() {
	for f, values := range s.Fields {
		if len(values) == 0 {
			delete(s.Fields, f)
		}
	}
}

// Unique returns the number of distinct values seen for field.
func (s Summary) Unique(field string) int {
	return len(s.Fields[field])
}

// Top returns the n most frequent values of field, most frequent first and
// ties broken alphabetically. n <= 0 returns all values.
func (s Summary) Top(field string, n int) []Count {
	values := s.Fields[field]
	if len(values) == 0 {
		return nil
	}

	counts := make([]Count, 0, len(values))
	for v, c := range values {
		counts = append(counts, Count{Value: v, N: c})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].N != counts[j].N {
			return counts[i].N > counts[j].N
		}
		return counts[i].Value < counts[j].Value
	})

	if n > 0 && n < len(counts) {
		counts = counts[:n]
	}
	return counts
}
