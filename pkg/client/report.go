package client

import (
	"bufio"
	"fmt"
	"io"
	"iter"

	"github.com/leakix-tools/leakix-go/pkg/record"
)

// WriteOptions controls WriteRecords formatting.
type WriteOptions struct {
	// Fields to project per record. Empty selects record.DefaultFields.
	Fields []string

	// Raw writes the record's JSON instead of a projection.
	Raw bool

	// Dedup suppresses repeated output lines.
	Dedup bool
}

// WriteRecords drains seq into w, one line per record, and returns the
// number of lines written. Sequence errors abort the drain; everything
// written so far stays written.
func WriteRecords(w io.Writer, seq iter.Seq2[record.Record, error], opts WriteOptions) (int, error) {
	fields := opts.Fields
	if len(fields) == 0 {
		fields = record.DefaultFields
	}

	bw := bufio.NewWriter(w)
	var seen map[string]struct{}
	if opts.Dedup {
		seen = make(map[string]struct{})
	}

	written := 0
	for rec, err := range seq {
		if err != nil {
			if ferr := bw.Flush(); ferr != nil {
				return written, ferr
			}
			return written, err
		}

		line := rec.Project(fields)
		if opts.Raw {
			line = string(rec.Raw())
		}
		if line == "" {
			continue
		}
		if opts.Dedup {
			if _, dup := seen[line]; dup {
				continue
			}
			seen[line] = struct{}{}
		}

		if _, err := fmt.Fprintln(bw, line); err != nil {
			return written, err
		}
		written++
	}
	if err := bw.Flush(); err != nil {
		return written, err
	}
	return written, nil
}
