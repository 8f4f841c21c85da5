package search

import (
	"errors"
	"iter"

	"github.com/leakix-tools/leakix-go/pkg/record"
)

// ErrEmptySequence is returned by First when the sequence yields nothing.
var ErrEmptySequence = errors.New("result sequence is empty")

// Collect drains a record sequence into a slice. It stops on the first
// error and returns the records collected so far along with it.
func Collect(seq iter.Seq2[record.Record, error]) ([]record.Record, error) {
	var result []record.Record
	for rec, err := range seq {
		if err != nil {
			return result, err
		}
		result = append(result, rec)
	}
	return result, nil
}

// CollectN drains up to n records from a sequence. The sequence's cleanup
// runs when the range loop exits, so breaking early still releases any
// open bulk connection.
func CollectN(seq iter.Seq2[record.Record, error], n int) ([]record.Record, error) {
	result := make([]record.Record, 0, n)
	for rec, err := range seq {
		if err != nil {
			return result, err
		}
		result = append(result, rec)
		if len(result) >= n {
			break
		}
	}
	return result, nil
}

// First returns the first record of a sequence, or ErrEmptySequence.
func First(seq iter.Seq2[record.Record, error]) (record.Record, error) {
	for rec, err := range seq {
		return rec, err
	}
	return record.Record{}, ErrEmptySequence
}
