package ingest

import (
	"context"
	"fmt"
)

// Emit receives one row. A non-nil error stops the stream.
type Emit func(Row) error

// Stream produces rows until its input is exhausted, ctx is done, or emit
// fails. Streams of one source may run concurrently.
type Stream struct {
	// Name labels the stream in logs and errors.
	Name string
	Run  func(ctx context.Context, emit Emit) error
}

// Source splits a capture into independent row streams.
type Source interface {
	Streams(reqs []TypeRequest) ([]Stream, error)
}

// Static serves fixed rows. Tests and the scenario harness use it.
type Static []Row

// Streams returns a single stream over every row. Rows are not filtered
// by the requests; Parse rejects types that cannot be ingested.
func (s Static) Streams(reqs []TypeRequest) ([]Stream, error) {
	if err := checkRequests(reqs); err != nil {
		return nil, err
	}
	rows := append([]Row(nil), s...)
	return []Stream{{
		Name: "static",
		Run: func(ctx context.Context, emit Emit) error {
			for i, r := range rows {
				if err := ctx.Err(); err != nil {
					return err
				}
				if r.Line == 0 {
					r.Line = int64(i + 1)
				}
				if err := emit(r); err != nil {
					return err
				}
			}
			return nil
		},
	}}, nil
}

func checkRequests(reqs []TypeRequest) error {
	seen := make(map[string]bool, len(reqs))
	for _, r := range reqs {
		if seen[r.Type] {
			return fmt.Errorf("type %s requested twice", r.Type)
		}
		seen[r.Type] = true
	}
	return nil
}
