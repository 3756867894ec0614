package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// maxLine bounds one decoded line. Aggregated multi-occurrence fields
// can be long.
const maxLine = 16 << 20

// TSV reads pre-decoded rows from a file. Each line is
//
//	<Type>\t<value>\t<value>...
//
// Blank lines and lines starting with '#' are ignored.
type TSV struct {
	Path string
}

// Streams returns a single stream over the whole file.
func (s TSV) Streams(reqs []TypeRequest) ([]Stream, error) {
	if err := checkRequests(reqs); err != nil {
		return nil, err
	}
	return []Stream{{
		Name: "tsv " + s.Path,
		Run: func(ctx context.Context, emit Emit) error {
			f, err := os.Open(s.Path)
			if err != nil {
				return fmt.Errorf("open rows: %w", err)
			}
			defer f.Close()
			return ReadTSV(ctx, f, emit)
		},
	}}, nil
}

// ReadTSV parses the TSV row format from r.
func ReadTSV(ctx context.Context, r io.Reader, emit Emit) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLine)

	var line int64
	for sc.Scan() {
		line++
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" || strings.HasPrefix(text, "#") {
			continue
		}
		typ, rest, hasValues := strings.Cut(text, "\t")
		var values []string
		if hasValues {
			values = strings.Split(rest, "\t")
		}
		if err := emit(Row{Type: strings.TrimSpace(typ), Line: line, Values: values}); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read rows at line %d: %w", line+1, err)
	}
	return ctx.Err()
}
