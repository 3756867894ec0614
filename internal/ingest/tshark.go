package ingest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultTshark is the decoder binary looked up on PATH.
const DefaultTshark = "tshark"

// Tshark decodes a capture with Wireshark's tshark, one process per
// requested type.
type Tshark struct {
	// Path is the tshark binary. Empty means DefaultTshark.
	Path string

	// Capture is the packet capture to read.
	Capture string

	// ExtraArgs are passed before the generated arguments.
	ExtraArgs []string
}

// Streams returns one stream per request.
func (t Tshark) Streams(reqs []TypeRequest) ([]Stream, error) {
	if err := checkRequests(reqs); err != nil {
		return nil, err
	}
	streams := make([]Stream, 0, len(reqs))
	for _, req := range reqs {
		if len(req.Fields) == 0 {
			return nil, fmt.Errorf("type %s requests no fields", req.Type)
		}
		streams = append(streams, Stream{
			Name: "tshark " + req.Type,
			Run: func(ctx context.Context, emit Emit) error {
				return t.run(ctx, req, emit)
			},
		})
	}
	return streams, nil
}

// Args returns the tshark command line for req, without the binary.
func (t Tshark) Args(req TypeRequest) []string {
	args := append([]string(nil), t.ExtraArgs...)
	args = append(args, "-r", t.Capture)
	if req.Filter != "" {
		args = append(args, "-Y", req.Filter)
	}
	args = append(args,
		"-T", "fields",
		"-E", "separator=/t",
		"-E", "occurrence=a",
		"-E", "aggregator=,",
	)
	for _, f := range req.Fields {
		args = append(args, "-e", f)
	}
	return args
}

func (t Tshark) binary() string {
	if t.Path != "" {
		return t.Path
	}
	return DefaultTshark
}

func (t Tshark) run(ctx context.Context, req TypeRequest, emit Emit) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.binary(), t.Args(req)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("tshark %s: %w", req.Type, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start tshark for %s: %w", req.Type, err)
	}

	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 0, 64<<10), maxLine)
	var (
		line    int64
		emitErr error
	)
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if err := emit(Row{Type: req.Type, Line: line, Values: strings.Split(text, "\t")}); err != nil {
			emitErr = err
			cancel()
			break
		}
	}
	scanErr := sc.Err()

	waitErr := cmd.Wait()
	switch {
	case emitErr != nil:
		return emitErr
	case ctx.Err() != nil:
		return ctx.Err()
	case scanErr != nil:
		return fmt.Errorf("read tshark output for %s: %w", req.Type, scanErr)
	case waitErr != nil:
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("tshark %s: %w", req.Type, waitErr)
		}
		return fmt.Errorf("tshark %s: %w: %s", req.Type, waitErr, msg)
	}
	return nil
}
