package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, streams []Stream) []Row {
	t.Helper()
	var rows []Row
	for _, s := range streams {
		require.NoError(t, s.Run(context.Background(), func(r Row) error {
			rows = append(rows, r)
			return nil
		}))
	}
	return rows
}

func TestStatic(t *testing.T) {
	src := Static{
		{Type: "Query", Values: []string{"1", "a", "b"}},
		{Type: "Query", Line: 40, Values: []string{"2", "a", "b"}},
	}
	streams, err := src.Streams(nil)
	require.NoError(t, err)
	require.Len(t, streams, 1)

	rows := collect(t, streams)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0].Line, "missing lines are numbered")
	assert.Equal(t, int64(40), rows[1].Line)

	_, err = src.Streams([]TypeRequest{{Type: "Q"}, {Type: "Q"}})
	assert.Error(t, err)
}

func TestReadTSV(t *testing.T) {
	input := strings.Join([]string{
		"# decoded by hand",
		"Query\t1\t10.0.0.1\t10.0.0.53",
		"",
		"Response\t1\t10.0.0.53\t10.0.0.1\t\r",
		"Empty",
	}, "\n")

	var rows []Row
	err := ReadTSV(context.Background(), strings.NewReader(input), func(r Row) error {
		rows = append(rows, r)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, Row{Type: "Query", Line: 2, Values: []string{"1", "10.0.0.1", "10.0.0.53"}}, rows[0])
	assert.Equal(t, Row{Type: "Response", Line: 4, Values: []string{"1", "10.0.0.53", "10.0.0.1", ""}}, rows[1], "trailing empty field is kept")
	assert.Equal(t, Row{Type: "Empty", Line: 5}, rows[2])
}

func TestReadTSV_EmitErrorStops(t *testing.T) {
	stop := errors.New("stop")
	n := 0
	err := ReadTSV(context.Background(), strings.NewReader("A\t1\nA\t2\nA\t3\n"), func(Row) error {
		n++
		if n == 2 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 2, n)
}

func TestTSV_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.tsv")
	require.NoError(t, os.WriteFile(path, []byte("Query\t1\ta\tb\n"), 0o644))

	streams, err := TSV{Path: path}.Streams(nil)
	require.NoError(t, err)
	assert.Len(t, collect(t, streams), 1)

	streams, err = TSV{Path: filepath.Join(t.TempDir(), "missing.tsv")}.Streams(nil)
	require.NoError(t, err)
	err = streams[0].Run(context.Background(), func(Row) error { return nil })
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestTshark_Args(t *testing.T) {
	ts := Tshark{Capture: "home.pcap", ExtraArgs: []string{"-n"}}

	args := ts.Args(TypeRequest{Type: "DnsPacket", Filter: "dns", Fields: []string{"dns.id", "ip.src"}})
	assert.Equal(t, []string{
		"-n",
		"-r", "home.pcap",
		"-Y", "dns",
		"-T", "fields",
		"-E", "separator=/t",
		"-E", "occurrence=a",
		"-E", "aggregator=,",
		"-e", "dns.id",
		"-e", "ip.src",
	}, args)

	args = ts.Args(TypeRequest{Type: "Frame", Fields: []string{"frame.number"}})
	assert.NotContains(t, args, "-Y", "no display filter")
	assert.Equal(t, DefaultTshark, ts.binary())
}

func TestTshark_Streams(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake decoder is a shell script")
	}

	// The fake decoder prints two rows for whatever it is asked.
	bin := filepath.Join(t.TempDir(), "fake-tshark")
	script := "#!/bin/sh\nprintf '1\\t10.0.0.1\\t10.0.0.53\\n'\nprintf '2\\t10.0.0.1,10.0.0.2\\t10.0.0.53\\n'\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))

	ts := Tshark{Path: bin, Capture: "x.pcap"}
	streams, err := ts.Streams([]TypeRequest{
		{Type: "Query", Fields: []string{"dns.id", "ip.src", "ip.dst"}},
		{Type: "Response", Fields: []string{"dns.id", "ip.src", "ip.dst"}},
	})
	require.NoError(t, err)
	require.Len(t, streams, 2)
	assert.Equal(t, "tshark Response", streams[1].Name)

	rows := collect(t, streams)
	require.Len(t, rows, 4)
	assert.Equal(t, Row{Type: "Query", Line: 2, Values: []string{"2", "10.0.0.1,10.0.0.2", "10.0.0.53"}}, rows[1])
	assert.Equal(t, "Response", rows[2].Type)
}

func TestTshark_Failure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake decoder is a shell script")
	}

	bin := filepath.Join(t.TempDir(), "fake-tshark")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\necho 'capture is truncated' >&2\nexit 2\n"), 0o755))

	streams, err := Tshark{Path: bin, Capture: "x.pcap"}.Streams([]TypeRequest{{Type: "Query", Fields: []string{"dns.id"}}})
	require.NoError(t, err)
	err = streams[0].Run(context.Background(), func(Row) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capture is truncated")

	_, err = Tshark{}.Streams([]TypeRequest{{Type: "Query"}})
	assert.Error(t, err, "a request without fields")
}
