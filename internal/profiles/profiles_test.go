package profiles

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/distance/internal/ingest"
	"github.com/roach88/distance/internal/ir"
	"github.com/roach88/distance/internal/runner"
	"github.com/roach88/distance/internal/sink"
)

func analyze(t *testing.T, profile string, rows ingest.Static) *sink.Recorder {
	t.Helper()
	set, err := Builtin().Load(profile)
	require.NoError(t, err)

	rec := sink.NewRecorder()
	_, err = runner.New(set, rows, runner.Options{Policy: ingest.PolicyAbort},
		runner.WithoutFiles(),
		runner.WithSinks(rec),
		runner.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	).Run(context.Background())
	require.NoError(t, err)
	return rec
}

func eventsNamed(events []sink.Event, name string) []sink.Event {
	var out []sink.Event
	for _, e := range events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

func field(e sink.Event, name string) string {
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// dnsRow builds a DnsPacket row: frame, src, dst, id, response, rcode,
// name, time.
func dnsRow(values ...string) ingest.Row {
	return ingest.Row{Type: "DnsPacket", Values: values}
}

func TestRegistry(t *testing.T) {
	r := Builtin()
	assert.Equal(t, []string{"dns", "lan"}, r.Names())

	_, err := r.Select("dns", "wifi")
	assert.ErrorContains(t, err, `unknown profile "wifi" (available: dns, lan)`)

	_, err = r.Select()
	assert.ErrorContains(t, err, "no profile selected")

	ps, err := r.Select("lan", "dns", "lan")
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "lan", ps[0].Name)

	_, err = NewRegistry(DNS(), DNS())
	assert.ErrorContains(t, err, `"dns" registered twice`)
}

func TestRegistry_LoadAll(t *testing.T) {
	set, err := Builtin().Load("dns", "lan")
	require.NoError(t, err)
	assert.Equal(t, 11, set.Len())

	unresponsive, ok := set.Rule("DnsServerUnresponsive")
	require.True(t, ok)
	assert.Equal(t, 1, unresponsive.Stratum, "negates a derived type")

	server, ok := set.Rule("DnsServer")
	require.True(t, ok)
	assert.Equal(t, 0, server.Stratum)

	filters := map[string]string{}
	for _, req := range ingest.Requests(set.Catalog()) {
		filters[req.Type] = req.Filter
	}
	assert.Equal(t, map[string]string{"DnsPacket": "dns", "IpPacket": "ip"}, filters)
}

func TestLookupRcode(t *testing.T) {
	assert.Equal(t, Rcode{3, "NXDOMAIN", "Domain name does not exist"}, LookupRcode(3))
	assert.Equal(t, "NOERROR", LookupRcode(0).Name)
	assert.Equal(t, "NOTZONE", LookupRcode(9).Name)
	assert.Equal(t, Rcode{12, "RCODE12", "Unknown response code"}, LookupRcode(12))
	assert.Equal(t, "RCODE-1", LookupRcode(-1).Name)
}

func TestDNS_ResponseError(t *testing.T) {
	rec := analyze(t, "dns", ingest.Static{
		dnsRow("1", "10.0.0.2", "10.0.0.1", "0x0001", "False", "0", "example.com", ""),
		dnsRow("2", "10.0.0.1", "10.0.0.2", "0x0001", "True", "3", "example.com", "0.012"),
	})

	events := rec.Events()
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, "ResponseError", ev.Name)
	assert.Equal(t, ir.SeverityError, ev.Severity)
	assert.Equal(t, "DNS query for example.com from 10.0.0.2 to 10.0.0.1 failed with NXDOMAIN: Domain name does not exist.", ev.Message)
	assert.Equal(t, "NXDOMAIN", field(ev, "RcodeName"))

	records := rec.Records()
	require.Len(t, records, 1)
	assert.Equal(t, ir.SeverityError, records[0].Level)
	assert.Contains(t, records[0].Message, "yields to error NXDOMAIN (Domain name does not exist)")
}

func TestDNS_NoResponse(t *testing.T) {
	rec := analyze(t, "dns", ingest.Static{
		dnsRow("1", "10.0.0.2", "10.0.0.1", "0x0001", "False", "0", "example.com", ""),
	})

	events := rec.Events()
	noResponse := eventsNamed(events, "NoResponse")
	require.Len(t, noResponse, 1)
	assert.Contains(t, field(noResponse[0], "Query"), "dns.id=1")

	down := eventsNamed(events, "DnsServerDown")
	require.Len(t, down, 1)
	assert.Equal(t, "DNS server 10.0.0.1 did not answer any query.", down[0].Message)
	assert.Empty(t, eventsNamed(events, "ResponseError"))
}

func TestDNS_ResponseToAnotherClient(t *testing.T) {
	rec := analyze(t, "dns", ingest.Static{
		dnsRow("1", "10.0.0.2", "10.0.0.1", "7", "False", "0", "example.com", ""),
		dnsRow("2", "10.0.0.1", "10.0.0.3", "7", "True", "0", "example.com", "0.01"),
	})
	assert.Len(t, eventsNamed(rec.Events(), "NoResponse"), 1, "an answer must go back to the asking client")
}

func TestDNS_UnreliableServer(t *testing.T) {
	rec := analyze(t, "dns", ingest.Static{
		dnsRow("1", "10.0.0.2", "10.0.0.1", "1", "False", "0", "a.example", ""),
		dnsRow("2", "10.0.0.1", "10.0.0.2", "1", "True", "0", "a.example", "0.02"),
		dnsRow("3", "10.0.0.2", "10.0.0.1", "2", "False", "0", "b.example", ""),
	})

	events := rec.Events()
	assert.Len(t, eventsNamed(events, "NoResponse"), 1)
	assert.Len(t, eventsNamed(events, "DnsServerUnreliable"), 1)
	assert.Empty(t, eventsNamed(events, "DnsServerDown"))
}

func TestDNS_LateResponse(t *testing.T) {
	rec := analyze(t, "dns", ingest.Static{
		dnsRow("1", "10.0.0.2", "10.0.0.1", "9", "False", "0", "slow.example", ""),
		dnsRow("2", "10.0.0.1", "10.0.0.2", "9", "True", "0", "slow.example", "6.5"),
		dnsRow("3", "10.0.0.2", "10.0.0.1", "10", "False", "0", "fast.example", ""),
		dnsRow("4", "10.0.0.1", "10.0.0.2", "10", "True", "0", "fast.example", "5"),
	})

	late := eventsNamed(rec.Events(), "LateResponse")
	require.Len(t, late, 1)
	assert.Equal(t, ir.SeverityWarning, late[0].Severity)
	assert.Equal(t, "6.5", field(late[0], "Delay"))
	assert.Contains(t, late[0].Message, "slow.example")
}

// ipRow builds an IpPacket row: frame, eth.src, eth.dst, ip.src, ip.dst.
func ipRow(values ...string) ingest.Row {
	return ingest.Row{Type: "IpPacket", Values: values}
}

func TestLAN(t *testing.T) {
	rec := analyze(t, "lan", ingest.Static{
		ipRow("1", "AA:AA:AA:AA:AA:02", "bb:bb:bb:bb:bb:bb", "192.168.1.10", "192.168.1.1"),
		ipRow("2", "aa:aa:aa:aa:aa:01", "bb:bb:bb:bb:bb:bb", "192.168.1.10", "192.168.1.1"),
		ipRow("3", "aa:aa:aa:aa:aa:01", "bb:bb:bb:bb:bb:bb", "192.168.1.10", "8.8.8.8"),
		ipRow("4", "aa:aa:aa:aa:aa:03", "bb:bb:bb:bb:bb:bb", "169.254.3.4", "192.168.1.1"),
		ipRow("5", "aa:aa:aa:aa:aa:04", "ff:ff:ff:ff:ff:ff", "0.0.0.0", "255.255.255.255"),
		ipRow("6", "aa:aa:aa:aa:aa:05", "ff:ff:ff:ff:ff:ff", "0.0.0.0", "255.255.255.255"),
	})

	events := rec.Events()
	conflicts := eventsNamed(events, "IpAddressConflict")
	require.Len(t, conflicts, 1)
	assert.Equal(t, "[aa:aa:aa:aa:aa:01,aa:aa:aa:aa:aa:02]", field(conflicts[0], "EthAddresses"))
	assert.Equal(t, "Two or more network hosts have been assigned the same network address 192.168.1.10: [aa:aa:aa:aa:aa:01,aa:aa:aa:aa:aa:02].", conflicts[0].Message)

	linkLocal := eventsNamed(events, "LinkLocalIpAddressUse")
	require.Len(t, linkLocal, 1)
	assert.Equal(t, "Host aa:aa:aa:aa:aa:03 uses link local IP address 169.254.3.4.", linkLocal[0].Message)

	assert.Len(t, events, 2, "DHCP discovery from 0.0.0.0 is not a conflict")
}

func TestIsLinkLocal(t *testing.T) {
	for addr, want := range map[string]bool{
		"169.254.0.1":        true,
		"169.254.255.255":    true,
		"::ffff:169.254.1.1": true,
		"169.253.1.1":        false,
		"192.168.1.1":        false,
		"fe80::1":            false,
		"not-an-ip":          false,
		"":                   false,
	} {
		assert.Equal(t, want, IsLinkLocal(addr), addr)
	}
}
