// Package harness runs YAML scenarios against the built-in diagnostic
// profiles and checks what they report.
//
// A scenario names the profiles to load, supplies decoded rows inline or
// from a TSV file, and lists assertions over the resulting events, log
// lines, final working memory, and run summary:
//
//	name: dns_nxdomain
//	profiles: [dns]
//	rows:
//	  - type: DnsPacket
//	    values: ["1", "10.0.0.2", "10.0.0.1", "0x0001", "False", "0", "example.com", ""]
//	assertions:
//	  - type: event_count
//	    event: ResponseError
//	    count: 1
//
// Runs are deterministic: the run id is fixed, no files are written, and
// the agenda orders firings without regard to wall-clock time. Golden
// snapshots (see RunWithGolden) strip sequence numbers and elapsed time
// so they compare byte for byte.
package harness
