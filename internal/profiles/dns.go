package profiles

import (
	_ "embed"
	"fmt"

	"github.com/roach88/distance/internal/ir"
	"github.com/roach88/distance/internal/rule"
)

//go:embed dns.cue
var dnsSchema string

// DelayThreshold is the response time, in seconds, above which a DNS
// answer is reported late.
const DelayThreshold = 5.0

// DNS diagnoses name resolution: failed answers, unanswered and slow
// queries, and servers that stop answering.
func DNS() Profile {
	return Profile{
		Name:        "dns",
		Description: "DNS query failures, missing and late responses, unresponsive servers",
		Schema:      dnsSchema,
		Rules:       dnsRules,
	}
}

// Rcode describes a DNS response code.
type Rcode struct {
	Code        int64
	Name        string
	Description string
}

var rcodes = []Rcode{
	{0, "NOERROR", "DNS Query completed successfully"},
	{1, "FORMERR", "DNS Query Format Error"},
	{2, "SERVFAIL", "Server failed to complete the DNS request"},
	{3, "NXDOMAIN", "Domain name does not exist"},
	{4, "NOTIMP", "Function not implemented"},
	{5, "REFUSED", "The server refused to answer for the query"},
	{6, "YXDOMAIN", "Name that should not exist, does exist"},
	{7, "XRRSET", "RRset that should not exist, does exist"},
	{8, "NOTAUTH", "Server not authoritative for the zone"},
	{9, "NOTZONE", "Name not in zone"},
}

// LookupRcode returns the name and description of a response code.
// Codes outside the table render as "RCODE<n>".
func LookupRcode(code int64) Rcode {
	if code >= 0 && code < int64(len(rcodes)) {
		return rcodes[code]
	}
	return Rcode{Code: code, Name: fmt.Sprintf("RCODE%d", code), Description: "Unknown response code"}
}

func isQuery() rule.Predicate    { return rule.Eq("DnsFlagsResponse", ir.Bool(false)) }
func isResponse() rule.Predicate { return rule.Eq("DnsFlagsResponse", ir.Bool(true)) }

// answers matches a response travelling back from the query's server to
// its client with the query's id.
func answers(query string) []rule.Predicate {
	return []rule.Predicate{
		isResponse(),
		rule.Bound("DnsId", query, "DnsId"),
		rule.Bound("IpSrc", query, "IpDst"),
		rule.Bound("IpDst", query, "IpSrc"),
	}
}

func dnsRules() []rule.Rule {
	return []rule.Rule{
		{
			Name:        "DnsServer",
			Description: "Every query destination is a DNS server.",
			Priority:    10,
			Patterns: []rule.Pattern{
				rule.Match("query", "DnsPacket", isQuery()),
			},
			Produces: []string{"DnsServer"},
			Action: func(ctx rule.Context) error {
				q := ctx.Fact("query")
				ip, _ := q.Get("IpDst")
				server, err := ctx.New("DnsServer", ip)
				if err != nil {
					return err
				}
				_, err = ctx.Insert(server)
				return err
			},
		},
		{
			Name:        "DnsRequestResponse",
			Description: "Pair each query with its response.",
			Priority:    10,
			Patterns: []rule.Pattern{
				rule.Match("query", "DnsPacket", isQuery()),
				rule.Match("response", "DnsPacket", answers("query")...),
			},
			Produces: []string{"DnsQueryResponse"},
			Action: func(ctx rule.Context) error {
				qr, err := ctx.New("DnsQueryResponse",
					ir.NewRef(ctx.Fact("query")),
					ir.NewRef(ctx.Fact("response")))
				if err != nil {
					return err
				}
				_, err = ctx.Insert(qr)
				return err
			},
		},
		{
			Name:        "DnsResponseError",
			Description: "A response carries a non-zero rcode.",
			Priority:    5,
			Patterns: []rule.Pattern{
				rule.Match("qr", "DnsQueryResponse",
					rule.Cmp("Response.DnsFlagsRcode", rule.OpNe, ir.Int(0))),
			},
			Produces: []string{"ResponseError"},
			Action: func(ctx rule.Context) error {
				qr := ctx.Fact("qr")
				query, _ := qr.Get("Query")
				response, _ := qr.Get("Response")
				code, _ := qr.Lookup("Response.DnsFlagsRcode")
				delay, _ := qr.Lookup("Response.DnsTime")
				rc := LookupRcode(int64(code.(ir.Int)))

				ctx.Error("DNS query %s yields to error %s (%s). DNS response %s. Response time was %ss.",
					ir.Format(query), rc.Name, rc.Description, ir.Format(response), ir.Format(delay))

				ev, err := ctx.New("ResponseError", query, response, ir.String(rc.Name), ir.String(rc.Description))
				if err != nil {
					return err
				}
				_, err = ctx.Yield(ev)
				return err
			},
		},
		{
			Name:        "DnsNoResponse",
			Description: "A query no response answers.",
			Priority:    5,
			Patterns: []rule.Pattern{
				rule.Match("query", "DnsPacket", isQuery()),
				rule.Not("DnsPacket", answers("query")...),
			},
			Produces: []string{"NoResponse"},
			Action: func(ctx rule.Context) error {
				q := ctx.Fact("query")
				ctx.Error("No response for DNS query %s found.", q)
				ev, err := ctx.New("NoResponse", ir.NewRef(q))
				if err != nil {
					return err
				}
				_, err = ctx.Yield(ev)
				return err
			},
		},
		{
			Name:        "DnsDelayedResponse",
			Description: "A response arrives after the delay threshold.",
			Priority:    5,
			Patterns: []rule.Pattern{
				rule.Match("qr", "DnsQueryResponse",
					rule.Cmp("Response.DnsTime", rule.OpGt, ir.Float(DelayThreshold))),
			},
			Produces: []string{"LateResponse"},
			Action: func(ctx rule.Context) error {
				qr := ctx.Fact("qr")
				query, _ := qr.Get("Query")
				response, _ := qr.Get("Response")
				delay, _ := qr.Lookup("Response.DnsTime")

				ctx.Warn("Response time is high (%ss) for DNS query %s and its response %s.",
					ir.Format(delay), ir.Format(query), ir.Format(response))

				ev, err := ctx.New("LateResponse", query, response, delay)
				if err != nil {
					return err
				}
				_, err = ctx.Yield(ev)
				return err
			},
		},
		{
			Name:        "DnsServerUnresponsive",
			Description: "A server that answered none of its queries.",
			Priority:    0,
			Patterns: []rule.Pattern{
				rule.Match("server", "DnsServer"),
				rule.Not("DnsQueryResponse", rule.Bound("Query.IpDst", "server", "IpAddress")),
			},
			Produces: []string{"DnsServerDown"},
			Action: func(ctx rule.Context) error {
				server := ctx.Fact("server")
				ev, err := ctx.New("DnsServerDown", ir.NewRef(server))
				if err != nil {
					return err
				}
				_, err = ctx.Yield(ev)
				return err
			},
		},
		{
			Name:        "DnsServerUnreliable",
			Description: "A server that answered some queries and left others unanswered.",
			Priority:    0,
			Patterns: []rule.Pattern{
				rule.Match("server", "DnsServer"),
				rule.Match("qr", "DnsQueryResponse", rule.Bound("Query.IpDst", "server", "IpAddress")),
				rule.Match("nr", "NoResponse", rule.Bound("Query.IpDst", "server", "IpAddress")),
			},
			Produces: []string{"DnsServerUnreliable"},
			Action: func(ctx rule.Context) error {
				server := ctx.Fact("server")
				ev, err := ctx.New("DnsServerUnreliable", ir.NewRef(server))
				if err != nil {
					return err
				}
				if ok, err := ctx.Yield(ev); err != nil || !ok {
					return err
				}
				ip, _ := server.Get("IpAddress")
				ctx.Warn("DNS server %s answers some queries but not others.", ir.Format(ip))
				return nil
			},
		},
	}
}
