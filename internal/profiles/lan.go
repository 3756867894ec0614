package profiles

import (
	_ "embed"
	"net/netip"

	"github.com/roach88/distance/internal/fact"
	"github.com/roach88/distance/internal/ir"
	"github.com/roach88/distance/internal/rule"
)

//go:embed lan.cue
var lanSchema string

// LAN diagnoses local addressing: duplicate IP assignments and hosts
// stuck on link-local addresses.
func LAN() Profile {
	return Profile{
		Name:        "lan",
		Description: "IP address conflicts and link-local address use on the local network",
		Schema:      lanSchema,
		Rules:       lanRules,
	}
}

var linkLocal = netip.MustParsePrefix("169.254.0.0/16")

// IsLinkLocal reports whether s is an IPv4 link-local address.
func IsLinkLocal(s string) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	return linkLocal.Contains(addr.Unmap())
}

// assigned reports whether a packet's source address identifies a host.
// The unspecified address is used by every host during DHCP discovery.
func assigned(f *fact.Fact) bool {
	v, _ := f.Get("IpSrc")
	addr, err := netip.ParseAddr(ir.Format(v))
	if err != nil {
		return false
	}
	return !addr.IsUnspecified() && !addr.IsMulticast()
}

func lanRules() []rule.Rule {
	return []rule.Rule{
		{
			Name:        "AddressMapping",
			Description: "A source IP address is in use by the source MAC address.",
			Priority:    10,
			Patterns: []rule.Pattern{
				rule.Match("packet", "IpPacket", rule.Test{Name: "assigned source", Fn: assigned}),
			},
			Produces: []string{"AddressMapping"},
			Action: func(ctx rule.Context) error {
				p := ctx.Fact("packet")
				ip, _ := p.Get("IpSrc")
				eth, _ := p.Get("EthSrc")
				m, err := ctx.New("AddressMapping", ip, eth)
				if err != nil {
					return err
				}
				_, err = ctx.Insert(m)
				return err
			},
		},
		{
			Name:        "IpEndpoint",
			Description: "Both addresses of a packet are endpoints.",
			Priority:    10,
			Patterns: []rule.Pattern{
				rule.Match("packet", "IpPacket"),
			},
			Produces: []string{"IpEndpoint"},
			Action: func(ctx rule.Context) error {
				p := ctx.Fact("packet")
				for _, field := range []string{"IpSrc", "IpDst"} {
					ip, _ := p.Get(field)
					if ir.Format(ip) == "" {
						continue
					}
					ep, err := ctx.New("IpEndpoint", ip)
					if err != nil {
						return err
					}
					if _, err := ctx.Insert(ep); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			Name:        "IpAddressConflict",
			Description: "One IP address is used by two MAC addresses.",
			Priority:    0,
			Patterns: []rule.Pattern{
				rule.Match("a", "AddressMapping"),
				rule.Match("b", "AddressMapping",
					rule.Bound("IpAddr", "a", "IpAddr"),
					rule.BoundCompare{Field: "EthAddr", Op: rule.OpGt, Var: "a", VarField: "EthAddr"}),
			},
			Produces: []string{"IpAddressConflict"},
			Action: func(ctx rule.Context) error {
				a, b := ctx.Fact("a"), ctx.Fact("b")
				ip, _ := a.Get("IpAddr")
				low, _ := a.Get("EthAddr")
				high, _ := b.Get("EthAddr")

				// The join orders the pair, so a and b never swap roles.
				ev, err := ctx.New("IpAddressConflict", ip, ir.Array{low, high})
				if err != nil {
					return err
				}
				ok, err := ctx.Yield(ev)
				if err == nil && ok {
					ctx.Error("IP address %s is used by %s and %s.", ir.Format(ip), ir.Format(low), ir.Format(high))
				}
				return err
			},
		},
		{
			Name:        "LinkLocalIpAddressUse",
			Description: "A host sends from a 169.254.0.0/16 address.",
			Priority:    5,
			Patterns: []rule.Pattern{
				rule.Match("m", "AddressMapping", rule.Test{
					Name: "link-local",
					Fn: func(f *fact.Fact) bool {
						v, _ := f.Get("IpAddr")
						return IsLinkLocal(ir.Format(v))
					},
				}),
			},
			Produces: []string{"LinkLocalIpAddressUse"},
			Action: func(ctx rule.Context) error {
				m := ctx.Fact("m")
				ip, _ := m.Get("IpAddr")
				eth, _ := m.Get("EthAddr")
				ctx.Error("Host %s uses link local IP address %s.", ir.Format(eth), ir.Format(ip))
				ev, err := ctx.New("LinkLocalIpAddressUse", ip, eth)
				if err != nil {
					return err
				}
				_, err = ctx.Yield(ev)
				return err
			},
		},
	}
}
