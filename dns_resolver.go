package ddns

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/miekg/dns"
)

// OpenDNS answers queries for this name with the address the query came from.
const (
	MyIPName          = "myip.opendns.com."
	DefaultIPv4Server = "208.67.222.222:53"
	DefaultIPv6Server = "[2620:119:35::35]:53"
)

// DNSSource constructs a source that asks a DNS server which address the query arrived from,
// the way OpenDNS answers A and AAAA queries for myip.opendns.com.
//
// The servers must be reachable over the matching family,
// otherwise the server sees (and returns) the wrong address.
// An empty ipv6Server disables IPv6 lookups.
func DNSSource(ipv4Server, ipv6Server string) Source {
	s := &dnsSource{
		name:    MyIPName,
		client:  new(dns.Client),
		servers: map[Family]string{},
	}
	if ipv4Server != "" {
		s.servers[IPv4] = ipv4Server
	}
	if ipv6Server != "" {
		s.servers[IPv6] = ipv6Server
	}
	return s
}

type dnsSource struct {
	name    string
	client  *dns.Client
	servers map[Family]string
}

func (s *dnsSource) Lookup(ctx context.Context, family Family) (netip.Addr, error) {
	server, ok := s.servers[family]
	if !ok {
		return netip.Addr{}, fmt.Errorf("no %s DNS server was provided", family)
	}
	qtype := dns.TypeA
	if family == IPv6 {
		qtype = dns.TypeAAAA
	}
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(s.name), qtype)

	r, _, err := s.client.ExchangeContext(ctx, m, server)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("dns query to %s failed: %w", server, err)
	}
	if r.Rcode != dns.RcodeSuccess {
		return netip.Addr{}, fmt.Errorf("dns query to %s returned %s", server, dns.RcodeToString[r.Rcode])
	}
	for _, a := range r.Answer {
		var raw []byte
		switch rr := a.(type) {
		case *dns.A:
			raw = rr.A
		case *dns.AAAA:
			raw = rr.AAAA
		default:
			continue
		}
		ip, ok := netip.AddrFromSlice(raw)
		if !ok {
			continue
		}
		if ip = ip.Unmap(); family.Matches(ip) {
			return ip, nil
		}
	}
	return netip.Addr{}, fmt.Errorf("%w: %s returned no %s record for %s", ErrInvalidAddress, server, dns.TypeToString[qtype], s.name)
}
