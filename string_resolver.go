package ddns

import (
	"context"
	"fmt"
	"net/netip"
)

// StaticSource constructs a source that always returns the given addresses.
// Either may be empty, in which case lookups for that family fail.
func StaticSource(ipv4, ipv6 string) (Source, error) {
	s := staticSource{}
	for family, addr := range map[Family]string{IPv4: ipv4, IPv6: ipv6} {
		if addr == "" {
			continue
		}
		a, err := netip.ParseAddr(addr)
		if err != nil {
			return nil, fmt.Errorf("unable to parse IP: %w", err)
		}
		if !family.Matches(a) {
			return nil, fmt.Errorf("%s is not an %s address", a, family)
		}
		s[family] = a.Unmap()
	}
	return s, nil
}

type staticSource map[Family]netip.Addr

func (s staticSource) Lookup(_ context.Context, family Family) (netip.Addr, error) {
	a, ok := s[family]
	if !ok {
		return netip.Addr{}, fmt.Errorf("%w: no static %s address configured", ErrInvalidAddress, family)
	}
	return a, nil
}
