package ddns

import (
	"fmt"
	"net/netip"
)

// Family is an IP address family.
type Family int

const (
	IPv4 Family = 4
	IPv6 Family = 6
)

func (f Family) String() string {
	switch f {
	case IPv4:
		return "ipv4"
	case IPv6:
		return "ipv6"
	}
	return fmt.Sprintf("Family(%d)", int(f))
}

// RecordType is the DNS record type holding addresses of the family.
func (f Family) RecordType() string {
	if f == IPv6 {
		return "AAAA"
	}
	return "A"
}

// Matches reports whether a is a valid address of family f.
// IPv4-mapped IPv6 addresses count as IPv4.
func (f Family) Matches(a netip.Addr) bool {
	if !a.IsValid() {
		return false
	}
	switch f {
	case IPv4:
		return a.Unmap().Is4()
	case IPv6:
		return a.Is6() && !a.Is4In6()
	}
	return false
}
