package ddns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// InterfaceSource constructs a source that returns the first global unicast address of the family reported by the named interface.
// If iface is empty then all interfaces are searched.
//
// This is only useful when the host holds its public address directly,
// e.g. on a VPS or behind an IPv6 router without NAT.
func InterfaceSource(iface string) Source {
	return interfaceSource{iface: iface, addrs: interfaceAddrs}
}

type interfaceSource struct {
	iface string
	addrs func(iface string) ([]net.Addr, error)
}

func interfaceAddrs(iface string) ([]net.Addr, error) {
	if iface == "" {
		adds, err := net.InterfaceAddrs()
		if err != nil {
			return nil, fmt.Errorf("error getting addresses for interfaces: %w", err)
		}
		return adds, nil
	}
	i, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("error getting interface %s by name: %w", iface, err)
	}
	adds, err := i.Addrs()
	if err != nil {
		return nil, fmt.Errorf("error looking up addresses for interface %s: %w", iface, err)
	}
	return adds, nil
}

func (r interfaceSource) Lookup(ctx context.Context, family Family) (netip.Addr, error) {
	adds, err := r.addrs(r.iface)
	if err != nil {
		return netip.Addr{}, err
	}
	// addr: ip+net:192.168.86.253/24
	// addr: ip+net:fd64:9f44:fc30:0:b951:8b16:2812:a227/64
	// addr: ip+net:fe80::2cc9:801b:3551:9a43/64
	var parseErrors []error
	for _, addr := range adds {
		ip, err := netip.ParsePrefix(addr.String())
		if err != nil {
			parseErrors = append(parseErrors, fmt.Errorf("error parsing local ip %s: %s", addr.String(), err))
			continue
		}
		a := ip.Addr().Unmap()
		if !a.IsGlobalUnicast() || !family.Matches(a) {
			continue
		}
		return a, nil
	}
	if len(parseErrors) > 0 {
		return netip.Addr{}, errors.Join(parseErrors...)
	}
	name := r.iface
	if name == "" {
		name = "any interface"
	}
	return netip.Addr{}, fmt.Errorf("%w: no global %s address on %s", ErrInvalidAddress, family, name)
}
