package ipupdate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// InterfaceResolver constructs a resolver that returns the address assigned to the named interface.
// It suits hosts whose public address is configured directly on an interface.
//
// Loopback and link-local addresses are skipped.
// IPv4 addresses are preferred over IPv6 when the interface has both.
func InterfaceResolver(iface string) Resolver {
	return interfaceResolver{iface: iface}
}

type interfaceResolver struct {
	iface string
}

func (r interfaceResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	iface, err := net.InterfaceByName(r.iface)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error getting interface %s by name: %w", r.iface, err)
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error looking up addresses for interface %s: %w", r.iface, err)
	}
	// addr: ip+net:192.168.86.253/24
	// addr: ip+net:fe80::2cc9:801b:3551:9a43/64
	var v4, v6 netip.Addr
	var errs []error
	for _, addr := range addrs {
		p, err := netip.ParsePrefix(addr.String())
		if err != nil {
			errs = append(errs, fmt.Errorf("error parsing ip %s for interface %s: %w", addr.String(), r.iface, err))
			continue
		}
		a := p.Addr().Unmap()
		if !a.IsGlobalUnicast() {
			continue
		}
		if a.Is4() && !v4.IsValid() {
			v4 = a
		}
		if a.Is6() && !v6.IsValid() {
			v6 = a
		}
	}
	if v4.IsValid() {
		return v4, nil
	}
	if v6.IsValid() {
		return v6, nil
	}
	errs = append(errs, fmt.Errorf("interface %s has no global unicast address", r.iface))
	return netip.Addr{}, errors.Join(errs...)
}
