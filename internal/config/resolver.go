package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// ErrNoAddressFound is returned by LookupAddr when a hostname resolves to
// addresses, but none matches the requested IP version.
var ErrNoAddressFound = errors.New("no address found for the requested IP version")

// LookupAddr resolves host (a DNS name; literal IPs are handled by the
// caller before reaching here) and returns the first resolved address
// matching version.
func LookupAddr(ctx context.Context, host string, version IPVersion) (netip.Addr, error) {
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("lookup %q: %w", host, err)
	}

	for _, a := range addrs {
		addr, ok := netip.AddrFromSlice(a.IP)
		if !ok {
			continue
		}
		addr = addr.Unmap()

		switch version {
		case IPVersionV4:
			if addr.Is4() {
				return addr, nil
			}
		case IPVersionV6:
			if addr.Is6() {
				return addr, nil
			}
		default:
			return addr, nil
		}
	}

	return netip.Addr{}, fmt.Errorf("lookup %q: %w", host, ErrNoAddressFound)
}
