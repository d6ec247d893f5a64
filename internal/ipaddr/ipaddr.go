// Package ipaddr converts between netip.Addr and the raw 16-byte octet
// form used by an AF_INET6 SOCK_RAW socket, collapsing IPv4-mapped
// addresses (::ffff:0:0/96) back to plain IPv4 on the way out.
package ipaddr

import "net/netip"

// ToRaw maps ip into its raw 16-byte sockaddr_in6 representation. IPv4
// addresses are encoded as IPv4-mapped IPv6 (::ffff:a.b.c.d); IPv6
// addresses pass through unchanged.
func ToRaw(ip netip.Addr) [16]byte {
	if ip.Is4() {
		return netip.AddrFrom16(ip.As16()).As16()
	}
	return ip.As16()
}

// FromRaw is the inverse of ToRaw: it recovers a netip.Addr from raw
// 16-byte octets, returning an IPv4 address when the octets fall in the
// ::ffff:0:0/96 range and an IPv6 address otherwise.
func FromRaw(raw [16]byte) netip.Addr {
	addr := netip.AddrFrom16(raw)
	if unmapped := addr.Unmap(); unmapped.Is4() {
		return unmapped
	}
	return addr
}
