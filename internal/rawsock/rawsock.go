// Package rawsock implements a raw AF_INET6 SOCK_RAW socket of a given IP
// protocol number, with dual-stack IPv4-mapped addressing, PMTU discovery
// control, and both blocking and non-blocking (readiness-based) send/recv
// variants.
package rawsock

import "net/netip"

// FragmentConfig selects the kernel's PMTU discovery policy for a socket.
type FragmentConfig int

const (
	// Fragment allows the kernel to fragment oversize outbound datagrams
	// (IPV6_PMTUDISC_OMIT). This is the default.
	Fragment FragmentConfig = iota
	// NoFragment rejects oversize outbound datagrams with EMSGSIZE instead
	// of fragmenting (IPV6_PMTUDISC_DO).
	NoFragment
)

// Conn is the behavior shared by the blocking and non-blocking socket
// variants: fragment policy, binding, closing, and the protocol number.
// SendTo and RecvFrom are methods of the concrete types, not of Conn.
type Conn interface {
	SetFragmentConfig(cfg FragmentConfig) error
	Bind(ip netip.Addr) error
	BindUnspecified() error
	BindDevice(name string) error
	Close() error
	Protocol() int
}
