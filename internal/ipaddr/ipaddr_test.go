package ipaddr

import (
	"net/netip"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	cases := []netip.Addr{
		netip.MustParseAddr("10.0.0.2"),
		netip.MustParseAddr("203.0.113.7"),
		netip.MustParseAddr("::1"),
		netip.MustParseAddr("2001:db8::1"),
	}

	for _, addr := range cases {
		t.Run(addr.String(), func(t *testing.T) {
			raw := ToRaw(addr)
			got := FromRaw(raw)
			if got != addr {
				t.Fatalf("FromRaw(ToRaw(%v)) = %v, want %v", addr, got, addr)
			}
		})
	}
}

func TestToRawV4Mapped(t *testing.T) {
	addr := netip.MustParseAddr("192.0.2.1")
	raw := ToRaw(addr)

	want := [16]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xff, 0xff, 192, 0, 2, 1}
	if raw != want {
		t.Fatalf("ToRaw(%v) = %x, want %x", addr, raw, want)
	}
}

func TestFromRawCollapsesV4Mapped(t *testing.T) {
	raw := [16]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xff, 0xff, 198, 51, 100, 9}
	got := FromRaw(raw)

	if !got.Is4() {
		t.Fatalf("FromRaw(%x) = %v, want an IPv4 address", raw, got)
	}
	if got.String() != "198.51.100.9" {
		t.Fatalf("FromRaw(%x) = %v, want 198.51.100.9", raw, got)
	}
}

func TestFromRawPlainV6(t *testing.T) {
	addr := netip.MustParseAddr("2001:db8::beef")
	raw := ToRaw(addr)
	got := FromRaw(raw)

	if !got.Is6() || got.Is4In6() {
		t.Fatalf("FromRaw(%x) = %v, want a plain IPv6 address", raw, got)
	}
	if got != addr {
		t.Fatalf("FromRaw(ToRaw(%v)) = %v, want %v", addr, got, addr)
	}
}
