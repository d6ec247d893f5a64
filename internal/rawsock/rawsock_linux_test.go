//go:build linux

package rawsock

import (
	"errors"
	"net/netip"
	"os"
	"testing"

	"golang.org/x/sys/unix"
)

// requireRawSocket creates a throwaway raw socket to probe for
// CAP_NET_RAW, skipping the test when unavailable. SOCK_RAW sockets
// require privilege, so this suite only verifies behavior when run with
// sufficient capability (e.g. under sudo or in CI with CAP_NET_RAW).
func requireRawSocket(t *testing.T) {
	t.Helper()
	s, err := NewBlocking(253) // a reserved-for-testing protocol number
	if err != nil {
		var errno unix.Errno
		if errors.As(err, &errno) && errno == unix.EPERM {
			t.Skip("requires CAP_NET_RAW")
		}
		t.Fatalf("NewBlocking: %v", err)
	}
	_ = s.Close()
}

func TestBlockingSocketLifecycle(t *testing.T) {
	requireRawSocket(t)

	s, err := NewBlocking(253)
	if err != nil {
		t.Fatalf("NewBlocking: %v", err)
	}
	defer s.Close()

	if s.Protocol() != 253 {
		t.Fatalf("Protocol() = %d, want 253", s.Protocol())
	}

	if err := s.SetFragmentConfig(Fragment); err != nil {
		t.Fatalf("SetFragmentConfig(Fragment): %v", err)
	}
	if err := s.BindUnspecified(); err != nil {
		t.Fatalf("BindUnspecified: %v", err)
	}
}

func TestBlockingSocketBindDevice(t *testing.T) {
	requireRawSocket(t)

	s, err := NewBlocking(253)
	if err != nil {
		t.Fatalf("NewBlocking: %v", err)
	}
	defer s.Close()

	if err := s.BindDevice("lo"); err != nil {
		t.Fatalf("BindDevice(lo): %v", err)
	}
	if err := s.BindDevice(""); err != nil {
		t.Fatalf("BindDevice(\"\") to clear: %v", err)
	}
}

func TestNonBlockingSendRecvLoopback(t *testing.T) {
	requireRawSocket(t)

	recv, err := NewNonBlocking(253)
	if err != nil {
		t.Fatalf("NewNonBlocking (recv): %v", err)
	}
	defer recv.Close()
	if err := recv.BindUnspecified(); err != nil {
		t.Fatalf("BindUnspecified: %v", err)
	}

	send, err := NewBlocking(253)
	if err != nil {
		t.Fatalf("NewBlocking (send): %v", err)
	}
	defer send.Close()

	payload := []byte("etherip-rawsock-test")
	loopback := netip.MustParseAddr("::1")

	if _, err := send.SendTo(payload, loopback); err != nil {
		t.Fatalf("SendTo: %v", err)
	}

	buf := make([]byte, 1500)
	n, from, err := recv.RecvFrom(buf)
	if err != nil {
		t.Fatalf("RecvFrom: %v", err)
	}
	if !from.Is6() && !from.Is4() {
		t.Fatalf("RecvFrom returned an invalid address: %v", from)
	}
	if string(buf[:n]) != string(payload) {
		t.Fatalf("RecvFrom payload = %q, want %q", buf[:n], payload)
	}
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
