//go:build linux

package tap

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"
)

func requireTapPrivilege(t *testing.T) {
	t.Helper()
	if err := Add("etheriptst0"); err != nil {
		if errors.Is(err, unix.EPERM) || errors.Is(err, unix.ENOENT) {
			t.Skip("requires CAP_NET_ADMIN and /dev/net/tun")
		}
		t.Fatalf("Add: %v", err)
	}
	_ = Delete("etheriptst0")
}

func TestOpenAddDeleteLifecycle(t *testing.T) {
	requireTapPrivilege(t)

	const name = "etheriptst1"

	dev, err := Open(name)
	if err != nil {
		t.Fatalf("Open(%q): %v", name, err)
	}
	if dev.Name() != name {
		t.Fatalf("Name() = %q, want %q", dev.Name(), name)
	}
	if err := dev.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := Delete(name); err != nil {
		t.Fatalf("Delete(%q): %v", name, err)
	}
}

func TestOpenRejectsInvalidName(t *testing.T) {
	if _, err := Open("bad/name"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("Open(\"bad/name\") error = %v, want ErrInvalidName", err)
	}
}
