//go:build linux

package tap

import (
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

const tunDevicePath = "/dev/net/tun"

// tapFlags is IFF_TAP|IFF_NO_PI: receive/send raw Ethernet frames with no
// leading packet-information header.
const tapFlags = unix.IFF_TAP | unix.IFF_NO_PI

// openAndConfigure opens /dev/net/tun, issues TUNSETIFF for name with
// IFF_TAP|IFF_NO_PI, and sets TUNSETPERSIST to persist (1 or 0). It
// returns the raw fd; the caller is responsible for closing it on error
// paths not already handled here.
func openAndConfigure(name string, nonblock bool, persist bool) (int, error) {
	if err := validateName(name); err != nil {
		return -1, err
	}

	flags := unix.O_RDWR | unix.O_CLOEXEC
	if nonblock {
		flags |= unix.O_NONBLOCK
	}

	fd, err := unix.Open(tunDevicePath, flags, 0)
	if err != nil {
		return -1, fmt.Errorf("tap: open %s: %w", tunDevicePath, err)
	}

	ifr, err := unix.NewIfreq(name)
	if err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("tap: build ifreq for %q: %w", name, err)
	}
	ifr.SetUint16(tapFlags)

	if err := unix.IoctlIfreq(fd, unix.TUNSETIFF, ifr); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("tap: TUNSETIFF %q: %w", name, err)
	}

	persistVal := 0
	if persist {
		persistVal = 1
	}
	if err := unix.IoctlSetInt(fd, unix.TUNSETPERSIST, persistVal); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("tap: TUNSETPERSIST(%d) %q: %w", persistVal, name, err)
	}

	return fd, nil
}

// Add creates (or re-affirms) a persistent TAP interface named name and
// closes the handle without retaining it, leaving the kernel interface
// alive (TUNSETPERSIST=1).
func Add(name string) error {
	fd, err := openAndConfigure(name, false, true)
	if err != nil {
		return err
	}
	return unix.Close(fd)
}

// Delete clears the persistent bit on the TAP interface named name,
// allowing the kernel to destroy it once nothing else holds it open.
func Delete(name string) error {
	fd, err := openAndConfigure(name, false, false)
	if err != nil {
		return err
	}
	return unix.Close(fd)
}

// Device is an open, persistent TAP interface. Its fd is wrapped in an
// *os.File opened non-blocking, so Read/Write are integrated with the Go
// runtime's netpoller: the netpoller performs exactly the readiness-loop
// retry ("wait for readiness, attempt the syscall, retry on
// EAGAIN/EWOULDBLOCK") that the original implementation's AsyncFd/try_io
// wrapper does explicitly. This is safe for a TAP character device per
// mistsys-tuntap/tun_linux.go's documented sequencing: the fd is put in
// non-blocking mode and TUNSETIFF'd before being handed to os.NewFile.
type Device struct {
	name      string
	file      *os.File
	closeOnce sync.Once
	closeErr  error
}

// Open opens a TAP device named name, configuring it as
// IFF_TAP|IFF_NO_PI and persistent, ready for non-blocking read/write.
func Open(name string) (*Device, error) {
	fd, err := openAndConfigure(name, true, true)
	if err != nil {
		return nil, err
	}
	return &Device{
		name: name,
		file: os.NewFile(uintptr(fd), "tap:"+name),
	}, nil
}

// Name returns the interface name this Device was opened with.
func (d *Device) Name() string {
	return d.name
}

// Read reads one Ethernet frame (no packet-information header) from the
// TAP device into buf.
func (d *Device) Read(buf []byte) (int, error) {
	return d.file.Read(buf)
}

// Write writes one Ethernet frame to the TAP device.
func (d *Device) Write(buf []byte) (int, error) {
	return d.file.Write(buf)
}

// SetReadDeadline arranges for a pending or future Read to unblock at t,
// returning os.ErrDeadlineExceeded. Runtime shutdown uses this to force
// an in-flight Read to return promptly instead of waiting for the next
// frame, the idiomatic Go equivalent of abandoning an in-flight async
// read when a sibling kill-signal future resolves first.
func (d *Device) SetReadDeadline(t time.Time) error {
	return d.file.SetReadDeadline(t)
}

// Close closes the underlying file descriptor exactly once. The kernel
// interface survives because of the persist bit; use Delete to remove it.
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.file.Close()
	})
	return d.closeErr
}
