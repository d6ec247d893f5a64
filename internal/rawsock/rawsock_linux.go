//go:build linux

package rawsock

import (
	"fmt"
	"net/netip"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/menhera-org/etherip-rs/internal/ipaddr"
)

// core holds the socket-option logic shared by the blocking and
// non-blocking variants. Both embed it and differ only in how the fd is
// wrapped for I/O (see BlockingSocket and Socket below).
//
// Fragment policy and SO_BINDTODEVICE are configured via
// SetsockoptInt/SetsockoptString, with errors reported through
// os.NewSyscallError.
type core struct {
	fd        int
	protocol  int
	closeOnce sync.Once
	closeErr  error
}

func newCore(protocol int, nonblock bool) (*core, error) {
	flags := unix.SOCK_RAW
	if nonblock {
		flags |= unix.SOCK_NONBLOCK | unix.SOCK_CLOEXEC
	} else {
		flags |= unix.SOCK_CLOEXEC
	}

	fd, err := unix.Socket(unix.AF_INET6, flags, protocol)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}

	return &core{fd: fd, protocol: protocol}, nil
}

// Protocol returns the IP protocol number this socket was created with.
func (c *core) Protocol() int {
	return c.protocol
}

// SetFragmentConfig sets the kernel's PMTU discovery policy via
// IPV6_MTU_DISCOVER.
func (c *core) SetFragmentConfig(cfg FragmentConfig) error {
	mode := unix.IPV6_PMTUDISC_OMIT
	if cfg == NoFragment {
		mode = unix.IPV6_PMTUDISC_DO
	}

	if err := unix.SetsockoptInt(c.fd, unix.IPPROTO_IPV6, unix.IPV6_MTU_DISCOVER, mode); err != nil {
		return os.NewSyscallError("setsockopt(IPV6_MTU_DISCOVER)", err)
	}
	return nil
}

// Bind binds the socket to ip (normalized to its 16-byte raw form via
// v4-mapping).
func (c *core) Bind(ip netip.Addr) error {
	sa := &unix.SockaddrInet6{Addr: ipaddr.ToRaw(ip)}
	if err := unix.Bind(c.fd, sa); err != nil {
		return os.NewSyscallError("bind", err)
	}
	return nil
}

// BindUnspecified binds the socket to :: , accepting both address
// families.
func (c *core) BindUnspecified() error {
	sa := &unix.SockaddrInet6{}
	if err := unix.Bind(c.fd, sa); err != nil {
		return os.NewSyscallError("bind", err)
	}
	return nil
}

// BindDevice sets (or, with an empty name, clears) SO_BINDTODEVICE.
func (c *core) BindDevice(name string) error {
	if err := unix.SetsockoptString(c.fd, unix.SOL_SOCKET, unix.SO_BINDTODEVICE, name); err != nil {
		return os.NewSyscallError("setsockopt(SO_BINDTODEVICE)", err)
	}
	return nil
}

func (c *core) close() error {
	c.closeOnce.Do(func() {
		c.closeErr = unix.Close(c.fd)
	})
	return c.closeErr
}

// BlockingSocket is a synchronous raw socket, used by one-shot tooling
// and tests where no goroutine-based readiness loop is warranted.
type BlockingSocket struct {
	*core
}

// NewBlocking creates a blocking AF_INET6 SOCK_RAW socket of the given
// protocol.
func NewBlocking(protocol int) (*BlockingSocket, error) {
	c, err := newCore(protocol, false)
	if err != nil {
		return nil, err
	}
	return &BlockingSocket{core: c}, nil
}

// Close closes the underlying file descriptor exactly once.
func (s *BlockingSocket) Close() error {
	return s.close()
}

// SendTo sends buf to ip in a single blocking sendto(2).
func (s *BlockingSocket) SendTo(buf []byte, ip netip.Addr) (int, error) {
	sa := &unix.SockaddrInet6{Addr: ipaddr.ToRaw(ip)}
	if err := unix.Sendto(s.fd, buf, 0, sa); err != nil {
		return 0, os.NewSyscallError("sendto", err)
	}
	return len(buf), nil
}

// RecvFrom reads a single datagram via a blocking recvfrom(2), returning
// the sender's address normalized back to v4 when v4-mapped.
func (s *BlockingSocket) RecvFrom(buf []byte) (int, netip.Addr, error) {
	n, from, err := unix.Recvfrom(s.fd, buf, 0)
	if err != nil {
		return 0, netip.Addr{}, os.NewSyscallError("recvfrom", err)
	}
	sa6, ok := from.(*unix.SockaddrInet6)
	if !ok {
		return 0, netip.Addr{}, fmt.Errorf("recvfrom: unexpected sockaddr type %T", from)
	}
	return n, ipaddr.FromRaw(sa6.Addr), nil
}

// Socket is a non-blocking raw socket wrapped for readiness-based I/O.
// Send and receive are safe to call concurrently from multiple
// goroutines. A pending RecvFrom can be interrupted with SetReadDeadline;
// SendTo has no deadline or cancellation of its own. Equality is by pointer identity
// of this struct, which corresponds 1:1 with the underlying fd.
//
// The readiness loop is implemented via (*os.File).SyscallConn's
// Read/Write callback protocol, which is the standard library's built-in
// equivalent of "await readiness, attempt the syscall, on
// EAGAIN/EWOULDBLOCK clear the ready bit and loop" — the same shape as
// the original Rust implementation's tokio AsyncFd::try_io loop.
type Socket struct {
	*core
	file *os.File
	raw  syscall.RawConn
}

// NewNonBlocking creates a non-blocking AF_INET6 SOCK_RAW socket of the
// given protocol and registers it with the Go runtime's netpoller.
func NewNonBlocking(protocol int) (*Socket, error) {
	c, err := newCore(protocol, true)
	if err != nil {
		return nil, err
	}

	file := os.NewFile(uintptr(c.fd), fmt.Sprintf("rawsock-proto-%d", protocol))
	raw, err := file.SyscallConn()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("rawsock: SyscallConn: %w", err)
	}

	return &Socket{core: c, file: file, raw: raw}, nil
}

// Close closes the underlying file descriptor exactly once.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.file.Close()
	})
	return s.closeErr
}

// SetReadDeadline arranges for a pending or future RecvFrom to unblock
// at t. Runtime shutdown uses this to force an in-flight receive to
// return promptly rather than waiting for the next datagram.
func (s *Socket) SetReadDeadline(t time.Time) error {
	return s.file.SetReadDeadline(t)
}

// SendTo sends buf to ip, parking the calling goroutine until the socket
// is write-ready whenever the kernel reports EAGAIN/EWOULDBLOCK.
func (s *Socket) SendTo(buf []byte, ip netip.Addr) (int, error) {
	sa := &unix.SockaddrInet6{Addr: ipaddr.ToRaw(ip)}

	var n int
	var sendErr error
	err := s.raw.Write(func(fd uintptr) bool {
		sendErr = unix.Sendto(int(fd), buf, 0, sa)
		if sendErr == unix.EAGAIN || sendErr == unix.EWOULDBLOCK {
			return false
		}
		if sendErr == nil {
			n = len(buf)
		}
		return true
	})
	if err != nil {
		return 0, fmt.Errorf("rawsock: sendto: %w", err)
	}
	if sendErr != nil {
		return 0, os.NewSyscallError("sendto", sendErr)
	}
	return n, nil
}

// RecvFrom reads a single datagram, parking the calling goroutine until
// the socket is read-ready whenever the kernel reports
// EAGAIN/EWOULDBLOCK.
func (s *Socket) RecvFrom(buf []byte) (int, netip.Addr, error) {
	var n int
	var from unix.Sockaddr
	var recvErr error

	err := s.raw.Read(func(fd uintptr) bool {
		n, from, recvErr = unix.Recvfrom(int(fd), buf, 0)
		return recvErr != unix.EAGAIN && recvErr != unix.EWOULDBLOCK
	})
	if err != nil {
		return 0, netip.Addr{}, fmt.Errorf("rawsock: recvfrom: %w", err)
	}
	if recvErr != nil {
		return 0, netip.Addr{}, os.NewSyscallError("recvfrom", recvErr)
	}

	sa6, ok := from.(*unix.SockaddrInet6)
	if !ok {
		return 0, netip.Addr{}, fmt.Errorf("recvfrom: unexpected sockaddr type %T", from)
	}
	return n, ipaddr.FromRaw(sa6.Addr), nil
}
