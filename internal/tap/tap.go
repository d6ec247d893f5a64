// Package tap wraps the Linux /dev/net/tun character device configured
// as a persistent IFF_TAP|IFF_NO_PI interface: open, ioctl-configure,
// persistent-bit management, and blocking/non-blocking read/write.
package tap

import (
	"errors"
	"fmt"
	"strings"
)

// MaxNameLen is IFNAMSIZ: the maximum length (exclusive) of a Linux
// network interface name, including the trailing NUL the kernel expects.
const MaxNameLen = 16

// ErrInvalidName indicates an interface name fails the validation rules
// shared by tap.Open, tap.Add, and tap.Delete.
var ErrInvalidName = errors.New("invalid interface name")

// validateName enforces: length in [1, MaxNameLen), and none of the
// characters '/', ' ', '\f', '\n', '\r', '\t', '\v', or an embedded NUL.
func validateName(name string) error {
	if len(name) == 0 || len(name) >= MaxNameLen {
		return fmt.Errorf("%w: %q: length must be in [1, %d)", ErrInvalidName, name, MaxNameLen)
	}
	if strings.ContainsAny(name, "/ \f\n\r\t\v\x00") {
		return fmt.Errorf("%w: %q: contains a disallowed character", ErrInvalidName, name)
	}
	return nil
}

// ValidateLinkName applies the same interface-name rules Open, Add, and
// Delete enforce, for callers (such as internal/config) that need to
// reject invalid link names before ever touching /dev/net/tun.
func ValidateLinkName(name string) error {
	return validateName(name)
}
