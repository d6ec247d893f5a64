// Package etherip implements the RFC 3378 EtherIP datagram codec: a
// fixed-size buffer carrying a two-byte header (0x30 0x00) followed by an
// Ethernet frame, with in-place builder/parser views over the same array
// so that a single allocation is reused across a forwarding loop's
// iterations.
package etherip

// Protocol is the IP protocol number assigned to EtherIP (RFC 3378).
// golang.org/x/sys/unix does not export this as IPPROTO_ETHERIP, so it
// is declared locally.
const Protocol = 97

// Layer sizes in bytes, per RFC 3378 and the Ethernet II frame format.
const (
	EthernetHeaderSize = 14
	EthernetCRCSize    = 4
	EthernetMinMTU     = 64
	EthernetMaxMTU     = 9216
	EtherIPHeaderSize  = 2

	EthernetMinFrameSize = EthernetMinMTU + EthernetHeaderSize + EthernetCRCSize
	EthernetMaxFrameSize = EthernetMaxMTU + EthernetHeaderSize + EthernetCRCSize
)

// MinDatagramSize and MaxDatagramSize bound a valid EtherIP datagram
// (header + Ethernet frame). They deliberately do not match the
// arithmetic sum of the component constants above (which would give
// 84/9236); see DESIGN.md for the rationale.
const (
	MinDatagramSize = 80
	MaxDatagramSize = 9234
)

// headerByte0 and headerByte1 form the two-byte EtherIP header: high
// nibble of byte 0 is the protocol version (3), all other bits zero.
const (
	headerByte0 = 0x30
	headerByte1 = 0x00
)

// Builder holds a fixed MaxDatagramSize-byte array with the EtherIP
// header pre-written, and exposes the Ethernet-frame region for the
// caller to fill before calling Emit.
type Builder struct {
	ethLen int
	data   [MaxDatagramSize]byte
}

// NewBuilder returns a Builder with the EtherIP header already written.
func NewBuilder() *Builder {
	b := &Builder{}
	b.data[0] = headerByte0
	b.data[1] = headerByte1
	return b
}

// EthernetBuf returns the writable region of the buffer reserved for the
// Ethernet frame (everything after the 2-byte EtherIP header).
func (b *Builder) EthernetBuf() []byte {
	return b.data[EtherIPHeaderSize:]
}

// SetEthernetLen records how many bytes of EthernetBuf the caller filled.
func (b *Builder) SetEthernetLen(n int) {
	b.ethLen = n
}

// Emit returns the complete EtherIP datagram (header + Ethernet frame) if
// its length falls within [MinDatagramSize, MaxDatagramSize], else
// ok=false. The caller must treat ok=false as a silent drop.
func (b *Builder) Emit() (datagram []byte, ok bool) {
	total := b.ethLen + EtherIPHeaderSize
	if total < MinDatagramSize || total > MaxDatagramSize {
		return nil, false
	}
	return b.data[:total], true
}

// Parser holds a fixed MaxDatagramSize-byte array that a socket receive
// writes into, and exposes Parse to validate and extract the Ethernet
// frame.
type Parser struct {
	recvLen int
	data    [MaxDatagramSize]byte
}

// NewParser returns a zeroed Parser ready to receive into.
func NewParser() *Parser {
	return &Parser{}
}

// RecvBuf returns the full buffer for a socket receive to write into.
func (p *Parser) RecvBuf() []byte {
	return p.data[:]
}

// SetRecvLen records how many bytes a receive wrote into RecvBuf.
func (p *Parser) SetRecvLen(n int) {
	p.recvLen = n
}

// Parse validates the received datagram's header and length, returning
// the enclosed Ethernet frame on success. It returns ok=false (not an
// error) for any malformed or out-of-range datagram — the caller drops
// the packet, optionally logging at debug level.
func (p *Parser) Parse() (frame []byte, ok bool) {
	if p.recvLen < MinDatagramSize || p.recvLen > MaxDatagramSize {
		return nil, false
	}
	if p.data[0] != headerByte0 || p.data[1] != headerByte1 {
		return nil, false
	}
	return p.data[EtherIPHeaderSize:p.recvLen], true
}
