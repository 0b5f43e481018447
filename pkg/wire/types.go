// Package wire decodes link, network and transport headers from captured
// frames. All length fields are range-checked before any offset derived from
// them is used, so the parser never reads past the buffer on adversarial
// input; a malformed packet yields a typed error, never a panic.
package wire

import (
	"net"
	"time"
)

// Direction tags which side of the flow a captured packet belongs to.
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionInbound
	DirectionOutbound
)

func (d Direction) String() string {
	switch d {
	case DirectionInbound:
		return "inbound"
	case DirectionOutbound:
		return "outbound"
	default:
		return "unknown"
	}
}

// Meta carries capture metadata alongside the raw frame bytes.
type Meta struct {
	Timestamp time.Time
	Direction Direction
	// OrigLen is the on-the-wire length; the buffer may be a truncated capture.
	OrigLen int
}

// TCPFlags holds the decoded flag bits of a TCP segment.
type TCPFlags struct {
	FIN bool
	SYN bool
	RST bool
	PSH bool
	ACK bool
	URG bool
	ECE bool
	CWR bool
}

// TCPOption is one option as it appeared on the wire. Kind order is a
// fingerprinting signal, so options are kept in wire order.
type TCPOption struct {
	Kind byte
	Data []byte
}

// TCP option kinds relevant to fingerprinting.
const (
	TCPOptEOL       byte = 0
	TCPOptNOP       byte = 1
	TCPOptMSS       byte = 2
	TCPOptWScale    byte = 3
	TCPOptSACKPerm  byte = 4
	TCPOptTimestamp byte = 8
)

// ParsedHeaders is the immutable result of parsing one captured frame. It
// lives only for the duration of the analysis of that frame.
type ParsedHeaders struct {
	Meta Meta

	IPVersion int
	Protocol  byte // IP protocol number (6 = TCP)
	TTL       byte // hop limit for IPv6
	SrcIP     net.IP
	DstIP     net.IP

	SrcPort uint16
	DstPort uint16

	Flags      TCPFlags
	WindowSize uint16
	Options    []TCPOption

	// PayloadOffset is the byte offset of the transport payload within the
	// original buffer. Payload holds the same bytes sliced out for
	// convenience; it aliases the input buffer.
	PayloadOffset int
	Payload       []byte
}

// IsTCP reports whether the frame carried a TCP segment.
func (h *ParsedHeaders) IsTCP() bool { return h.Protocol == 6 }
