package wire

import (
	"encoding/binary"
	"net"

	"github.com/google/gopacket/layers"
)

const (
	etherTypeIPv4 = 0x0800
	etherTypeIPv6 = 0x86dd
	etherTypeVLAN = 0x8100

	ethernetHeaderLen = 14
	vlanTagLen        = 4
	ipv6HeaderLen     = 40
)

// Parse decodes one captured frame into ParsedHeaders.
//
// The contract for untrusted input: every offset is derived from a length
// field that has already been range-checked, and a buffer shorter than a
// length it declares returns ErrTooShort. The caller drops the packet and
// continues; Parse never terminates a capture session.
func Parse(buf []byte, link layers.LinkType, meta Meta) (*ParsedHeaders, error) {
	ip := buf
	switch link {
	case layers.LinkTypeEthernet:
		var err error
		ip, err = stripEthernet(buf)
		if err != nil {
			return nil, err
		}
	case layers.LinkTypeRaw, layers.LinkTypeIPv4, layers.LinkTypeIPv6:
		// Frame starts directly at the IP header.
	default:
		return nil, NewUnsupportedProtoError("link", int(link))
	}

	if len(ip) < 1 {
		return nil, NewTooShortError("ip", 1, len(ip))
	}

	switch ip[0] >> 4 {
	case 4:
		return parseIPv4(ip, meta, buf)
	case 6:
		return parseIPv6(ip, meta, buf)
	default:
		return nil, NewUnsupportedProtoError("ip version", int(ip[0]>>4))
	}
}

func stripEthernet(buf []byte) ([]byte, error) {
	if len(buf) < ethernetHeaderLen {
		return nil, NewTooShortError("ethernet", ethernetHeaderLen, len(buf))
	}
	etherType := binary.BigEndian.Uint16(buf[12:14])
	offset := ethernetHeaderLen
	if etherType == etherTypeVLAN {
		if len(buf) < ethernetHeaderLen+vlanTagLen {
			return nil, NewTooShortError("vlan", ethernetHeaderLen+vlanTagLen, len(buf))
		}
		etherType = binary.BigEndian.Uint16(buf[16:18])
		offset += vlanTagLen
	}
	switch etherType {
	case etherTypeIPv4, etherTypeIPv6:
		return buf[offset:], nil
	default:
		return nil, NewUnsupportedProtoError("ethertype", int(etherType))
	}
}

func parseIPv4(ip []byte, meta Meta, orig []byte) (*ParsedHeaders, error) {
	if len(ip) < 20 {
		return nil, NewTooShortError("ipv4", 20, len(ip))
	}

	// IHL must resolve to [5,15] (20-60 bytes) before any offset computed
	// from it is trusted.
	ihl := int(ip[0] & 0x0f)
	if ihl < 5 || ihl > 15 {
		return nil, NewMalformedHeaderError("ipv4", "ihl", ihl)
	}
	headerLen := ihl * 4
	if len(ip) < headerLen {
		return nil, NewTooShortError("ipv4 options", headerLen, len(ip))
	}

	totalLen := int(binary.BigEndian.Uint16(ip[2:4]))
	if totalLen < headerLen {
		return nil, NewMalformedHeaderError("ipv4", "total_length", totalLen)
	}
	if totalLen > len(ip) {
		return nil, NewTooShortError("ipv4 payload", totalLen, len(ip))
	}

	h := &ParsedHeaders{
		Meta:      meta,
		IPVersion: 4,
		Protocol:  ip[9],
		TTL:       ip[8],
		SrcIP:     net.IP(append([]byte(nil), ip[12:16]...)),
		DstIP:     net.IP(append([]byte(nil), ip[16:20]...)),
	}

	// A non-first fragment carries no transport header.
	fragOffset := binary.BigEndian.Uint16(ip[6:8]) & 0x1fff
	if fragOffset != 0 {
		return h, nil
	}

	if h.Protocol == 6 {
		if err := parseTCP(ip[headerLen:totalLen], h, orig); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func parseIPv6(ip []byte, meta Meta, orig []byte) (*ParsedHeaders, error) {
	if len(ip) < ipv6HeaderLen {
		return nil, NewTooShortError("ipv6", ipv6HeaderLen, len(ip))
	}

	payloadLen := int(binary.BigEndian.Uint16(ip[4:6]))
	if len(ip) < ipv6HeaderLen+payloadLen {
		return nil, NewTooShortError("ipv6 payload", ipv6HeaderLen+payloadLen, len(ip))
	}

	h := &ParsedHeaders{
		Meta:      meta,
		IPVersion: 6,
		Protocol:  ip[6], // next header; extension chains are not walked
		TTL:       ip[7], // hop limit
		SrcIP:     net.IP(append([]byte(nil), ip[8:24]...)),
		DstIP:     net.IP(append([]byte(nil), ip[24:40]...)),
	}

	if h.Protocol == 6 {
		if err := parseTCP(ip[ipv6HeaderLen:ipv6HeaderLen+payloadLen], h, orig); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func parseTCP(seg []byte, h *ParsedHeaders, orig []byte) error {
	if len(seg) < 20 {
		return NewTooShortError("tcp", 20, len(seg))
	}

	// Data offset must resolve to [5,15] before option bytes are sliced.
	dataOffset := int(seg[12] >> 4)
	if dataOffset < 5 || dataOffset > 15 {
		return NewMalformedHeaderError("tcp", "data_offset", dataOffset)
	}
	headerLen := dataOffset * 4
	if len(seg) < headerLen {
		return NewTooShortError("tcp options", headerLen, len(seg))
	}

	h.SrcPort = binary.BigEndian.Uint16(seg[0:2])
	h.DstPort = binary.BigEndian.Uint16(seg[2:4])
	h.WindowSize = binary.BigEndian.Uint16(seg[14:16])

	flagBits := seg[13]
	h.Flags = TCPFlags{
		FIN: flagBits&0x01 != 0,
		SYN: flagBits&0x02 != 0,
		RST: flagBits&0x04 != 0,
		PSH: flagBits&0x08 != 0,
		ACK: flagBits&0x10 != 0,
		URG: flagBits&0x20 != 0,
		ECE: flagBits&0x40 != 0,
		CWR: flagBits&0x80 != 0,
	}

	h.Options = parseTCPOptions(seg[20:headerLen])
	h.Payload = seg[headerLen:]
	h.PayloadOffset = len(orig) - len(seg) + headerLen
	return nil
}

// parseTCPOptions walks the option bytes of a validated TCP header. The loop
// is bounded by the already range-checked header length; a declared option
// length < 2 or one that would push the cursor past the slice halts the walk
// and returns the options decoded so far.
func parseTCPOptions(opts []byte) []TCPOption {
	var out []TCPOption
	i := 0
	for i < len(opts) {
		kind := opts[i]
		switch kind {
		case TCPOptEOL:
			return out
		case TCPOptNOP:
			out = append(out, TCPOption{Kind: kind})
			i++
		default:
			if i+1 >= len(opts) {
				return out
			}
			optLen := int(opts[i+1])
			if optLen < 2 || i+optLen > len(opts) {
				return out
			}
			out = append(out, TCPOption{Kind: kind, Data: opts[i+2 : i+optLen]})
			i += optLen
		}
	}
	return out
}
