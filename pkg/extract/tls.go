package extract

import (
	"encoding/binary"

	"github.com/traceprint/traceprint/pkg/fingerprint"
)

const (
	tlsRecordHandshake   = 0x16
	tlsHandshakeClientHi = 0x01

	extServerName        uint16 = 0x0000
	extSupportedGroups   uint16 = 0x000a
	extECPointFormats    uint16 = 0x000b
	extSignatureAlgos    uint16 = 0x000d
	extALPN              uint16 = 0x0010
	extSupportedVersions uint16 = 0x002b

	// maxRecordWalk bounds how many TLS records are scanned per payload so a
	// crafted stream of tiny records cannot pin the extractor.
	maxRecordWalk = 8
)

// TLS scans a TCP payload for a ClientHello and extracts its fingerprint.
// Returns nil when the payload holds no parseable ClientHello; a flow without
// TLS is an absent layer, not an error. JA3/JA4 are computed after GREASE
// normalization.
func TLS(payload []byte) *fingerprint.TLSFingerprint {
	hello := findClientHello(payload)
	if hello == nil {
		return nil
	}

	fp := parseClientHello(hello)
	if fp == nil {
		return nil
	}

	fp.JA3 = fingerprint.JA3(fp.Version, fp.CipherSuites, fp.Extensions, fp.Curves, fp.PointFormats)
	fp.JA4 = fingerprint.JA4(fingerprint.JA4Input{
		Transport:      't',
		Version:        fp.Version,
		HasSNI:         fp.SNI != "",
		ALPN:           fp.ALPN,
		CipherSuites:   fp.CipherSuites,
		Extensions:     fp.Extensions,
		SignatureAlgos: fp.SignatureAlgos,
	})
	fp.JA4Unordered = fingerprint.UnorderedExtensionDigest(fp.Extensions)
	return fp
}

// findClientHello walks TLS records looking for a handshake record whose
// first message is a ClientHello, returning the handshake bytes.
func findClientHello(data []byte) []byte {
	offset := 0
	for walked := 0; walked < maxRecordWalk && offset+5 <= len(data); walked++ {
		contentType := data[offset]
		recordLen := int(binary.BigEndian.Uint16(data[offset+3 : offset+5]))
		recordEnd := offset + 5 + recordLen
		if recordEnd > len(data) {
			return nil
		}
		if contentType == tlsRecordHandshake {
			body := data[offset+5 : recordEnd]
			if len(body) >= 4 && body[0] == tlsHandshakeClientHi {
				declared := int(body[1])<<16 | int(body[2])<<8 | int(body[3])
				if 4+declared <= len(body) {
					return body[4 : 4+declared]
				}
				return nil
			}
		}
		offset = recordEnd
	}
	return nil
}

// parseClientHello decodes the ClientHello body. Every list length is
// checked against the remaining buffer before slicing; short or inconsistent
// bodies yield nil.
func parseClientHello(body []byte) *fingerprint.TLSFingerprint {
	// version(2) + random(32) + session id length(1)
	if len(body) < 35 {
		return nil
	}
	fp := &fingerprint.TLSFingerprint{
		Version: binary.BigEndian.Uint16(body[0:2]),
	}
	offset := 34

	sessionLen := int(body[offset])
	offset += 1 + sessionLen
	if offset+2 > len(body) {
		return nil
	}

	cipherLen := int(binary.BigEndian.Uint16(body[offset : offset+2]))
	offset += 2
	if offset+cipherLen > len(body) || cipherLen%2 != 0 {
		return nil
	}
	for i := offset; i < offset+cipherLen; i += 2 {
		fp.CipherSuites = append(fp.CipherSuites, binary.BigEndian.Uint16(body[i:i+2]))
	}
	offset += cipherLen

	if offset >= len(body) {
		return nil
	}
	compressionLen := int(body[offset])
	offset += 1 + compressionLen
	if offset > len(body) {
		return nil
	}

	// Extensions are optional (SSLv3-style hellos stop here).
	if offset+2 > len(body) {
		return fp
	}
	extTotal := int(binary.BigEndian.Uint16(body[offset : offset+2]))
	offset += 2
	extEnd := offset + extTotal
	if extEnd > len(body) {
		return fp
	}

	for offset+4 <= extEnd {
		extType := binary.BigEndian.Uint16(body[offset : offset+2])
		extLen := int(binary.BigEndian.Uint16(body[offset+2 : offset+4]))
		offset += 4
		if offset+extLen > extEnd {
			break
		}
		extData := body[offset : offset+extLen]
		offset += extLen

		fp.Extensions = append(fp.Extensions, extType)
		switch extType {
		case extSupportedGroups:
			fp.Curves = parseU16List(extData)
		case extECPointFormats:
			fp.PointFormats = parseU8List(extData)
		case extSignatureAlgos:
			fp.SignatureAlgos = parseU16List(extData)
		case extServerName:
			fp.SNI = parseSNI(extData)
		case extALPN:
			fp.ALPN = parseALPN(extData)
		case extSupportedVersions:
			// The legacy version field is pinned to 1.2 by TLS 1.3
			// clients; the real maximum lives here.
			if v := highestSupportedVersion(extData); v != 0 {
				fp.Version = v
			}
		}
	}
	return fp
}

// parseU16List decodes a 2-byte-length-prefixed list of uint16 values.
func parseU16List(data []byte) []uint16 {
	if len(data) < 2 {
		return nil
	}
	listLen := int(binary.BigEndian.Uint16(data[0:2]))
	if listLen > len(data)-2 {
		listLen = len(data) - 2
	}
	var out []uint16
	for i := 2; i+1 < 2+listLen; i += 2 {
		out = append(out, binary.BigEndian.Uint16(data[i:i+2]))
	}
	return out
}

// parseU8List decodes a 1-byte-length-prefixed list of bytes.
func parseU8List(data []byte) []uint8 {
	if len(data) < 1 {
		return nil
	}
	listLen := int(data[0])
	if listLen > len(data)-1 {
		listLen = len(data) - 1
	}
	return append([]uint8(nil), data[1:1+listLen]...)
}

func parseSNI(data []byte) string {
	// list length(2) + name type(1) + name length(2)
	if len(data) < 5 || data[2] != 0x00 {
		return ""
	}
	nameLen := int(binary.BigEndian.Uint16(data[3:5]))
	if 5+nameLen > len(data) {
		return ""
	}
	return string(data[5 : 5+nameLen])
}

func parseALPN(data []byte) string {
	// list length(2) + first protocol length(1)
	if len(data) < 3 {
		return ""
	}
	protoLen := int(data[2])
	if 3+protoLen > len(data) {
		return ""
	}
	return string(data[3 : 3+protoLen])
}

// highestSupportedVersion picks the highest non-GREASE version offered in a
// supported_versions extension.
func highestSupportedVersion(data []byte) uint16 {
	if len(data) < 1 {
		return 0
	}
	listLen := int(data[0])
	if listLen > len(data)-1 {
		listLen = len(data) - 1
	}
	var best uint16
	for i := 1; i+2 <= 1+listLen; i += 2 {
		v := binary.BigEndian.Uint16(data[i : i+2])
		if fingerprint.IsGrease(v) {
			continue
		}
		if v > best {
			best = v
		}
	}
	return best
}
