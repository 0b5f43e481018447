package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// JA4 implements the FoxIO JA4 TLS client fingerprint
// (https://github.com/FoxIO-LLC/ja4). Layout:
//
//	{t|q}{version}{d|i}{cipher count:02}{ext count:02}{alpn}_{ja4_b}_{ja4_c}
//
// where ja4_b is the truncated SHA-256 of the sorted GREASE-free cipher list
// and ja4_c the truncated SHA-256 of the sorted GREASE-free extension list
// (minus SNI and ALPN) plus the signature algorithms in wire order. Sorting
// makes the digest immune to per-connection extension shuffling.

const (
	extServerName     uint16 = 0x0000
	extALPN           uint16 = 0x0010
	ja4EmptyHash             = "000000000000"
	ja4TruncatedBytes        = 12
)

// JA4Input carries the ClientHello fields the JA4 construction consumes.
type JA4Input struct {
	Transport      byte // 't' for TCP, 'q' for QUIC
	Version        uint16
	HasSNI         bool
	ALPN           string
	CipherSuites   []uint16
	Extensions     []uint16
	SignatureAlgos []uint16
}

// JA4 computes the full fingerprint string.
func JA4(in JA4Input) string {
	transport := in.Transport
	if transport == 0 {
		transport = 't'
	}

	dest := byte('i')
	if in.HasSNI {
		dest = 'd'
	}

	ciphers := StripGrease(in.CipherSuites)
	extensions := StripGrease(in.Extensions)

	cipherCount := len(ciphers)
	if cipherCount > 99 {
		cipherCount = 99
	}
	extCount := len(extensions)
	if extCount > 99 {
		extCount = 99
	}

	return fmt.Sprintf("%c%s%c%02d%02d%s_%s_%s",
		transport,
		ja4Version(in.Version),
		dest,
		cipherCount,
		extCount,
		ja4ALPN(in.ALPN),
		ja4CipherHash(ciphers),
		ja4ExtensionHash(extensions, in.SignatureAlgos),
	)
}

// UnorderedExtensionDigest hashes the sorted multiset of GREASE-free
// extensions. It is tagged onto fingerprints of browser families that
// permute extension order per connection so equality survives the shuffle.
func UnorderedExtensionDigest(extensions []uint16) string {
	sorted := append([]uint16(nil), StripGrease(extensions)...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return truncatedSHA256(hexJoin(sorted))
}

func ja4Version(v uint16) string {
	switch v {
	case 0x0304:
		return "13"
	case 0x0303:
		return "12"
	case 0x0302:
		return "11"
	case 0x0301:
		return "10"
	default:
		return "00"
	}
}

// ja4ALPN renders the first ALPN value as its first and last character
// ("h2" -> "h2", "http/1.1" -> "h1"), "00" when absent.
func ja4ALPN(alpn string) string {
	if alpn == "" {
		return "00"
	}
	if len(alpn) == 1 {
		return alpn + alpn
	}
	return string(alpn[0]) + string(alpn[len(alpn)-1])
}

func ja4CipherHash(ciphers []uint16) string {
	if len(ciphers) == 0 {
		return ja4EmptyHash
	}
	sorted := append([]uint16(nil), ciphers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return truncatedSHA256(hexJoin(sorted))
}

func ja4ExtensionHash(extensions, sigAlgos []uint16) string {
	filtered := make([]uint16, 0, len(extensions))
	for _, e := range extensions {
		if e == extServerName || e == extALPN {
			continue
		}
		filtered = append(filtered, e)
	}
	if len(filtered) == 0 {
		return ja4EmptyHash
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i] < filtered[j] })

	input := hexJoin(filtered)
	if len(sigAlgos) > 0 {
		// Signature algorithms stay in wire order, unlike the sorted extensions.
		input += "_" + hexJoin(sigAlgos)
	}
	return truncatedSHA256(input)
}

func hexJoin(values []uint16) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%04x", v)
	}
	return strings.Join(parts, ",")
}

func truncatedSHA256(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:ja4TruncatedBytes]
}

// headerOrderDigest hashes an HTTP header name order plus User-Agent into a
// short stable id for the learner.
func headerOrderDigest(order []string, userAgent string) string {
	lowered := make([]string, len(order))
	for i, h := range order {
		lowered[i] = strings.ToLower(h)
	}
	return truncatedSHA256(strings.Join(lowered, ",") + "|" + userAgent)
}
