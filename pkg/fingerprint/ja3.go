package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
)

// JA3 computes the Salesforce JA3 client fingerprint:
// MD5("version,ciphers,extensions,curves,pointFormats") with each list
// dash-joined in decimal, wire order preserved. GREASE entries are stripped
// first; hashing raw wire values would make the digest unstable across
// connections of the same client.
func JA3(version uint16, ciphers, extensions, curves []uint16, pointFormats []uint8) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(int(version)))
	b.WriteByte(',')
	writeU16List(&b, StripGrease(ciphers))
	b.WriteByte(',')
	writeU16List(&b, StripGrease(extensions))
	b.WriteByte(',')
	writeU16List(&b, StripGrease(curves))
	b.WriteByte(',')
	for i, f := range pointFormats {
		if i > 0 {
			b.WriteByte('-')
		}
		b.WriteString(strconv.Itoa(int(f)))
	}

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// JA3String returns the pre-hash JA3 input string, useful for display and
// for debugging mismatches.
func JA3String(version uint16, ciphers, extensions, curves []uint16, pointFormats []uint8) string {
	parts := make([]string, 0, 5)
	parts = append(parts, strconv.Itoa(int(version)))
	parts = append(parts, joinU16(StripGrease(ciphers)))
	parts = append(parts, joinU16(StripGrease(extensions)))
	parts = append(parts, joinU16(StripGrease(curves)))
	fmtParts := make([]string, len(pointFormats))
	for i, f := range pointFormats {
		fmtParts[i] = strconv.Itoa(int(f))
	}
	parts = append(parts, strings.Join(fmtParts, "-"))
	return strings.Join(parts, ",")
}

func writeU16List(b *strings.Builder, values []uint16) {
	for i, v := range values {
		if i > 0 {
			b.WriteByte('-')
		}
		b.WriteString(strconv.Itoa(int(v)))
	}
}

func joinU16(values []uint16) string {
	var b strings.Builder
	writeU16List(&b, values)
	return b.String()
}
