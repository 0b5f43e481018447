package fingerprint

// GREASE values (RFC 8701) are reserved 16-bit code points that clients
// insert into cipher, extension and curve lists to keep middleboxes honest.
// Which of the 16 values appears is randomized per connection, so they must
// be stripped before any list is hashed or compared.

// IsGrease reports whether v is one of the 16 reserved GREASE code points.
// The family is exactly the values with identical high and low bytes whose
// low nibbles are both 0xa (0x0a0a, 0x1a1a, ... 0xfafa), so a constant-time
// bitwise test suffices; no table scan.
func IsGrease(v uint16) bool {
	return v&0x0f0f == 0x0a0a && byte(v>>8) == byte(v)
}

// StripGrease returns values with GREASE entries removed, preserving the
// relative order of everything else. The input is not modified; callers keep
// the raw list for display.
func StripGrease(values []uint16) []uint16 {
	out := make([]uint16, 0, len(values))
	for _, v := range values {
		if !IsGrease(v) {
			out = append(out, v)
		}
	}
	return out
}

// CountGrease returns how many GREASE entries values contains.
func CountGrease(values []uint16) int {
	n := 0
	for _, v := range values {
		if IsGrease(v) {
			n++
		}
	}
	return n
}
