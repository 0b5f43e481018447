package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsGreaseCoversExactlyTheReservedSet(t *testing.T) {
	count := 0
	for v := 0; v <= 0xffff; v++ {
		if IsGrease(uint16(v)) {
			count++
		}
	}
	assert.Equal(t, 16, count, "the reserved set has exactly 16 members")

	for hi := 0; hi < 16; hi++ {
		b := byte(hi)<<4 | 0x0a
		v := uint16(b)<<8 | uint16(b)
		assert.True(t, IsGrease(v), "0x%04x", v)
	}
}

func TestIsGreaseRejectsNeighbors(t *testing.T) {
	for _, v := range []uint16{0x0a0b, 0x0b0a, 0x1a0a, 0xa0a0, 0x0000, 0x1301, 0xffff} {
		assert.False(t, IsGrease(v), "0x%04x", v)
	}
}

func TestStripGreasePreservesOrder(t *testing.T) {
	in := []uint16{0x5a5a, 0x1301, 0x1302, 0xcaca, 0x1303, 0x0a0a}
	got := StripGrease(in)
	assert.Equal(t, []uint16{0x1301, 0x1302, 0x1303}, got)
	// Input untouched.
	assert.Equal(t, uint16(0x5a5a), in[0])
}

func TestCountGrease(t *testing.T) {
	assert.Equal(t, 0, CountGrease(nil))
	assert.Equal(t, 2, CountGrease([]uint16{0x2a2a, 0x1301, 0xfafa}))
}
