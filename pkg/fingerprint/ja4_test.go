package fingerprint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chromeLikeInput() JA4Input {
	return JA4Input{
		Transport:      't',
		Version:        0x0304,
		HasSNI:         true,
		ALPN:           "h2",
		CipherSuites:   []uint16{4865, 4866, 4867, 49195, 49199},
		Extensions:     []uint16{0, 23, 65281, 10, 11, 35, 16, 5, 13},
		SignatureAlgos: []uint16{1027, 2052, 1025},
	}
}

func TestJA4Layout(t *testing.T) {
	got := JA4(chromeLikeInput())

	parts := strings.Split(got, "_")
	require.Len(t, parts, 3)
	assert.Equal(t, "t13d0509h2", parts[0])
	assert.Len(t, parts[1], 12)
	assert.Len(t, parts[2], 12)
}

func TestJA4NoSNINoALPN(t *testing.T) {
	in := chromeLikeInput()
	in.HasSNI = false
	in.ALPN = ""
	got := JA4(in)
	assert.True(t, strings.HasPrefix(got, "t13i050900_"), got)
}

func TestJA4StableUnderGrease(t *testing.T) {
	plain := JA4(chromeLikeInput())

	greased := chromeLikeInput()
	greased.CipherSuites = append([]uint16{0x6a6a}, greased.CipherSuites...)
	greased.Extensions = append(greased.Extensions, 0xdada)
	assert.Equal(t, plain, JA4(greased))
}

func TestJA4StableUnderExtensionShuffle(t *testing.T) {
	// The extension hash sorts, so per-connection permutation does not move
	// the digest; only the visible extension count stays the same too.
	a := chromeLikeInput()
	b := chromeLikeInput()
	b.Extensions = []uint16{13, 5, 16, 35, 11, 10, 65281, 23, 0}
	assert.Equal(t, JA4(a), JA4(b))
}

func TestJA4EmptyListsHashAsZeros(t *testing.T) {
	got := JA4(JA4Input{Transport: 't', Version: 0x0303})
	parts := strings.Split(got, "_")
	require.Len(t, parts, 3)
	assert.Equal(t, "000000000000", parts[1])
	assert.Equal(t, "000000000000", parts[2])
}

func TestJA4ALPNRendering(t *testing.T) {
	tests := []struct {
		alpn string
		want string
	}{
		{"", "00"},
		{"h2", "h2"},
		{"http/1.1", "h1"},
		{"x", "xx"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ja4ALPN(tt.alpn), "alpn %q", tt.alpn)
	}
}

func TestJA4VersionMapping(t *testing.T) {
	assert.Equal(t, "13", ja4Version(0x0304))
	assert.Equal(t, "12", ja4Version(0x0303))
	assert.Equal(t, "10", ja4Version(0x0301))
	assert.Equal(t, "00", ja4Version(0x1234))
}

func TestUnorderedExtensionDigest(t *testing.T) {
	a := UnorderedExtensionDigest([]uint16{0, 23, 65281, 10})
	b := UnorderedExtensionDigest([]uint16{10, 65281, 0, 23})
	assert.Equal(t, a, b)

	c := UnorderedExtensionDigest([]uint16{0, 23, 65281, 11})
	assert.NotEqual(t, a, c)

	// GREASE never contributes.
	d := UnorderedExtensionDigest([]uint16{0x8a8a, 0, 23, 65281, 10})
	assert.Equal(t, a, d)
}
