// Package extract turns parsed headers and transport payloads into per-layer
// fingerprints. Extractors are pure functions: a layer that is not present in
// the flow yields nil, never an error, since a flow legitimately has any
// subset of the three layers.
package extract

import (
	"encoding/binary"

	"github.com/traceprint/traceprint/pkg/fingerprint"
	"github.com/traceprint/traceprint/pkg/wire"
)

// TCP extracts the OS-correlated SYN features. Only SYN (and SYN-ACK)
// segments carry the negotiation options the fingerprint is built from, so
// anything else yields nil.
func TCP(h *wire.ParsedHeaders) *fingerprint.TCPFingerprint {
	if h == nil || !h.IsTCP() || !h.Flags.SYN {
		return nil
	}

	fp := &fingerprint.TCPFingerprint{
		TTL:        h.TTL,
		InitialTTL: inferInitialTTL(h.TTL),
		WindowSize: h.WindowSize,
	}

	for _, opt := range h.Options {
		fp.OptionsOrder = append(fp.OptionsOrder, opt.Kind)
		switch opt.Kind {
		case wire.TCPOptMSS:
			if len(opt.Data) >= 2 {
				fp.MSS = binary.BigEndian.Uint16(opt.Data[:2])
				fp.HasMSS = true
			}
		case wire.TCPOptWScale:
			if len(opt.Data) >= 1 {
				fp.WindowScale = opt.Data[0]
				fp.HasWScale = true
			}
		case wire.TCPOptSACKPerm:
			fp.SACKPermit = true
		}
	}
	return fp
}

// inferInitialTTL maps an observed TTL back to the common initial values
// (32, 64, 128, 255); the decrement en route is path length, not client
// identity.
func inferInitialTTL(ttl byte) byte {
	switch {
	case ttl <= 32:
		return 32
	case ttl <= 64:
		return 64
	case ttl <= 128:
		return 128
	default:
		return 255
	}
}
