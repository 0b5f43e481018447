// Package fingerprint defines the per-layer fingerprint value types, GREASE
// normalization, the JA3/JA4 hash constructions and the structured similarity
// scoring used to match observed clients against known profiles.
//
// Hash digests produced here are opaque equality keys. Similarity between two
// fingerprints is always computed field by field on the normalized lists;
// comparing digests bitwise is meaningless because of hash avalanche.
package fingerprint

import (
	"fmt"
	"strings"
	"time"
)

// Type labels which protocol layer produced a fingerprint.
type Type string

const (
	TypeTCP   Type = "tcp"
	TypeTLS   Type = "tls"
	TypeHTTP  Type = "http"
	TypeHTTP2 Type = "http2"
)

// TCPFingerprint captures the OS-correlated features of a SYN segment.
type TCPFingerprint struct {
	TTL         byte   `json:"ttl"`
	InitialTTL  byte   `json:"initial_ttl"`
	WindowSize  uint16 `json:"window_size"`
	MSS         uint16 `json:"mss,omitempty"`
	WindowScale uint8  `json:"window_scale,omitempty"`
	HasMSS      bool   `json:"has_mss"`
	HasWScale   bool   `json:"has_window_scale"`
	SACKPermit  bool   `json:"sack_permitted"`
	// OptionsOrder is the wire order of option kinds, a signal that
	// distinguishes OS network stacks.
	OptionsOrder []byte `json:"options_order"`
}

// OptionsString renders the option order in the conventional short form
// (mss,sack,ts,nop,ws).
func (f *TCPFingerprint) OptionsString() string {
	names := make([]string, 0, len(f.OptionsOrder))
	for _, kind := range f.OptionsOrder {
		switch kind {
		case 1:
			names = append(names, "nop")
		case 2:
			names = append(names, "mss")
		case 3:
			names = append(names, "ws")
		case 4:
			names = append(names, "sack")
		case 8:
			names = append(names, "ts")
		default:
			names = append(names, fmt.Sprintf("opt%d", kind))
		}
	}
	return strings.Join(names, ",")
}

// ID returns the stable identifier for this TCP fingerprint, a JA4T-style
// string of window, options, MSS and inferred initial TTL.
func (f *TCPFingerprint) ID() string {
	return fmt.Sprintf("tcp:%d_%s_%d_%d", f.WindowSize, f.OptionsString(), f.MSS, f.InitialTTL)
}

// TLSFingerprint captures a ClientHello in wire order. The raw lists retain
// GREASE values for display; hashing always goes through the normalized
// (GREASE-stripped) views.
type TLSFingerprint struct {
	Version         uint16   `json:"tls_version"`
	CipherSuites    []uint16 `json:"cipher_suites"`
	Extensions      []uint16 `json:"extensions"`
	Curves          []uint16 `json:"curves"`
	PointFormats    []uint8  `json:"point_formats"`
	SignatureAlgos  []uint16 `json:"signature_algorithms"`
	ALPN            string   `json:"alpn,omitempty"`
	SNI             string   `json:"sni,omitempty"`
	JA3             string   `json:"ja3_hash"`
	JA4             string   `json:"ja4_hash"`
	// JA4Unordered is the order-independent extension digest, computed for
	// browser families that permute extension order per connection.
	JA4Unordered string `json:"ja4_unordered,omitempty"`
}

// ID returns the stable identifier for this TLS fingerprint (JA4 primary,
// JA3 fallback for pre-JA4 records).
func (f *TLSFingerprint) ID() string {
	if f.JA4 != "" {
		return "tls:" + f.JA4
	}
	return "tls:" + f.JA3
}

// HTTPFingerprint captures the request-shape features of cleartext HTTP and,
// when visible, the HTTP/2 SETTINGS frame. Settings are nil (not empty) when
// the frame was not observed: in ordinary HTTPS traffic it is TLS-encrypted,
// so absence carries no signal.
type HTTPFingerprint struct {
	Method      string   `json:"method,omitempty"`
	Path        string   `json:"path,omitempty"`
	HeaderOrder []string `json:"header_name_order,omitempty"`
	UserAgent   string   `json:"user_agent,omitempty"`

	H2Settings        []Setting `json:"http2_settings,omitempty"`
	H2BrowserGuess    string    `json:"http2_browser_guess,omitempty"`
	H2GuessConfidence float64   `json:"http2_guess_confidence,omitempty"`
}

// Setting is one HTTP/2 SETTINGS id/value pair in wire order.
type Setting struct {
	ID    uint16 `json:"id"`
	Value uint32 `json:"value"`
}

// H2Setting returns the value for a SETTINGS identifier, if present.
func (f *HTTPFingerprint) H2Setting(id uint16) (uint32, bool) {
	for _, s := range f.H2Settings {
		if s.ID == id {
			return s.Value, true
		}
	}
	return 0, false
}

// ID returns the stable identifier for this HTTP fingerprint, a digest of
// the header name order plus the User-Agent.
func (f *HTTPFingerprint) ID() string {
	return "http:" + headerOrderDigest(f.HeaderOrder, f.UserAgent)
}

// Record unifies the per-layer fingerprints extracted from one analyzed flow.
// A flow may have any subset of the three layers populated.
type Record struct {
	FlowID    string    `json:"flow_id"`
	Timestamp time.Time `json:"timestamp"`

	TCP  *TCPFingerprint  `json:"tcp,omitempty"`
	TLS  *TLSFingerprint  `json:"tls,omitempty"`
	HTTP *HTTPFingerprint `json:"http,omitempty"`

	MatchedProfileID string  `json:"matched_profile_id,omitempty"`
	MatchConfidence  float64 `json:"match_confidence"`
}

// PrimaryID returns the highest-signal identifier present on the record,
// preferring TLS over TCP over HTTP.
func (r *Record) PrimaryID() string {
	switch {
	case r.TLS != nil:
		return r.TLS.ID()
	case r.TCP != nil:
		return r.TCP.ID()
	case r.HTTP != nil:
		return r.HTTP.ID()
	default:
		return ""
	}
}

// TCPTemplate is the OS-correlated reference shape of a known client's
// network stack.
type TCPTemplate struct {
	InitialTTL  byte   `json:"initial_ttl" yaml:"initial_ttl"`
	WindowSize  uint16 `json:"window_size" yaml:"window_size"`
	MSS         uint16 `json:"mss" yaml:"mss"`
	WindowScale uint8  `json:"window_scale" yaml:"window_scale"`
}

// TLSTemplate is the reference ClientHello shape of a known client.
type TLSTemplate struct {
	Version        uint16   `json:"tls_version" yaml:"tls_version"`
	CipherSuites   []uint16 `json:"cipher_suites" yaml:"cipher_suites"`
	Extensions     []uint16 `json:"extensions" yaml:"extensions"`
	Curves         []uint16 `json:"curves" yaml:"curves"`
	SignatureAlgos []uint16 `json:"signature_algorithms" yaml:"signature_algorithms"`
	// PermutesExtensions marks browser families that shuffle extension
	// order per connection; matching uses the order-independent digest.
	PermutesExtensions bool `json:"permutes_extensions" yaml:"permutes_extensions"`
}

// KnownProfile is one immutable entry of the seed registry or a promoted
// observation. Profiles are built once at startup and never mutated.
type KnownProfile struct {
	ProfileID  string `json:"profile_id" yaml:"profile_id"`
	Browser    string `json:"browser" yaml:"browser"`
	Version    string `json:"version" yaml:"version"`
	OS         string `json:"os" yaml:"os"`
	Automation bool   `json:"automation" yaml:"automation"`

	TCP *TCPTemplate `json:"tcp,omitempty" yaml:"tcp,omitempty"`
	TLS *TLSTemplate `json:"tls,omitempty" yaml:"tls,omitempty"`
	// H2InitialWindow is the INITIAL_WINDOW_SIZE this client advertises,
	// zero when unknown.
	H2InitialWindow uint32 `json:"h2_initial_window,omitempty" yaml:"h2_initial_window,omitempty"`
}
