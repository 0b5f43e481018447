package extract

import (
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/traceprint/traceprint/pkg/fingerprint"
)

const (
	h2FrameSettings = 0x4

	h2SettingInitialWindowSize uint16 = 0x0004

	// maxFrameWalk bounds HTTP/2 frame scanning the same way maxRecordWalk
	// bounds TLS records.
	maxFrameWalk = 16

	// maxHeaderLines caps how many request headers are folded into the
	// fingerprint.
	maxHeaderLines = 64
)

var h2Preface = []byte("PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n")

// h2WindowProfiles maps the INITIAL_WINDOW_SIZE each major browser ships to
// its family. The value is distinctive enough per family that a match is a
// strong signal.
var h2WindowProfiles = map[uint32]string{
	6291456: "Chrome",
	131072:  "Firefox",
	2097152: "Safari",
}

const h2WindowGuessConfidence = 0.95

// HTTP extracts request-shape features from a cleartext TCP payload. It
// recognizes both HTTP/1.x request heads and the HTTP/2 connection preface;
// payloads that are neither (including TLS-encrypted traffic) yield nil.
func HTTP(payload []byte) *fingerprint.HTTPFingerprint {
	if len(payload) == 0 {
		return nil
	}
	if bytes.HasPrefix(payload, h2Preface) {
		return parseHTTP2(payload[len(h2Preface):])
	}
	return parseHTTP1(payload)
}

// parseHTTP1 decodes the request line and the header name order. Only the
// names are kept; header values beyond User-Agent are request content, not
// client identity.
func parseHTTP1(payload []byte) *fingerprint.HTTPFingerprint {
	head := payload
	if end := bytes.Index(payload, []byte("\r\n\r\n")); end >= 0 {
		head = payload[:end]
	}
	lines := strings.Split(string(head), "\r\n")
	if len(lines) == 0 {
		return nil
	}

	parts := strings.SplitN(lines[0], " ", 3)
	if len(parts) != 3 || !strings.HasPrefix(parts[2], "HTTP/") || !isHTTPMethod(parts[0]) {
		return nil
	}
	fp := &fingerprint.HTTPFingerprint{
		Method: parts[0],
		Path:   parts[1],
	}

	for i, line := range lines[1:] {
		if i >= maxHeaderLines || line == "" {
			break
		}
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			continue
		}
		name := strings.TrimSpace(line[:colon])
		fp.HeaderOrder = append(fp.HeaderOrder, name)
		if strings.EqualFold(name, "User-Agent") {
			fp.UserAgent = strings.TrimSpace(line[colon+1:])
		}
	}
	return fp
}

var httpMethods = map[string]struct{}{
	"GET": {}, "POST": {}, "PUT": {}, "DELETE": {}, "HEAD": {},
	"OPTIONS": {}, "PATCH": {}, "CONNECT": {}, "TRACE": {},
}

func isHTTPMethod(s string) bool {
	_, ok := httpMethods[s]
	return ok
}

// parseHTTP2 walks the frames after the preface looking for the client's
// SETTINGS frame. Settings stay in wire order; their order is itself part of
// the fingerprint.
func parseHTTP2(data []byte) *fingerprint.HTTPFingerprint {
	fp := &fingerprint.HTTPFingerprint{}

	offset := 0
	for walked := 0; walked < maxFrameWalk && offset+9 <= len(data); walked++ {
		frameLen := int(data[offset])<<16 | int(data[offset+1])<<8 | int(data[offset+2])
		frameType := data[offset+3]
		frameEnd := offset + 9 + frameLen
		if frameEnd > len(data) {
			break
		}
		if frameType == h2FrameSettings && frameLen%6 == 0 {
			body := data[offset+9 : frameEnd]
			for i := 0; i+6 <= len(body); i += 6 {
				fp.H2Settings = append(fp.H2Settings, fingerprint.Setting{
					ID:    binary.BigEndian.Uint16(body[i : i+2]),
					Value: binary.BigEndian.Uint32(body[i+2 : i+6]),
				})
			}
			break
		}
		offset = frameEnd
	}

	if window, ok := fp.H2Setting(h2SettingInitialWindowSize); ok {
		if browser, known := h2WindowProfiles[window]; known {
			fp.H2BrowserGuess = browser
			fp.H2GuessConfidence = h2WindowGuessConfidence
		}
	}
	return fp
}
