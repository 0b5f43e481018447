package wire

import (
	"errors"
	"fmt"
)

var (
	// ErrTooShort indicates the buffer ends before a length it itself declares.
	ErrTooShort = errors.New("buffer shorter than declared length")
	// ErrMalformedHeader indicates a header length field outside its legal range.
	ErrMalformedHeader = errors.New("malformed header")
	// ErrUnsupportedProto indicates a link or network protocol the parser does not decode.
	ErrUnsupportedProto = errors.New("unsupported protocol")
)

// NewTooShortError formats a truncation error with the offending layer and sizes.
func NewTooShortError(layer string, need, have int) error {
	return fmt.Errorf("%w: %s needs %d bytes, have %d", ErrTooShort, layer, need, have)
}

// NewMalformedHeaderError formats a range violation for a declared header length.
func NewMalformedHeaderError(layer string, field string, value int) error {
	return fmt.Errorf("%w: %s %s=%d out of range", ErrMalformedHeader, layer, field, value)
}

// NewUnsupportedProtoError formats an unsupported protocol error.
func NewUnsupportedProtoError(layer string, value int) error {
	return fmt.Errorf("%w: %s 0x%x", ErrUnsupportedProto, layer, value)
}
