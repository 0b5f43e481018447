package engine

import (
	"errors"
	"fmt"
)

const (
	errorCodeParseFailed    = "ENGINE_PARSE_FAILED"
	errorCodeCaptureFailed  = "ENGINE_CAPTURE_FAILED"
	errorCodeStorageFailed  = "ENGINE_STORAGE_FAILED"
	errorCodeProfilesFailed = "ENGINE_PROFILES_FAILED"
)

var (
	// ErrCaptureFailed indicates the frame source could not be read.
	ErrCaptureFailed = errors.New("capture failed")
	// ErrStorageFailed indicates the persistence backend rejected an operation.
	ErrStorageFailed = errors.New("storage failed")
	// ErrProfilesFailed indicates the profile registry could not be loaded.
	ErrProfilesFailed = errors.New("profiles failed")
)

type errorCoder interface {
	error
	Code() string
}

type withCodeError struct {
	error
	code string
}

func (e *withCodeError) Code() string { return e.code }

func (e *withCodeError) Unwrap() error { return e.error }

// WithErrorCode annotates err with an engine error code.
func WithErrorCode(err error, code string) error {
	if err == nil {
		return nil
	}
	return &withCodeError{error: err, code: code}
}

// WrapCaptureError annotates a frame source failure.
func WrapCaptureError(err error) error {
	if err == nil {
		return nil
	}
	return WithErrorCode(fmt.Errorf("%w: %v", ErrCaptureFailed, err), errorCodeCaptureFailed)
}

// WrapStorageError annotates a backend failure.
func WrapStorageError(err error) error {
	if err == nil {
		return nil
	}
	return WithErrorCode(fmt.Errorf("%w: %v", ErrStorageFailed, err), errorCodeStorageFailed)
}

// WrapProfilesError annotates a registry load failure.
func WrapProfilesError(err error) error {
	if err == nil {
		return nil
	}
	return WithErrorCode(fmt.Errorf("%w: %v", ErrProfilesFailed, err), errorCodeProfilesFailed)
}

// ErrorCode resolves an error to its engine error code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var coded errorCoder
	if errors.As(err, &coded) {
		if code := coded.Code(); code != "" {
			return code
		}
	}

	switch {
	case errors.Is(err, ErrCaptureFailed):
		return errorCodeCaptureFailed
	case errors.Is(err, ErrStorageFailed):
		return errorCodeStorageFailed
	case errors.Is(err, ErrProfilesFailed):
		return errorCodeProfilesFailed
	default:
		return errorCodeParseFailed
	}
}

// ExitCode maps engine errors to CLI exit codes.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch {
	case errors.Is(err, ErrCaptureFailed):
		return 2
	case errors.Is(err, ErrProfilesFailed):
		return 3
	case errors.Is(err, ErrStorageFailed):
		return 7
	default:
		return 1
	}
}
