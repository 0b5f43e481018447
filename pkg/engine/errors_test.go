package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	assert.Empty(t, ErrorCode(nil))
	assert.Equal(t, "ENGINE_CAPTURE_FAILED", ErrorCode(WrapCaptureError(errors.New("boom"))))
	assert.Equal(t, "ENGINE_STORAGE_FAILED", ErrorCode(WrapStorageError(errors.New("boom"))))
	assert.Equal(t, "ENGINE_PROFILES_FAILED", ErrorCode(WrapProfilesError(errors.New("boom"))))
	assert.Equal(t, "ENGINE_PARSE_FAILED", ErrorCode(errors.New("anything else")))

	// The code survives wrapping.
	wrapped := fmt.Errorf("outer: %w", WrapStorageError(errors.New("inner")))
	assert.Equal(t, "ENGINE_STORAGE_FAILED", ErrorCode(wrapped))
}

func TestErrorsUnwrapToSentinels(t *testing.T) {
	assert.ErrorIs(t, WrapCaptureError(errors.New("x")), ErrCaptureFailed)
	assert.ErrorIs(t, WrapStorageError(errors.New("x")), ErrStorageFailed)
	assert.ErrorIs(t, WrapProfilesError(errors.New("x")), ErrProfilesFailed)
	assert.Nil(t, WrapCaptureError(nil))
}

func TestExitCode(t *testing.T) {
	assert.Zero(t, ExitCode(nil))
	assert.Equal(t, 2, ExitCode(WrapCaptureError(errors.New("x"))))
	assert.Equal(t, 3, ExitCode(WrapProfilesError(errors.New("x"))))
	assert.Equal(t, 7, ExitCode(WrapStorageError(errors.New("x"))))
	assert.Equal(t, 1, ExitCode(errors.New("x")))
}
