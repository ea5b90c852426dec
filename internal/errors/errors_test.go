package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"codeberg.org/mutker/drowsyctl/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessageFallsBackToCode(t *testing.T) {
	err := errors.New().New(errors.ErrorCode("something_custom"))
	assert.Equal(t, "something_custom", err.Error())
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("device busy")
	err := errors.New().Wrap(errors.ErrCameraUnavailable, cause)

	assert.Equal(t, errors.ErrCameraUnavailable, err.Code())
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "Camera unavailable: device busy", err.Error())
}

func TestWithDataOverridesCauseInMessage(t *testing.T) {
	err := errors.New().WithData(errors.ErrLogSchema, "columns=[timestamp status]")
	assert.Equal(t, "Measurement log has no ear column: columns=[timestamp status]", err.Error())
	assert.Equal(t, "columns=[timestamp status]", err.GetData())
}

func TestCodeOfAndHasCode(t *testing.T) {
	inner := errors.New().New(errors.ErrLogSchema)
	outer := errors.New().Wrap(errors.ErrLogRead, inner)
	plain := fmt.Errorf("context: %w", outer)

	assert.Equal(t, errors.ErrLogRead, errors.CodeOf(plain))
	assert.True(t, errors.HasCode(plain, errors.ErrLogSchema))
	assert.False(t, errors.HasCode(plain, errors.ErrFrameRead))
	assert.Equal(t, errors.ErrorCode(""), errors.CodeOf(stderrors.New("plain")))
}

func TestErrorJoinsDataAndCause(t *testing.T) {
	err := errors.New().Wrap(errors.ErrLogWrite, stderrors.New("disk full")).WithData("data/ear_log.csv")
	assert.Equal(t, "Failed to append measurement: data/ear_log.csv: disk full", err.Error())
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("start: %w", errors.New().Wrap(errors.ErrCameraUnavailable, stderrors.New("busy")))

	assert.True(t, stderrors.Is(err, errors.New().New(errors.ErrCameraUnavailable)))
	assert.False(t, stderrors.Is(err, errors.New().New(errors.ErrFrameRead)))
}

func TestWithMessageDoesNotMutate(t *testing.T) {
	base := errors.New().New(errors.ErrTimeout)
	custom := base.WithMessage("stop timed out")

	assert.Equal(t, "stop timed out", custom.Error())
	assert.NotEqual(t, custom.Error(), base.Error())
	assert.Equal(t, errors.ErrTimeout, custom.Code())
}

func TestRecoverable(t *testing.T) {
	assert.True(t, errors.Recoverable(errors.New().New(errors.ErrFrameRead)))
	assert.True(t, errors.Recoverable(fmt.Errorf("tick: %w", errors.New().New(errors.ErrLogWrite))))
	assert.False(t, errors.Recoverable(errors.New().New(errors.ErrCameraUnavailable)))
	assert.False(t, errors.Recoverable(stderrors.New("plain")))
}
