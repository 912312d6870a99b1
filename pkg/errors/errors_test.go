package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneKeepsCodeForErrorsIs(t *testing.T) {
	cloned := Clone(ErrScheduleConflict, "period 2 overlaps period 3")
	require.NotSame(t, ErrScheduleConflict, cloned)
	assert.True(t, errors.Is(cloned, ErrScheduleConflict))
	assert.False(t, errors.Is(cloned, ErrCapacityExhausted))
	assert.Equal(t, "period 2 overlaps period 3", cloned.Message)
}

func TestFromErrorWrapsUnknownErrors(t *testing.T) {
	appErr := FromError(fmt.Errorf("boom"))
	require.NotNil(t, appErr)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)

	wrapped := fmt.Errorf("outer: %w", ErrWaitlistFull)
	assert.Equal(t, ErrWaitlistFull.Code, FromError(wrapped).Code)
	assert.Nil(t, FromError(nil))
}
