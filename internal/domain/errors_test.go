package domain

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	netErr := fmt.Errorf("starting: %w", &NetworkError{Op: "start", Err: context.DeadlineExceeded})
	assert.True(t, IsNetworkError(netErr))
	assert.False(t, IsApplicationError(netErr))
	assert.ErrorIs(t, netErr, context.DeadlineExceeded)

	appErr := &ApplicationError{Op: "pause", Code: CodeNoOpenSession, Err: ErrNoOpenSession}
	assert.True(t, IsApplicationError(appErr))
	assert.False(t, IsNetworkError(appErr))
	assert.ErrorIs(t, appErr, ErrNoOpenSession)
	assert.Contains(t, appErr.Error(), "no open session")
}

func TestErrorCode_RoundTrip(t *testing.T) {
	for _, code := range []string{CodeOwnerNotFound, CodeNoOpenSession, CodeOwnerCompleted, CodeNotCompletable} {
		sentinel := SentinelForCode(code)
		assert.NotNil(t, sentinel, code)
		assert.Equal(t, code, ErrorCode(fmt.Errorf("wrapped: %w", sentinel)))
	}
	assert.Equal(t, CodeInternal, ErrorCode(fmt.Errorf("boom")))
	assert.Equal(t, CodeInvalidRequest, ErrorCode(&ApplicationError{Op: "x", Code: CodeInvalidRequest}))
}
