package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionClose(t *testing.T) {
	s := Session{ID: "a", StartedAt: testNow}
	assert.True(t, s.IsOpen())
	assert.Zero(t, s.Duration())

	require.NoError(t, s.Close(testNow.Add(90*time.Minute)))
	assert.False(t, s.IsOpen())
	assert.Equal(t, 90*time.Minute, s.Duration())

	assert.ErrorIs(t, s.Close(testNow.Add(2*time.Hour)), ErrSessionClosed)
	assert.Equal(t, 90*time.Minute, s.Duration(), "closed session is mutated exactly once")
}

func TestSessionClose_ClampsSkewedEnd(t *testing.T) {
	s := Session{ID: "a", StartedAt: testNow}
	require.NoError(t, s.Close(testNow.Add(-time.Minute)))
	require.NotNil(t, s.EndedAt)
	assert.Equal(t, testNow, *s.EndedAt)
	assert.Zero(t, s.Duration())
}
