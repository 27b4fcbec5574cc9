package oauthflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginConsume(t *testing.T) {
	s := NewStore(time.Minute, nil)

	flow, err := s.Begin("a@b.com")
	require.NoError(t, err)
	assert.NotEmpty(t, flow.State)
	assert.NotEmpty(t, flow.Verifier)
	assert.Equal(t, "a@b.com", flow.UserEmail)
	assert.Equal(t, 1, s.Pending())

	got, err := s.Consume(flow.State)
	require.NoError(t, err)
	assert.Equal(t, flow, got)
	assert.Equal(t, 0, s.Pending())
}

func TestConsume_SingleUse(t *testing.T) {
	s := NewStore(time.Minute, nil)
	flow, err := s.Begin("")
	require.NoError(t, err)

	_, err = s.Consume(flow.State)
	require.NoError(t, err)

	_, err = s.Consume(flow.State)
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestConsume_Unknown(t *testing.T) {
	s := NewStore(time.Minute, nil)
	_, err := s.Consume("XYZ")
	assert.ErrorIs(t, err, ErrStateNotFound)
	_, err = s.Consume("")
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestConsume_Expired(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStore(time.Minute, nil)
	s.SetClock(func() time.Time { return now })

	flow, err := s.Begin("a@b.com")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = s.Consume(flow.State)
	assert.ErrorIs(t, err, ErrStateExpired)
	assert.Equal(t, 0, s.Pending())
}

func TestStatesAreUnique(t *testing.T) {
	s := NewStore(0, nil)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		flow, err := s.Begin("")
		require.NoError(t, err)
		assert.False(t, seen[flow.State])
		seen[flow.State] = true
	}
}

func TestCleanupExpired(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStore(time.Minute, nil)
	s.SetClock(func() time.Time { return now })

	_, err := s.Begin("old@b.com")
	require.NoError(t, err)
	now = now.Add(90 * time.Second)
	_, err = s.Begin("new@b.com")
	require.NoError(t, err)

	assert.Equal(t, 1, s.cleanupExpired())
	assert.Equal(t, 1, s.Pending())
}

func TestRunCleanupStopsOnCancel(t *testing.T) {
	s := NewStore(time.Minute, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunCleanup(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunCleanup did not return after cancel")
	}
}
