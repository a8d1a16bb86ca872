package ratelimit

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newTestLimiter(window time.Duration, limit int) (*Limiter, *time.Time) {
	l := New(window, limit, time.Minute, zerolog.Nop())
	now := time.Now()
	l.now = func() time.Time { return now }
	return l, &now
}

func TestAllow_CapWithinWindow(t *testing.T) {
	l, _ := newTestLimiter(time.Minute, 30)

	for i := 0; i < 30; i++ {
		assert.True(t, l.Allow("u1"), "send %d should be allowed", i+1)
	}
	assert.False(t, l.Allow("u1"), "31st send within the window must be rejected")
	assert.False(t, l.Allow("u1"), "rejections repeat while the window is full")
}

func TestAllow_WindowSlides(t *testing.T) {
	l, now := newTestLimiter(time.Minute, 30)

	for i := 0; i < 30; i++ {
		assert.True(t, l.Allow("u1"))
	}
	assert.False(t, l.Allow("u1"))

	*now = now.Add(61 * time.Second)
	assert.True(t, l.Allow("u1"), "sends succeed again after the window elapses")
}

func TestAllow_RejectionRecordsNothing(t *testing.T) {
	l, now := newTestLimiter(time.Minute, 2)

	assert.True(t, l.Allow("u1"))
	assert.True(t, l.Allow("u1"))
	for i := 0; i < 10; i++ {
		assert.False(t, l.Allow("u1"))
	}

	// Only the two accepted timestamps age out; the rejected attempts did
	// not extend the window.
	*now = now.Add(61 * time.Second)
	assert.True(t, l.Allow("u1"))
}

func TestAllow_UsersAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(time.Minute, 1)

	assert.True(t, l.Allow("u1"))
	assert.False(t, l.Allow("u1"))
	assert.True(t, l.Allow("u2"), "one user's window must not affect another's")
}

func TestSweep_DropsIdleEntries(t *testing.T) {
	l, now := newTestLimiter(time.Minute, 30)

	l.Allow("u1")
	l.Allow("u2")
	assert.Equal(t, 2, l.TrackedUsers())

	*now = now.Add(2 * time.Minute)
	l.Allow("u2")
	l.sweep()

	assert.Equal(t, 1, l.TrackedUsers(), "users with only stale timestamps are dropped")
	assert.True(t, l.Allow("u1"), "a swept user starts a fresh window")
}

func TestStartStop(t *testing.T) {
	l := New(time.Minute, 30, 10*time.Millisecond, zerolog.Nop())
	l.Start()
	l.Stop()
	l.Stop() // second stop is a no-op
}
