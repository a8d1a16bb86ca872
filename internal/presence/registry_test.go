package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_AddIsIdempotent(t *testing.T) {
	r := NewRegistry()

	r.Add("u1", "c1")
	r.Add("u1", "c1")

	assert.Equal(t, 1, r.SessionCount("u1"))
	assert.True(t, r.IsOnline("u1"))
}

func TestRegistry_MultiSession(t *testing.T) {
	r := NewRegistry()

	r.Add("u1", "c1")
	r.Add("u1", "c2")
	assert.Equal(t, 2, r.SessionCount("u1"))

	assert.False(t, r.Remove("u1", "c1"), "user still has a live session")
	assert.True(t, r.IsOnline("u1"))

	assert.True(t, r.Remove("u1", "c2"), "last session removal reports fully offline")
	assert.False(t, r.IsOnline("u1"))
	assert.Equal(t, 0, r.SessionCount("u1"))
}

func TestRegistry_RemoveUnknown(t *testing.T) {
	r := NewRegistry()

	assert.False(t, r.Remove("u1", "c1"))

	r.Add("u1", "c1")
	assert.False(t, r.Remove("u1", "other"), "removing a foreign conn id never signals offline")
	assert.True(t, r.IsOnline("u1"))
}

func TestRegistry_Stats(t *testing.T) {
	r := NewRegistry()
	r.Add("u1", "c1")
	r.Add("u1", "c2")
	r.Add("u2", "c3")

	stats := r.Stats()
	assert.Equal(t, 2, stats["online_users"])
	assert.Equal(t, 3, stats["total_sessions"])

	assert.ElementsMatch(t, []string{"u1", "u2"}, r.OnlineUsers())
}
