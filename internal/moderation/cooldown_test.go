package moderation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newClockedCooldowns(start time.Time) (*Cooldowns, *time.Time) {
	now := start
	c := NewCooldowns()
	c.now = func() time.Time { return now }
	return c, &now
}

func TestCooldownArmAndExpire(t *testing.T) {
	c, now := newClockedCooldowns(time.Unix(1000, 0))

	require.False(t, c.Active("u1"))

	c.Arm("u1", 10*time.Second)
	require.True(t, c.Active("u1"))

	*now = now.Add(9 * time.Second)
	require.True(t, c.Active("u1"))

	*now = now.Add(2 * time.Second)
	require.False(t, c.Active("u1"))
	// Lazy expiry removed the entry.
	require.Empty(t, c.Snapshot())
}

func TestCooldownRearmReplacesExpiry(t *testing.T) {
	c, now := newClockedCooldowns(time.Unix(1000, 0))

	c.Arm("u1", 5*time.Second)
	c.Arm("u1", 30*time.Second)

	*now = now.Add(10 * time.Second)
	require.True(t, c.Active("u1"))
}

func TestCooldownClear(t *testing.T) {
	c, _ := newClockedCooldowns(time.Unix(1000, 0))

	c.Arm("u1", time.Hour)
	c.Clear("u1")
	require.False(t, c.Active("u1"))
}

func TestCooldownSnapshotSkipsExpired(t *testing.T) {
	c, now := newClockedCooldowns(time.Unix(1000, 0))

	c.Arm("u1", 5*time.Second)
	c.Arm("u2", time.Hour)
	*now = now.Add(time.Minute)

	snap := c.Snapshot()
	require.Len(t, snap, 1)
	require.Contains(t, snap, "u2")
}
