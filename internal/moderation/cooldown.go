package moderation

import (
	"sync"
	"time"
)

// Cooldowns tracks per-speaker suppression windows armed after an
// enforcement action. A speaker with an active entry is never re-admitted
// into the capture scheduler until the entry expires or is cleared.
type Cooldowns struct {
	mu  sync.Mutex
	m   map[string]time.Time
	now func() time.Time
}

// NewCooldowns builds an empty cooldown table.
func NewCooldowns() *Cooldowns {
	return &Cooldowns{m: make(map[string]time.Time), now: time.Now}
}

// Arm suppresses the speaker for d from now, replacing any earlier entry.
func (c *Cooldowns) Arm(speakerID string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[speakerID] = c.now().Add(d)
}

// Active reports whether the speaker is currently suppressed. Expired
// entries are removed on consultation.
func (c *Cooldowns) Active(speakerID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	expiry, ok := c.m[speakerID]
	if !ok {
		return false
	}
	if c.now().After(expiry) {
		delete(c.m, speakerID)
		return false
	}
	return true
}

// Clear removes the speaker's entry, e.g. when they leave the session.
func (c *Cooldowns) Clear(speakerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, speakerID)
}

// Snapshot returns the speakers currently under cooldown with expiries.
func (c *Cooldowns) Snapshot() map[string]time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]time.Time, len(c.m))
	now := c.now()
	for id, exp := range c.m {
		if now.After(exp) {
			delete(c.m, id)
			continue
		}
		out[id] = exp
	}
	return out
}
