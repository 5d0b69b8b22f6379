package voice

import (
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// NameResolver maps platform user IDs to display names for log lines.
type NameResolver interface {
	UserName(userID string) string
}

// NoopResolver returns empty names; used when no session is available.
type NoopResolver struct{}

func (NoopResolver) UserName(string) string { return "" }

type cacheEntry struct {
	val    string
	expiry time.Time
}

// cacheTTL controls how long a cached name is valid.
var cacheTTL = 5 * time.Minute

// DiscordResolver resolves display names through the session with a small
// TTL cache in front of the REST lookup.
type DiscordResolver struct {
	s  *discordgo.Session
	mu sync.Mutex

	userCache map[string]cacheEntry
}

func NewDiscordResolver(s *discordgo.Session) *DiscordResolver {
	return &DiscordResolver{s: s, userCache: make(map[string]cacheEntry)}
}

func (d *DiscordResolver) UserName(userID string) string {
	if d.s == nil || userID == "" {
		return ""
	}
	d.mu.Lock()
	if e, ok := d.userCache[userID]; ok {
		if time.Now().Before(e.expiry) {
			d.mu.Unlock()
			return e.val
		}
		delete(d.userCache, userID)
	}
	d.mu.Unlock()
	if u, err := d.s.User(userID); err == nil && u != nil {
		d.mu.Lock()
		d.userCache[userID] = cacheEntry{val: u.Username, expiry: time.Now().Add(cacheTTL)}
		d.mu.Unlock()
		return u.Username
	}
	return ""
}
