package voice

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
)

func TestNoopResolver(t *testing.T) {
	require.Empty(t, NoopResolver{}.UserName("u1"))
}

func TestDiscordResolverNilSession(t *testing.T) {
	r := NewDiscordResolver(nil)
	require.Empty(t, r.UserName("u1"))
}

func TestDiscordResolverCacheHit(t *testing.T) {
	r := NewDiscordResolver(&discordgo.Session{})
	r.userCache["u1"] = cacheEntry{val: "alice", expiry: time.Now().Add(time.Minute)}
	require.Equal(t, "alice", r.UserName("u1"))
	require.Empty(t, r.UserName(""))
}
