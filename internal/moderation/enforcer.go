package moderation

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/voicewarden/internal/logging"
)

// Enforcer applies the platform's moderation action to a speaker. Failure
// is non-retryable: enforcement is best effort, once.
type Enforcer interface {
	Enforce(sessionID, speakerID string, terms []string) bool
}

// DiscordEnforcer disconnects the member from voice by moving them to no
// channel. This is the temporary-removal policy: the member can rejoin, and
// the cooldown keeps an immediate rejoin from re-triggering capture.
type DiscordEnforcer struct {
	s               *discordgo.Session
	announceChannel string
}

// NewDiscordEnforcer builds the voice-disconnect enforcer. announceChannel
// is an optional text channel for enforcement notices.
func NewDiscordEnforcer(s *discordgo.Session, announceChannel string) *DiscordEnforcer {
	return &DiscordEnforcer{s: s, announceChannel: announceChannel}
}

func (e *DiscordEnforcer) Enforce(sessionID, speakerID string, terms []string) bool {
	if err := e.s.GuildMemberMove(sessionID, speakerID, nil); err != nil {
		logging.Warnw("voice disconnect failed", "guild_id", sessionID, "user_id", speakerID, "err", err)
		return false
	}
	logging.Infow("speaker disconnected from voice", "guild_id", sessionID, "user_id", speakerID, "terms", terms)
	if e.announceChannel != "" {
		msg := fmt.Sprintf("<@%s> was removed from voice for prohibited language (%s).", speakerID, strings.Join(terms, ", "))
		if _, err := e.s.ChannelMessageSend(e.announceChannel, msg); err != nil {
			logging.Debugw("enforcement notice failed", "channel_id", e.announceChannel, "err", err)
		}
	}
	return true
}

// LogEnforcer records the violation without touching the platform. Used
// with moderation.action = "log" for dry runs.
type LogEnforcer struct{}

func (LogEnforcer) Enforce(sessionID, speakerID string, terms []string) bool {
	logging.Infow("moderation match (log-only mode)", "session_id", sessionID, "speaker_id", speakerID, "terms", terms)
	return true
}
