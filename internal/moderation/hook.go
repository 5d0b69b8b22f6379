// Package moderation turns transcripts into enforcement decisions: term
// detection, the enforcement action, and the post-enforcement cooldown.
package moderation

import (
	"strings"
	"time"

	"github.com/voicewarden/internal/detector"
	"github.com/voicewarden/internal/logging"
)

// EventRecorder persists enforcement events for the audit log. Recording
// failures never affect the enforcement outcome.
type EventRecorder interface {
	RecordEnforcement(sessionID, speakerID string, terms []string, action string, succeeded bool) error
}

// Hook receives per-segment transcripts from the capture pipeline.
type Hook struct {
	detector  *detector.Detector
	enforcer  Enforcer
	cooldowns *Cooldowns
	cooldown  time.Duration
	action    string
	recorder  EventRecorder
}

// NewHook wires detection to enforcement. recorder may be nil when the
// audit log is disabled.
func NewHook(det *detector.Detector, enf Enforcer, cds *Cooldowns, cooldown time.Duration, action string, recorder EventRecorder) *Hook {
	return &Hook{
		detector:  det,
		enforcer:  enf,
		cooldowns: cds,
		cooldown:  cooldown,
		action:    action,
		recorder:  recorder,
	}
}

// OnTranscript classifies the text and, on a match, enforces once and arms
// the speaker's cooldown. Enforcement failure is logged and dropped: no
// retry, no cooldown, so the speaker's next utterance is captured normally.
func (h *Hook) OnTranscript(sessionID, speakerID, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	matched, terms := h.detector.Detect(text)
	if !matched {
		logging.Debugw("transcript clean", "speaker_id", speakerID, "chars", len(text))
		return
	}
	logging.Infow("prohibited terms detected", "session_id", sessionID, "speaker_id", speakerID, "terms", terms)

	ok := h.enforcer.Enforce(sessionID, speakerID, terms)
	if ok {
		h.cooldowns.Arm(speakerID, h.cooldown)
	} else {
		logging.Warnw("enforcement failed; no cooldown armed", "session_id", sessionID, "speaker_id", speakerID)
	}
	if h.recorder != nil {
		if err := h.recorder.RecordEnforcement(sessionID, speakerID, terms, h.action, ok); err != nil {
			logging.Warnw("failed to record enforcement event", "err", err)
		}
	}
}
