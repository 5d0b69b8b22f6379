package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hraban/opus"
	"github.com/voicewarden/internal/logging"
)

// ErrNoAudio is returned when a capture window closes without a single
// decodable frame.
var ErrNoAudio = errors.New("no audio captured")

// benignStreamErrors are transport failures that happen in normal operation
// (speakers dropping, truncated frames on disconnect). They are suppressed
// to debug level; anything else is logged once at warn.
var benignStreamErrors = []string{
	"use of closed network connection",
	"corrupted stream",
	"corrupted frame",
	"premature",
	"EOF",
	"no such file",
	"file does not exist",
}

func isBenignStreamError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pat := range benignStreamErrors {
		if strings.Contains(msg, pat) {
			return true
		}
	}
	return false
}

// Capturer accumulates one speaker's transport-encoded audio until a
// trailing-silence boundary, decodes it to linear PCM, and persists it to a
// scratch WAV file.
type Capturer struct {
	sampleRate    int
	channels      int
	silenceWindow time.Duration
	maxUtterance  time.Duration
	silenceRMS    float64
	scratch       *ScratchDir
}

// NewCapturer builds a capturer for the transport's PCM layout. The silence
// window bounds responsiveness against full-utterance capture; 0.8-2.0s is
// the useful range.
func NewCapturer(sampleRate, channels int, silenceWindow, maxUtterance time.Duration, silenceRMS int, scratch *ScratchDir) *Capturer {
	return &Capturer{
		sampleRate:    sampleRate,
		channels:      channels,
		silenceWindow: silenceWindow,
		maxUtterance:  maxUtterance,
		silenceRMS:    float64(silenceRMS),
		scratch:       scratch,
	}
}

// Capture drains the stream until the trailing-silence window elapses, the
// stream ends, the utterance cap is hit, or ctx is cancelled. It returns the
// segment metadata with the PCM written to scratch storage.
func (c *Capturer) Capture(ctx context.Context, task *CaptureTask, stream AudioStream) (*AudioSegment, error) {
	dec, err := opus.NewDecoder(c.sampleRate, c.channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	// 120ms is the largest opus frame duration.
	frameBuf := make([]int16, c.sampleRate/1000*120*c.channels)
	var samples []int16
	started := time.Now()
	lastVoice := started
	decodeErrs := 0

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-stream.Done():
			break loop
		case frame := <-stream.Frames():
			n, err := dec.Decode(frame.Data, frameBuf)
			if err != nil {
				decodeErrs++
				if isBenignStreamError(err) {
					logging.Debugw("opus decode error suppressed", "task_id", task.ID, "err", err)
				} else if decodeErrs == 1 {
					logging.Warnw("opus decode error", "task_id", task.ID, "speaker_id", task.SpeakerID, "err", err)
				}
				continue
			}
			decoded := frameBuf[:n*c.channels]
			samples = append(samples, decoded...)
			if rmsOf(decoded) > c.silenceRMS {
				lastVoice = time.Now()
			}
		case now := <-ticker.C:
			if len(samples) > 0 && now.Sub(lastVoice) >= c.silenceWindow {
				break loop
			}
			if now.Sub(started) >= c.maxUtterance {
				break loop
			}
		}
	}

	if len(samples) == 0 {
		return nil, ErrNoAudio
	}

	pcm := pcmToBytes(samples)
	path := c.scratch.Path(task.SpeakerID)
	if err := c.scratch.Save(path, buildWAV(pcm, c.sampleRate, c.channels, 16)); err != nil {
		return nil, fmt.Errorf("failed to persist segment: %w", err)
	}

	seg := &AudioSegment{
		Path:       path,
		SampleRate: c.sampleRate,
		Channels:   c.channels,
		ByteLength: len(pcm),
		DurationMs: len(samples) * 1000 / (c.sampleRate * c.channels),
		RMSEnergy:  rmsOf(samples),
	}
	logging.Debugw("segment captured",
		"task_id", task.ID,
		"speaker_id", task.SpeakerID,
		"bytes", seg.ByteLength,
		"duration_ms", seg.DurationMs,
		"rms", seg.RMSEnergy,
		"decode_errors", decodeErrs,
		"elapsed_ms", time.Since(started).Milliseconds())
	return seg, nil
}
