package voice

import (
	"time"

	"github.com/voicewarden/internal/logging"
)

// QualityGate rejects segments not worth the cost of enhancement and
// recognition: too small, too short, or too quiet. Checks short-circuit in
// that order; rejection deletes the scratch file before returning.
type QualityGate struct {
	MinBytes    int
	MinDuration time.Duration
	MinRMS      float64

	scratch *ScratchDir
}

// NewQualityGate builds a gate with the three independent thresholds.
func NewQualityGate(minBytes int, minDuration time.Duration, minRMS float64, scratch *ScratchDir) *QualityGate {
	return &QualityGate{MinBytes: minBytes, MinDuration: minDuration, MinRMS: minRMS, scratch: scratch}
}

// Accept returns whether the segment passes all thresholds. On rejection the
// segment's scratch file is removed and the failing check is named.
func (g *QualityGate) Accept(seg *AudioSegment) (bool, string) {
	reason := ""
	switch {
	case seg.ByteLength < g.MinBytes:
		reason = "below_min_bytes"
	case time.Duration(seg.DurationMs)*time.Millisecond < g.MinDuration:
		reason = "below_min_duration"
	case seg.RMSEnergy < g.MinRMS:
		reason = "below_min_rms"
	}
	if reason == "" {
		return true, ""
	}
	g.scratch.Remove(seg.Path)
	logging.Debugw("segment rejected by quality gate",
		"reason", reason,
		"bytes", seg.ByteLength,
		"duration_ms", seg.DurationMs,
		"rms", seg.RMSEnergy)
	return false, reason
}
