package voice

import (
	"strings"
	"sync/atomic"
	"time"
)

// TaskState tracks a capture task through its pipeline stages.
type TaskState int32

const (
	StateCapturing TaskState = iota
	StateGating
	StateEnhancing
	StateRecognizing
	StateDone
	StateFailed
	StateTimedOut
)

func (s TaskState) String() string {
	switch s {
	case StateCapturing:
		return "capturing"
	case StateGating:
		return "gating"
	case StateEnhancing:
		return "enhancing"
	case StateRecognizing:
		return "recognizing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends a task's lifetime.
func (s TaskState) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateTimedOut
}

// CaptureTask is the scheduler's accounting record for one in-flight
// utterance. The generation token distinguishes a live task from a stale
// one whose slot was already reclaimed by timeout.
type CaptureTask struct {
	ID        string
	SessionID string
	SpeakerID string
	StartTime time.Time
	Gen       uint64

	state atomic.Int32
	timer *time.Timer
}

// State returns the last recorded pipeline state. The timeout timer and the
// pipeline goroutine both update it, so access goes through an atomic.
func (t *CaptureTask) State() TaskState { return TaskState(t.state.Load()) }

func (t *CaptureTask) setState(s TaskState) { t.state.Store(int32(s)) }

// AudioSegment describes one captured utterance persisted to scratch
// storage. Metrics are computed once and immutable afterwards.
type AudioSegment struct {
	Path       string
	SampleRate int
	Channels   int
	ByteLength int
	DurationMs int
	RMSEnergy  float64
}

// TranscriptionResult is the recognizer output for one segment.
type TranscriptionResult struct {
	SpeakerID string
	Text      string
}

// IsEmpty reports whether the transcript carries no usable text.
func (r TranscriptionResult) IsEmpty() bool {
	return strings.TrimSpace(r.Text) == ""
}

// OpusFrame is one transport-encoded audio frame from the voice session.
type OpusFrame struct {
	Data []byte
}
