package voice

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/voicewarden/internal/logging"
)

// TranscriptSink receives the finished transcript for one segment.
type TranscriptSink interface {
	OnTranscript(sessionID, speakerID, text string)
}

// CooldownStore is the post-enforcement suppression state consulted on
// every admission.
type CooldownStore interface {
	Active(speakerID string) bool
	Clear(speakerID string)
}

// SchedulerStats is a point-in-time accounting snapshot.
type SchedulerStats struct {
	InFlight  int   `json:"in_flight"`
	Admitted  int64 `json:"admitted"`
	Rejected  int64 `json:"rejected"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	TimedOut  int64 `json:"timed_out"`
}

// Scheduler owns the concurrency bound across the capture pipeline,
// per-speaker de-duplication, and stuck-task cleanup via timeout. All
// registry mutation happens here; stage code never touches it.
type Scheduler struct {
	source    AudioSource
	capturer  *Capturer
	gate      *QualityGate
	enhancer  Enhancer
	queue     *RecognitionQueue
	sink      TranscriptSink
	cooldowns CooldownStore
	scratch   *ScratchDir

	maxConcurrent int
	taskTimeout   time.Duration
	names         NameResolver

	mu       sync.Mutex
	inflight map[string]*CaptureTask
	nextGen  uint64

	admitted  atomic.Int64
	rejected  atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	timedOut  atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler wires the pipeline stages together under one concurrency
// ceiling and per-task lifetime bound.
func NewScheduler(
	source AudioSource,
	capturer *Capturer,
	gate *QualityGate,
	enhancer Enhancer,
	queue *RecognitionQueue,
	sink TranscriptSink,
	cooldowns CooldownStore,
	scratch *ScratchDir,
	maxConcurrent int,
	taskTimeout time.Duration,
) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		source:        source,
		capturer:      capturer,
		gate:          gate,
		enhancer:      enhancer,
		queue:         queue,
		sink:          sink,
		cooldowns:     cooldowns,
		scratch:       scratch,
		maxConcurrent: maxConcurrent,
		taskTimeout:   taskTimeout,
		names:         NoopResolver{},
		inflight:      make(map[string]*CaptureTask),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Admit decides whether a speaker-start event becomes a capture task.
// Rejection reasons: in-flight duplicate, active cooldown, ceiling reached.
func (s *Scheduler) Admit(sessionID, speakerID string) bool {
	if sessionID == "" || speakerID == "" {
		return false
	}
	if s.cooldowns != nil && s.cooldowns.Active(speakerID) {
		s.rejected.Add(1)
		logging.Debugw("admission rejected: speaker in cooldown", "speaker_id", speakerID)
		return false
	}

	key := subKey(sessionID, speakerID)
	s.mu.Lock()
	if _, ok := s.inflight[key]; ok {
		s.mu.Unlock()
		s.rejected.Add(1)
		logging.Debugw("admission rejected: task already in flight", "speaker_id", speakerID)
		return false
	}
	if len(s.inflight) >= s.maxConcurrent {
		s.mu.Unlock()
		s.rejected.Add(1)
		logging.Warnw("admission rejected: concurrency ceiling reached", "speaker_id", speakerID, "ceiling", s.maxConcurrent)
		return false
	}
	s.nextGen++
	task := &CaptureTask{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		SpeakerID: speakerID,
		StartTime: time.Now(),
		Gen:       s.nextGen,
	}
	task.setState(StateCapturing)
	task.timer = time.AfterFunc(s.taskTimeout, func() { s.expire(key, task.Gen) })
	s.inflight[key] = task
	s.mu.Unlock()

	s.admitted.Add(1)
	logging.Debugw("capture task admitted", "task_id", task.ID, "speaker_id", speakerID, "speaker_name", s.names.UserName(speakerID))
	s.wg.Add(1)
	go s.run(task)
	return true
}

// SetNameResolver installs a display-name lookup used in log lines.
func (s *Scheduler) SetNameResolver(r NameResolver) {
	if r != nil {
		s.names = r
	}
}

// SpeakerStarted implements SpeakerEvents.
func (s *Scheduler) SpeakerStarted(sessionID, speakerID string) {
	s.Admit(sessionID, speakerID)
}

// SpeakerLeft implements SpeakerEvents. A departed speaker's cooldown is
// cleared so state doesn't accumulate for users who never return.
func (s *Scheduler) SpeakerLeft(_, speakerID string) {
	if s.cooldowns != nil {
		s.cooldowns.Clear(speakerID)
	}
}

// run executes Capture -> Gate -> Enhance -> Recognize -> Detect for one
// task. Every exit path funnels through finish; scratch files are deleted by
// the stage that owns them.
func (s *Scheduler) run(task *CaptureTask) {
	defer s.wg.Done()
	state := StateFailed
	defer func() { s.finish(task, state) }()

	stream, err := s.source.Subscribe(task.SessionID, task.SpeakerID)
	if err != nil {
		logging.Warnw("subscribe failed", "task_id", task.ID, "speaker_id", task.SpeakerID, "err", err)
		return
	}

	seg, err := s.capturer.Capture(s.ctx, task, stream)
	_ = stream.Close()
	if err != nil {
		if errors.Is(err, ErrNoAudio) || errors.Is(err, context.Canceled) || isBenignStreamError(err) {
			logging.Debugw("capture ended without segment", "task_id", task.ID, "err", err)
		} else {
			logging.Warnw("capture failed", "task_id", task.ID, "speaker_id", task.SpeakerID, "err", err)
		}
		return
	}

	task.setState(StateGating)
	if ok, _ := s.gate.Accept(seg); !ok {
		// Quality rejection ends the task cleanly, without output.
		state = StateDone
		return
	}

	task.setState(StateEnhancing)
	enhanced, err := s.enhancer.Enhance(s.ctx, seg.Path)
	s.scratch.Remove(seg.Path)
	if err != nil {
		logging.Warnw("enhancement failed", "task_id", task.ID, "speaker_id", task.SpeakerID, "err", err)
		return
	}

	task.setState(StateRecognizing)
	result := TranscriptionResult{
		SpeakerID: task.SpeakerID,
		Text:      s.queue.Transcribe(s.ctx, enhanced),
	}
	state = StateDone
	if result.IsEmpty() {
		return
	}
	if !s.alive(task) {
		// Slot already reclaimed by timeout; the late result must not act.
		logging.Debugw("discarding transcript for reclaimed task", "task_id", task.ID)
		return
	}
	s.sink.OnTranscript(task.SessionID, task.SpeakerID, result.Text)
}

// alive reports whether the task still owns its registry slot.
func (s *Scheduler) alive(task *CaptureTask) bool {
	key := subKey(task.SessionID, task.SpeakerID)
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.inflight[key]
	return ok && cur.Gen == task.Gen
}

// finish is the single cleanup point for every terminal transition.
func (s *Scheduler) finish(task *CaptureTask, state TaskState) {
	task.timer.Stop()
	key := subKey(task.SessionID, task.SpeakerID)
	s.mu.Lock()
	if cur, ok := s.inflight[key]; ok && cur.Gen == task.Gen {
		delete(s.inflight, key)
	}
	s.mu.Unlock()
	task.setState(state)
	switch state {
	case StateDone:
		s.completed.Add(1)
	default:
		s.failed.Add(1)
	}
	logging.Debugw("capture task finished", "task_id", task.ID, "speaker_id", task.SpeakerID, "state", state.String(), "elapsed_ms", time.Since(task.StartTime).Milliseconds())
}

// expire frees the accounting slot when a task overruns its lifetime. The
// underlying stage is not preemptible; its late completion becomes a no-op
// via the generation check.
func (s *Scheduler) expire(key string, gen uint64) {
	s.mu.Lock()
	cur, ok := s.inflight[key]
	if !ok || cur.Gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.inflight, key)
	stage := cur.State().String()
	cur.setState(StateTimedOut)
	s.mu.Unlock()
	s.timedOut.Add(1)
	logging.Warnw("capture task timed out; slot reclaimed", "task_id", cur.ID, "speaker_id", cur.SpeakerID, "stage", stage)
}

// InFlight returns the number of live tasks.
func (s *Scheduler) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

// Stats snapshots the scheduler counters.
func (s *Scheduler) Stats() SchedulerStats {
	return SchedulerStats{
		InFlight:  s.InFlight(),
		Admitted:  s.admitted.Load(),
		Rejected:  s.rejected.Load(),
		Completed: s.completed.Load(),
		Failed:    s.failed.Load(),
		TimedOut:  s.timedOut.Load(),
	}
}

// Close cancels in-flight work and waits for pipelines to drain.
func (s *Scheduler) Close() error {
	s.cancel()
	s.wg.Wait()
	return nil
}
