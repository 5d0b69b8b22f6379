package voice

import (
	"context"
	"sync"
	"time"

	"github.com/voicewarden/internal/logging"
)

// Backend transcribes one finalized, enhanced segment. The loaded model
// behind a backend holds mutable state and is not reentrant; callers must
// go through RecognitionQueue.
type Backend interface {
	Transcribe(ctx context.Context, wavPath string) (string, error)
}

type recogRequest struct {
	path  string
	reply chan string
}

// RecognitionQueue serializes all backend calls onto one worker draining a
// FIFO queue, so the mutual-exclusion invariant is structural rather than a
// lock around call sites. It is the pipeline's sole global lock.
type RecognitionQueue struct {
	backend  Backend
	timeout  time.Duration
	requests chan recogRequest
	scratch  *ScratchDir

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewRecognitionQueue builds a queue with a bounded backlog. A full backlog
// rejects new segments instead of blocking their pipelines.
func NewRecognitionQueue(backend Backend, capacity int, timeout time.Duration, scratch *ScratchDir) *RecognitionQueue {
	return &RecognitionQueue{
		backend:  backend,
		timeout:  timeout,
		requests: make(chan recogRequest, capacity),
		scratch:  scratch,
		done:     make(chan struct{}),
	}
}

// Start launches the single worker loop.
func (q *RecognitionQueue) Start() {
	q.startOnce.Do(func() {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for {
				select {
				case <-q.done:
					return
				case req := <-q.requests:
					req.reply <- q.process(req.path)
				}
			}
		}()
	})
}

// Close stops the worker after the in-flight call finishes, then drains the
// backlog so queued segments don't leave scratch files behind.
func (q *RecognitionQueue) Close() {
	q.stopOnce.Do(func() { close(q.done) })
	q.wg.Wait()
	for {
		select {
		case req := <-q.requests:
			q.scratch.Remove(req.path)
			req.reply <- ""
		default:
			return
		}
	}
}

// Transcribe enqueues the segment and waits for its turn on the worker.
// Backend failures, queue overflow, and shutdown all come back as empty
// text; the enhanced scratch file is deleted on every path.
func (q *RecognitionQueue) Transcribe(ctx context.Context, wavPath string) string {
	req := recogRequest{path: wavPath, reply: make(chan string, 1)}
	select {
	case q.requests <- req:
	default:
		logging.Warnw("recognition queue full; dropping segment", "path", wavPath)
		q.scratch.Remove(wavPath)
		return ""
	}
	select {
	case <-ctx.Done():
		// The worker still owns the request and will clean up the file.
		return ""
	case <-q.done:
		return ""
	case text := <-req.reply:
		return text
	}
}

// process runs exactly one backend call. Errors and panics never escape:
// recognition failure is a per-segment condition, not a session-fatal one.
func (q *RecognitionQueue) process(wavPath string) (text string) {
	defer q.scratch.Remove(wavPath)
	defer func() {
		if r := recover(); r != nil {
			logging.Errorw("recognition backend panic", "path", wavPath, "panic", r)
			text = ""
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	start := time.Now()
	out, err := q.backend.Transcribe(ctx, wavPath)
	if err != nil {
		logging.Warnw("recognition failed", "path", wavPath, "err", err)
		return ""
	}
	logging.Debugw("recognition complete", "path", wavPath, "chars", len(out), "elapsed_ms", time.Since(start).Milliseconds())
	return out
}
