package voice

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// countingBackend instruments call entry/exit with a reentrancy counter.
type countingBackend struct {
	current atomic.Int32
	maxSeen atomic.Int32
	calls   atomic.Int32
	delay   time.Duration
	text    string
	err     error
}

func (b *countingBackend) Transcribe(ctx context.Context, wavPath string) (string, error) {
	cur := b.current.Add(1)
	defer b.current.Add(-1)
	for {
		max := b.maxSeen.Load()
		if cur <= max || b.maxSeen.CompareAndSwap(max, cur) {
			break
		}
	}
	b.calls.Add(1)
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	return b.text, b.err
}

func makeSegFile(t *testing.T, scratch *ScratchDir) string {
	t.Helper()
	path := scratch.Path("speaker")
	require.NoError(t, scratch.Save(path, []byte("fake wav")))
	return path
}

func TestRecognitionNeverRunsConcurrently(t *testing.T) {
	scratch := newTestScratch(t)
	backend := &countingBackend{delay: 15 * time.Millisecond, text: "hello"}
	q := NewRecognitionQueue(backend, 16, time.Second, scratch)
	q.Start()
	defer q.Close()

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		path := makeSegFile(t, scratch)
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := q.Transcribe(context.Background(), path)
			require.Equal(t, "hello", got)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(n), backend.calls.Load())
	require.Equal(t, int32(1), backend.maxSeen.Load(), "recognition calls must be serialized")
}

func TestRecognitionErrorYieldsEmptyTextAndDeletesScratch(t *testing.T) {
	scratch := newTestScratch(t)
	backend := &countingBackend{err: errors.New("model exploded")}
	q := NewRecognitionQueue(backend, 4, time.Second, scratch)
	q.Start()
	defer q.Close()

	path := makeSegFile(t, scratch)
	got := q.Transcribe(context.Background(), path)
	require.Empty(t, got)
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err), "enhanced scratch must be deleted after recognition")
}

type panicBackend struct{}

func (panicBackend) Transcribe(context.Context, string) (string, error) {
	panic("native crash")
}

func TestRecognitionPanicDoesNotEscape(t *testing.T) {
	scratch := newTestScratch(t)
	q := NewRecognitionQueue(panicBackend{}, 4, time.Second, scratch)
	q.Start()
	defer q.Close()

	path := makeSegFile(t, scratch)
	got := q.Transcribe(context.Background(), path)
	require.Empty(t, got)
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestRecognitionCloseCleansQueuedSegments(t *testing.T) {
	scratch := newTestScratch(t)
	q := NewRecognitionQueue(&countingBackend{text: "late"}, 4, time.Second, scratch)
	// Not started: enqueued segments sit in the backlog until Close.

	path := makeSegFile(t, scratch)
	got := make(chan string, 1)
	go func() { got <- q.Transcribe(context.Background(), path) }()
	require.Eventually(t, func() bool { return len(q.requests) == 1 }, time.Second, 5*time.Millisecond)

	q.Close()
	require.Empty(t, <-got)
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err), "queued segments must be cleaned up on shutdown")
}

func TestRecognitionQueueOverflowDropsSegment(t *testing.T) {
	scratch := newTestScratch(t)
	backend := &countingBackend{delay: 200 * time.Millisecond, text: "slow"}
	q := NewRecognitionQueue(backend, 1, time.Second, scratch)
	q.Start()
	defer q.Close()

	// Occupy the worker, then fill the single queue slot.
	busy := makeSegFile(t, scratch)
	go q.Transcribe(context.Background(), busy)
	time.Sleep(20 * time.Millisecond)
	queued := makeSegFile(t, scratch)
	go q.Transcribe(context.Background(), queued)
	time.Sleep(20 * time.Millisecond)

	overflow := makeSegFile(t, scratch)
	got := q.Transcribe(context.Background(), overflow)
	require.Empty(t, got)
	_, err := os.Stat(overflow)
	require.True(t, os.IsNotExist(err), "overflow segment must be cleaned up immediately")
}
