package voice

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestScratch(t *testing.T) *ScratchDir {
	t.Helper()
	s, err := NewScratchDir(t.TempDir())
	require.NoError(t, err)
	return s
}

func writeTestSegment(t *testing.T, scratch *ScratchDir, speaker string, bytes, durationMs int, rms float64) *AudioSegment {
	t.Helper()
	path := scratch.Path(speaker)
	require.NoError(t, scratch.Save(path, make([]byte, bytes+44)))
	return &AudioSegment{
		Path:       path,
		SampleRate: 48000,
		Channels:   2,
		ByteLength: bytes,
		DurationMs: durationMs,
		RMSEnergy:  rms,
	}
}

func TestGateRejectsBelowMinBytes(t *testing.T) {
	scratch := newTestScratch(t)
	gate := NewQualityGate(1000, 100*time.Millisecond, 50, scratch)

	seg := writeTestSegment(t, scratch, "u1", 500, 2000, 900)
	ok, reason := gate.Accept(seg)
	require.False(t, ok)
	require.Equal(t, "below_min_bytes", reason)
	_, err := os.Stat(seg.Path)
	require.True(t, os.IsNotExist(err), "scratch file must be removed on rejection")
}

func TestGateRejectsBelowMinDurationEvenIfBytesPass(t *testing.T) {
	scratch := newTestScratch(t)
	gate := NewQualityGate(1000, 500*time.Millisecond, 50, scratch)

	seg := writeTestSegment(t, scratch, "u1", 4000, 100, 900)
	ok, reason := gate.Accept(seg)
	require.False(t, ok)
	require.Equal(t, "below_min_duration", reason)
	_, err := os.Stat(seg.Path)
	require.True(t, os.IsNotExist(err))
}

func TestGateRejectsBelowMinRMSEvenIfSizeAndDurationPass(t *testing.T) {
	scratch := newTestScratch(t)
	gate := NewQualityGate(1000, 100*time.Millisecond, 250, scratch)

	seg := writeTestSegment(t, scratch, "u1", 4000, 2000, 10)
	ok, reason := gate.Accept(seg)
	require.False(t, ok)
	require.Equal(t, "below_min_rms", reason)
	_, err := os.Stat(seg.Path)
	require.True(t, os.IsNotExist(err))
}

func TestGateAcceptsGoodSegment(t *testing.T) {
	scratch := newTestScratch(t)
	gate := NewQualityGate(1000, 100*time.Millisecond, 250, scratch)

	seg := writeTestSegment(t, scratch, "u1", 4000, 2000, 900)
	ok, reason := gate.Accept(seg)
	require.True(t, ok)
	require.Empty(t, reason)
	_, err := os.Stat(seg.Path)
	require.NoError(t, err, "accepted segment keeps its scratch file")
}

func TestScratchPathsUniquePerSpeaker(t *testing.T) {
	scratch := newTestScratch(t)
	a := scratch.Path("alice")
	b := scratch.Path("alice")
	require.NotEqual(t, a, b)
	require.Equal(t, ".wav", filepath.Ext(a))
}
