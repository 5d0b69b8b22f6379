package voice

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFFmpegArgsRenderFilterChain(t *testing.T) {
	e := NewFFmpegEnhancer("ffmpeg", time.Second, 16000, 1, []FilterStage{
		{Name: "highpass", Args: "f=200"},
		{Name: "loudnorm", Args: "I=-16:TP=-1.5:LRA=11"},
		{Name: "anull"},
	})
	args := e.args("/tmp/in.wav", "/tmp/in_enh.wav")
	joined := strings.Join(args, " ")

	require.Contains(t, joined, "-i /tmp/in.wav")
	require.Contains(t, joined, "-af highpass=f=200,loudnorm=I=-16:TP=-1.5:LRA=11,anull")
	require.Contains(t, joined, "-ar 16000")
	require.Contains(t, joined, "-ac 1")
	require.Contains(t, joined, "-sample_fmt s16")
	require.Equal(t, "/tmp/in_enh.wav", args[len(args)-1])
}

func TestFFmpegArgsOmitFilterFlagForEmptyChain(t *testing.T) {
	e := &FFmpegEnhancer{Path: "ffmpeg", Timeout: time.Second, SampleRate: 16000, Channels: 1}
	args := e.args("in.wav", "out.wav")
	require.NotContains(t, args, "-af")
}

func TestDefaultFilterChainOrder(t *testing.T) {
	chain := DefaultFilterChain()
	names := make([]string, len(chain))
	for i, f := range chain {
		names[i] = f.Name
	}
	// Bandpass first, loudness normalization last.
	require.Equal(t, "highpass", names[0])
	require.Equal(t, "loudnorm", names[len(names)-1])
}

func TestFFmpegSpawnFailureIsAnError(t *testing.T) {
	scratch := newTestScratch(t)
	raw := scratch.Path("u1")
	require.NoError(t, scratch.Save(raw, buildWAV(make([]byte, 960), 48000, 1, 16)))

	e := NewFFmpegEnhancer("/nonexistent/ffmpeg-binary", time.Second, 16000, 1, nil)
	_, err := e.Enhance(context.Background(), raw)
	require.Error(t, err)
}

func TestNoopEnhancerCopiesSegment(t *testing.T) {
	scratch := newTestScratch(t)
	raw := scratch.Path("u1")
	wav := buildWAV(pcmToBytes([]int16{1, 2, 3, 4}), 48000, 1, 16)
	require.NoError(t, scratch.Save(raw, wav))

	out, err := NoopEnhancer{}.Enhance(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, enhancedPath(raw), out)
	require.True(t, strings.HasSuffix(out, "_enh.wav"))

	pcm, rate, channels, err := readWAV(out)
	require.NoError(t, err)
	require.Equal(t, 48000, rate)
	require.Equal(t, 1, channels)
	require.Equal(t, pcmToBytes([]int16{1, 2, 3, 4}), pcm)
}
