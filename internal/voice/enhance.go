package voice

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/voicewarden/internal/logging"
)

// Enhancer prepares a raw segment for recognition: speech-band filtering,
// noise reduction, dynamics, and the final resample to the recognizer's
// required rate and channel layout. Implementations may run concurrently
// across tasks.
type Enhancer interface {
	Enhance(ctx context.Context, rawPath string) (string, error)
}

// FilterStage is one named audio filter with its parameter string. The
// chain is data: ordering and parameters are a tuning surface.
type FilterStage struct {
	Name string
	Args string
}

func (f FilterStage) render() string {
	if f.Args == "" {
		return f.Name
	}
	return f.Name + "=" + f.Args
}

// DefaultFilterChain is the speech cleanup pipeline applied before
// recognition: bandpass to the speech band, spectral denoise, presence EQ,
// compression, and loudness normalization.
func DefaultFilterChain() []FilterStage {
	return []FilterStage{
		{Name: "highpass", Args: "f=200"},
		{Name: "lowpass", Args: "f=3800"},
		{Name: "afftdn", Args: "nf=-25"},
		{Name: "equalizer", Args: "f=2500:t=q:w=1:g=3"},
		{Name: "acompressor", Args: "threshold=-18dB:ratio=3:attack=5:release=80"},
		{Name: "loudnorm", Args: "I=-16:TP=-1.5:LRA=11"},
	}
}

// FFmpegEnhancer runs the filter chain in an ffmpeg subprocess.
type FFmpegEnhancer struct {
	Path       string
	Timeout    time.Duration
	SampleRate int
	Channels   int
	Chain      []FilterStage
}

// NewFFmpegEnhancer builds an enhancer targeting the recognizer's input
// format (commonly 16 kHz mono s16).
func NewFFmpegEnhancer(path string, timeout time.Duration, sampleRate, channels int, chain []FilterStage) *FFmpegEnhancer {
	if len(chain) == 0 {
		chain = DefaultFilterChain()
	}
	return &FFmpegEnhancer{Path: path, Timeout: timeout, SampleRate: sampleRate, Channels: channels, Chain: chain}
}

func (e *FFmpegEnhancer) args(rawPath, outPath string) []string {
	filters := make([]string, 0, len(e.Chain))
	for _, f := range e.Chain {
		filters = append(filters, f.render())
	}
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", rawPath,
	}
	if len(filters) > 0 {
		args = append(args, "-af", strings.Join(filters, ","))
	}
	args = append(args,
		"-ar", strconv.Itoa(e.SampleRate),
		"-ac", strconv.Itoa(e.Channels),
		"-sample_fmt", "s16",
		outPath,
	)
	return args
}

// Enhance writes the processed segment next to the raw one and returns its
// path. Spawn failures and non-zero exits are errors; the caller still owns
// deletion of the raw file.
func (e *FFmpegEnhancer) Enhance(ctx context.Context, rawPath string) (string, error) {
	outPath := enhancedPath(rawPath)
	runCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.Path, e.args(rawPath, outPath)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		_ = os.Remove(outPath)
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > 300 {
			detail = detail[:300]
		}
		return "", fmt.Errorf("ffmpeg failed: %w (%s)", err, detail)
	}
	logging.Debugw("segment enhanced", "raw", rawPath, "enhanced", outPath, "elapsed_ms", time.Since(start).Milliseconds())
	return outPath, nil
}

// NoopEnhancer copies the raw segment through unchanged. Used when
// enhancement is disabled and in tests.
type NoopEnhancer struct{}

func (NoopEnhancer) Enhance(_ context.Context, rawPath string) (string, error) {
	data, err := os.ReadFile(rawPath)
	if err != nil {
		return "", err
	}
	outPath := enhancedPath(rawPath)
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return "", err
	}
	return outPath, nil
}

func enhancedPath(rawPath string) string {
	return strings.TrimSuffix(rawPath, ".wav") + "_enh.wav"
}
