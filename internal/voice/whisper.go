package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// WhisperBackend POSTs a whole finalized WAV segment to a whisper-compatible
// HTTP endpoint and reads back {"text": "..."}.
type WhisperBackend struct {
	URL      string
	Language string
	client   *http.Client
}

// NewWhisperBackend builds the whole-segment HTTP backend.
func NewWhisperBackend(rawURL, language string, timeout time.Duration) *WhisperBackend {
	return &WhisperBackend{
		URL:      rawURL,
		Language: language,
		client:   &http.Client{Timeout: timeout},
	}
}

// Transcribe sends the segment and returns the trimmed transcript.
func (w *WhisperBackend) Transcribe(ctx context.Context, wavPath string) (string, error) {
	wav, err := os.ReadFile(wavPath)
	if err != nil {
		return "", fmt.Errorf("failed to read segment: %w", err)
	}

	endpoint := w.URL
	if u, err := url.Parse(w.URL); err == nil && w.Language != "" {
		q := u.Query()
		q.Set("language", w.Language)
		u.RawQuery = q.Encode()
		endpoint = u.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(wav))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("whisper returned status %d", resp.StatusCode)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode whisper response: %w", err)
	}
	return strings.TrimSpace(out.Text), nil
}
