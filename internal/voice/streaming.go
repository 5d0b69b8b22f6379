package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/voicewarden/internal/logging"
)

// StreamingBackend feeds a segment to a websocket recognition service in
// chunks and drains intermediate events until the terminal transcript. The
// segment is already finalized; streaming is only the backend's wire shape.
type StreamingBackend struct {
	URL     string
	APIKey  string
	ChunkMs int
	dialer  *websocket.Dialer
}

// NewStreamingBackend builds the chunked websocket backend.
func NewStreamingBackend(rawURL, apiKey string, chunkMs int) *StreamingBackend {
	return &StreamingBackend{
		URL:     rawURL,
		APIKey:  apiKey,
		ChunkMs: chunkMs,
		dialer:  websocket.DefaultDialer,
	}
}

type streamEvent struct {
	Type       string `json:"type"`
	Delta      string `json:"delta,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Error      struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Transcribe uploads the segment chunk by chunk, then waits for the
// completed event. Delta events are drained and discarded.
func (s *StreamingBackend) Transcribe(ctx context.Context, wavPath string) (string, error) {
	pcm, sampleRate, channels, err := readWAV(wavPath)
	if err != nil {
		return "", fmt.Errorf("failed to read segment: %w", err)
	}

	header := http.Header{}
	if s.APIKey != "" {
		header.Set("Authorization", "Bearer "+s.APIKey)
	}
	conn, resp, err := s.dialer.DialContext(ctx, s.URL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return "", fmt.Errorf("stream dial failed: %w", err)
	}
	defer conn.Close()

	chunkBytes := sampleRate * channels * 2 * s.ChunkMs / 1000
	if chunkBytes <= 0 {
		chunkBytes = len(pcm)
	}
	for off := 0; off < len(pcm); off += chunkBytes {
		end := off + chunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		msg := map[string]string{
			"type":  "input_audio_buffer.append",
			"audio": base64.StdEncoding.EncodeToString(pcm[off:end]),
		}
		if err := writeJSON(ctx, conn, msg); err != nil {
			return "", fmt.Errorf("failed to send audio chunk: %w", err)
		}
	}
	if err := writeJSON(ctx, conn, map[string]string{"type": "input_audio_buffer.commit"}); err != nil {
		return "", fmt.Errorf("failed to commit segment: %w", err)
	}

	// Drain events to terminal state before returning.
	for {
		if dl, ok := ctx.Deadline(); ok {
			_ = conn.SetReadDeadline(dl)
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return "", fmt.Errorf("stream read failed: %w", err)
		}
		var evt streamEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			logging.Debugw("unparseable stream event", "err", err)
			continue
		}
		switch {
		case strings.HasSuffix(evt.Type, "transcription.delta"):
			logging.Debugw("stream delta", "chars", len(evt.Delta))
		case strings.HasSuffix(evt.Type, "transcription.completed"):
			return strings.TrimSpace(evt.Transcript), nil
		case evt.Type == "error":
			return "", fmt.Errorf("stream backend error: %s", evt.Error.Message)
		}
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(dl)
	}
	return conn.WriteJSON(v)
}
