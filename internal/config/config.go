// Package config loads and validates the TOML application configuration.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// Config represents the main application configuration structure
// containing all configuration sections.
type Config struct {
	Discord     DiscordConfig     `toml:"discord"`     // Gateway and voice channel settings
	Capture     CaptureConfig     `toml:"capture"`     // Per-speaker segment capture settings
	Gate        GateConfig        `toml:"gate"`        // Signal-quality gate thresholds
	Enhance     EnhanceConfig     `toml:"enhance"`     // Audio enhancement subprocess settings
	Recognition RecognitionConfig `toml:"recognition"` // Speech recognition backend settings
	Moderation  ModerationConfig  `toml:"moderation"`  // Term list and enforcement settings
	Storage     StorageConfig     `toml:"storage"`     // Enforcement audit log settings
	Admin       AdminConfig       `toml:"admin"`       // MCP admin control plane settings
	Logging     LoggingConfig     `toml:"logging"`     // Application logging settings
}

// DiscordConfig contains gateway credentials and the voice channel to join.
type DiscordConfig struct {
	Token          string `toml:"token" validate:"required"` // Bot token (or set DISCORD_BOT_TOKEN)
	GuildID        string `toml:"guild_id" validate:"required"`
	VoiceChannelID string `toml:"voice_channel_id" validate:"required"`
}

// CaptureConfig contains segment capture and scheduler settings.
type CaptureConfig struct {
	MaxConcurrent   int    `toml:"max_concurrent" validate:"min=1,max=16"`          // Concurrency ceiling across in-flight tasks
	TaskTimeoutSecs int    `toml:"task_timeout_seconds" validate:"min=5,max=120"`   // Upper bound on total task lifetime
	SilenceWindowMs int    `toml:"silence_window_ms" validate:"min=200,max=5000"`   // Trailing silence that ends an utterance
	MaxUtteranceMs  int    `toml:"max_utterance_ms" validate:"min=1000,max=120000"` // Hard cap on a single segment
	SilenceRMS      int    `toml:"silence_rms" validate:"min=0"`                    // Frame RMS at or below this counts as silence
	ScratchDir      string `toml:"scratch_dir" validate:"required"`                 // Writable directory for transient per-task audio
	FrameQueueSize  int    `toml:"frame_queue_size" validate:"min=8"`               // Per-subscription frame buffer
	SampleRate      int    `toml:"sample_rate" validate:"oneof=48000"`              // Transport decode rate (Discord opus is 48 kHz)
	Channels        int    `toml:"channels" validate:"oneof=1 2"`
}

// GateConfig contains quality gate thresholds. A segment failing any check
// is dropped before enhancement.
type GateConfig struct {
	MinBytes      int     `toml:"min_bytes" validate:"min=0"`       // Minimum PCM byte length
	MinDurationMs int     `toml:"min_duration_ms" validate:"min=0"` // Minimum estimated duration
	MinRMS        float64 `toml:"min_rms" validate:"min=0"`         // Minimum RMS energy over all samples
}

// EnhanceConfig configures the external audio-filter subprocess.
type EnhanceConfig struct {
	Enabled          bool   `toml:"enabled"`
	FFmpegPath       string `toml:"ffmpeg_path" validate:"required"`
	TimeoutSecs      int    `toml:"timeout_seconds" validate:"min=1,max=60"`
	TargetSampleRate int    `toml:"target_sample_rate" validate:"min=8000"` // Recognizer input rate (commonly 16000)
	TargetChannels   int    `toml:"target_channels" validate:"oneof=1 2"`
}

// RecognitionConfig selects and configures the speech recognition backend.
type RecognitionConfig struct {
	Backend       string `toml:"backend" validate:"oneof=whisper streaming"` // "whisper" (whole segment HTTP) or "streaming" (websocket)
	WhisperURL    string `toml:"whisper_url"`                                // Required when backend = "whisper"
	StreamURL     string `toml:"stream_url"`                                 // Required when backend = "streaming"
	APIKey        string `toml:"api_key"`
	Language      string `toml:"language"`
	TimeoutMs     int    `toml:"timeout_ms" validate:"min=100"`
	QueueCapacity int    `toml:"queue_capacity" validate:"min=1"`
	ChunkMs       int    `toml:"chunk_ms" validate:"min=20"` // Streaming backend chunk size
}

// ModerationConfig contains the banned term list and enforcement settings.
type ModerationConfig struct {
	Terms           []string `toml:"terms"`                                  // Initial banned terms (case-insensitive, whole word)
	CooldownSecs    int      `toml:"cooldown_seconds" validate:"min=1"`      // Post-enforcement capture suppression window
	Action          string   `toml:"action" validate:"oneof=disconnect log"` // "disconnect" moves the member out of voice; "log" only records
	AnnounceChannel string   `toml:"announce_channel_id"`                    // Optional text channel for enforcement notices
}

// StorageConfig contains audit log persistence configuration.
type StorageConfig struct {
	Enabled    bool   `toml:"enabled"`
	SQLitePath string `toml:"sqlite_path"` // Path to the enforcement event database file
}

// AdminConfig configures the MCP websocket control plane.
type AdminConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"` // Listen address, e.g. "127.0.0.1:9301"
}

// LoggingConfig contains application logging configuration.
type LoggingConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=json console"`
}

// Default returns a Config populated with working defaults; Load overlays
// the TOML file on top of these.
func Default() Config {
	return Config{
		Capture: CaptureConfig{
			MaxConcurrent:   3,
			TaskTimeoutSecs: 20,
			SilenceWindowMs: 1200,
			MaxUtteranceMs:  30000,
			SilenceRMS:      200,
			ScratchDir:      "scratch",
			FrameQueueSize:  256,
			SampleRate:      48000,
			Channels:        2,
		},
		Gate: GateConfig{
			MinBytes:      9600, // 50ms of 48kHz stereo s16
			MinDurationMs: 300,
			MinRMS:        250,
		},
		Enhance: EnhanceConfig{
			Enabled:          true,
			FFmpegPath:       "ffmpeg",
			TimeoutSecs:      15,
			TargetSampleRate: 16000,
			TargetChannels:   1,
		},
		Recognition: RecognitionConfig{
			Backend:       "whisper",
			TimeoutMs:     15000,
			QueueCapacity: 16,
			ChunkMs:       100,
		},
		Moderation: ModerationConfig{
			CooldownSecs: 10,
			Action:       "disconnect",
		},
		Admin: AdminConfig{
			Addr: "127.0.0.1:9301",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads, overlays, and validates the configuration at path.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	if cfg.Discord.Token == "" {
		cfg.Discord.Token = os.Getenv("DISCORD_BOT_TOKEN")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags plus cross-field constraints that tags can't
// express (the backend URL matching the selected backend).
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	switch c.Recognition.Backend {
	case "whisper":
		if c.Recognition.WhisperURL == "" {
			return fmt.Errorf("recognition.whisper_url is required when backend is %q", c.Recognition.Backend)
		}
	case "streaming":
		if c.Recognition.StreamURL == "" {
			return fmt.Errorf("recognition.stream_url is required when backend is %q", c.Recognition.Backend)
		}
	}
	if c.Storage.Enabled && c.Storage.SQLitePath == "" {
		return fmt.Errorf("storage.sqlite_path is required when storage is enabled")
	}
	return nil
}
