package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/errgroup"

	"github.com/voicewarden/internal/admin"
	"github.com/voicewarden/internal/config"
	"github.com/voicewarden/internal/detector"
	"github.com/voicewarden/internal/logging"
	"github.com/voicewarden/internal/moderation"
	"github.com/voicewarden/internal/storage/sqlite"
	"github.com/voicewarden/internal/voice"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Sugar().Fatalf("config load failed: %v", err)
	}
	sugar := logging.Init(cfg.Logging.Level, cfg.Logging.Format)
	defer logging.Sync()

	dg, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		sugar.Fatalf("discordgo.New: %v", err)
	}
	// Guilds + GuildVoiceStates are sufficient for voice join/leave and
	// speaking-state mapping.
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	scratch, err := voice.NewScratchDir(cfg.Capture.ScratchDir)
	if err != nil {
		sugar.Fatalf("scratch dir: %v", err)
	}

	// Moderation state and enforcement.
	det := detector.New(cfg.Moderation.Terms)
	cooldowns := moderation.NewCooldowns()
	var enforcer moderation.Enforcer
	if cfg.Moderation.Action == "disconnect" {
		enforcer = moderation.NewDiscordEnforcer(dg, cfg.Moderation.AnnounceChannel)
	} else {
		enforcer = moderation.LogEnforcer{}
	}
	var recorder moderation.EventRecorder
	if cfg.Storage.Enabled {
		db, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			sugar.Fatalf("audit db open: %v", err)
		}
		defer db.Close()
		store, err := sqlite.NewEventStorage(db)
		if err != nil {
			sugar.Fatalf("audit db init: %v", err)
		}
		recorder = store
	}
	hook := moderation.NewHook(det, enforcer, cooldowns,
		time.Duration(cfg.Moderation.CooldownSecs)*time.Second, cfg.Moderation.Action, recorder)

	// Capture pipeline.
	capturer := voice.NewCapturer(
		cfg.Capture.SampleRate,
		cfg.Capture.Channels,
		time.Duration(cfg.Capture.SilenceWindowMs)*time.Millisecond,
		time.Duration(cfg.Capture.MaxUtteranceMs)*time.Millisecond,
		cfg.Capture.SilenceRMS,
		scratch,
	)
	gate := voice.NewQualityGate(
		cfg.Gate.MinBytes,
		time.Duration(cfg.Gate.MinDurationMs)*time.Millisecond,
		cfg.Gate.MinRMS,
		scratch,
	)
	var enhancer voice.Enhancer = voice.NoopEnhancer{}
	if cfg.Enhance.Enabled {
		enhancer = voice.NewFFmpegEnhancer(
			cfg.Enhance.FFmpegPath,
			time.Duration(cfg.Enhance.TimeoutSecs)*time.Second,
			cfg.Enhance.TargetSampleRate,
			cfg.Enhance.TargetChannels,
			voice.DefaultFilterChain(),
		)
	}
	var backend voice.Backend
	switch cfg.Recognition.Backend {
	case "streaming":
		backend = voice.NewStreamingBackend(cfg.Recognition.StreamURL, cfg.Recognition.APIKey, cfg.Recognition.ChunkMs)
	default:
		backend = voice.NewWhisperBackend(cfg.Recognition.WhisperURL, cfg.Recognition.Language,
			time.Duration(cfg.Recognition.TimeoutMs)*time.Millisecond)
	}
	queue := voice.NewRecognitionQueue(backend, cfg.Recognition.QueueCapacity,
		time.Duration(cfg.Recognition.TimeoutMs)*time.Millisecond, scratch)
	queue.Start()
	defer queue.Close()

	source := voice.NewDiscordSource(cfg.Discord.GuildID, cfg.Capture.FrameQueueSize, nil)
	scheduler := voice.NewScheduler(source, capturer, gate, enhancer, queue, hook, cooldowns, scratch,
		cfg.Capture.MaxConcurrent, time.Duration(cfg.Capture.TaskTimeoutSecs)*time.Second)
	source.SetEvents(scheduler)
	scheduler.SetNameResolver(voice.NewDiscordResolver(dg))
	defer scheduler.Close()

	dg.AddHandler(func(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		source.HandleVoiceState(s, vs)
	})

	sugar.Infow("opening discord session")
	if err := dg.Open(); err != nil {
		sugar.Fatalf("discord session open failed: %v", err)
	}
	defer dg.Close()

	sugar.Infow("joining voice channel", "guild", cfg.Discord.GuildID, "channel", cfg.Discord.VoiceChannelID)
	vc, err := dg.ChannelVoiceJoin(cfg.Discord.GuildID, cfg.Discord.VoiceChannelID, true, false)
	if err != nil {
		sugar.Fatalf("voice join failed: %v", err)
	}
	vc.AddHandler(source.HandleSpeakingUpdate)
	source.Attach(vc)
	sugar.Infow("voice joined; capture pipeline running",
		"max_concurrent", cfg.Capture.MaxConcurrent,
		"backend", cfg.Recognition.Backend,
		"terms", len(cfg.Moderation.Terms))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Admin.Enabled {
		adminSrv := admin.NewServer(cfg.Admin.Addr, det, cooldowns, scheduler)
		g.Go(func() error { return adminSrv.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	if err := g.Wait(); err != nil {
		sugar.Warnf("runtime error: %v", err)
	}

	sugar.Infow("shutdown signal received, closing resources")
	_ = source.Close()
	if err := vc.Disconnect(); err != nil {
		sugar.Warnf("voice disconnect error: %v", err)
	}
	sugar.Info("shutdown complete")
}
