// Interlude is an announcement daemon: it speaks text into a guild's voice
// channel over whatever music is playing, then puts the music back where it
// was.
//
// Usage:
//
//	interlude [flags]
//	interlude --config /path/to/interlude.yaml
//
// @title                      Interlude API
// @version                    1.0
// @description                Speaks text into a voice channel, interrupting and restoring the music that was playing.
// @BasePath                   /
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/nadzzz/interlude/docs"
	"github.com/nadzzz/interlude/internal/audio"
	"github.com/nadzzz/interlude/internal/config"
	"github.com/nadzzz/interlude/internal/dispatch"
	"github.com/nadzzz/interlude/internal/guildconfig"
	"github.com/nadzzz/interlude/internal/health"
	"github.com/nadzzz/interlude/internal/player/lavalink"
	"github.com/nadzzz/interlude/internal/session"
	"github.com/nadzzz/interlude/internal/transport"
	grpctransport "github.com/nadzzz/interlude/internal/transport/grpc"
	httptransport "github.com/nadzzz/interlude/internal/transport/http"
	"github.com/nadzzz/interlude/internal/tts"
	googletts "github.com/nadzzz/interlude/internal/tts/google"
	"github.com/nadzzz/interlude/internal/tts/piper"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configFile := flag.String("config", "", "path to config file (e.g. configs/interlude.yaml)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("interlude %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	config.SetupLogging(cfg.Logging)
	slog.Info("interlude starting", "version", version)

	if err := run(cfg); err != nil {
		slog.Error("interlude failed", "error", err)
		os.Exit(1)
	}
	slog.Info("interlude stopped")
}

func run(cfg *config.Config) error {
	// Create root context with signal handling for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	synth, err := newSynthesizer(ctx, cfg.TTS)
	if err != nil {
		return err
	}
	defer synth.Close()

	preparer, err := audio.NewPreparer(cfg.Audio.TempDir)
	if err != nil {
		return fmt.Errorf("audio temp dir: %w", err)
	}
	slog.Info("announcement files", "dir", preparer.Dir())

	store, err := guildconfig.Open(cfg.Store.Path, guildconfig.Settings{
		Lang:    cfg.Defaults.Lang,
		Padding: cfg.Defaults.Padding,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	node := lavalink.NewNode(lavalink.Config{
		Address:    cfg.Lavalink.Address,
		Password:   cfg.Lavalink.Password,
		UserID:     cfg.Lavalink.UserID,
		ClientName: cfg.Lavalink.ClientName,
		Secure:     cfg.Lavalink.Secure,
	})
	openCtx, openCancel := context.WithTimeout(ctx, 30*time.Second)
	err = node.Open(openCtx)
	openCancel()
	if err != nil {
		return fmt.Errorf("opening lavalink node: %w", err)
	}
	defer node.Close()

	sessions := session.NewManager(func(guildID string) session.Player {
		return node.Player(guildID)
	}, slog.Default())

	dispatcher := dispatch.New(dispatch.Options{
		Synthesizer: synth,
		Preparer:    preparer,
		Store:       store,
		Acquire:     dispatch.FromManager(sessions),
		Leave:       sessions.Leave,
		AdminToken:  cfg.Server.AdminToken,
	})

	var transports []transport.Transport
	if cfg.Transports.GRPC.Enabled {
		transports = append(transports, grpctransport.New(cfg.Transports.GRPC.Port))
	}
	if cfg.Transports.HTTP.Enabled {
		transports = append(transports, httptransport.New(cfg.Transports.HTTP.Port, cfg.Transports.HTTP.AllowedOrigins))
	}
	if len(transports) == 0 {
		return fmt.Errorf("no transports enabled, enable at least one in config")
	}

	healthServer := health.New(cfg.Server.HealthPort)
	healthServer.AddCheck("lavalink", func(context.Context) error {
		if !node.Connected() {
			return lavalink.ErrNotConnected
		}
		return nil
	})
	healthServer.AddCheck("store", store.Ping)
	go func() {
		if err := healthServer.ListenAndServe(ctx); err != nil {
			slog.Error("health server failed", "error", err)
		}
	}()

	var wg sync.WaitGroup
	for _, t := range transports {
		wg.Add(1)
		go func(t transport.Transport) {
			defer wg.Done()
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(ctx, dispatcher); err != nil {
				slog.Error("transport failed", "name", t.Name(), "error", err)
			}
		}(t)
	}

	healthServer.SetReady(true)
	slog.Info("interlude ready",
		"transports", len(transports),
		"tts_backend", cfg.TTS.Backend,
		"health_port", cfg.Server.HealthPort)

	<-ctx.Done()
	slog.Info("shutdown signal received, draining...")
	healthServer.SetReady(false)

	for _, t := range transports {
		if err := t.Close(); err != nil {
			slog.Error("transport close error", "name", t.Name(), "error", err)
		}
	}
	wg.Wait()

	// Sessions release their in-flight announcements and leave voice.
	slog.Info("closing sessions", "count", sessions.Len())
	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	if err := sessions.Close(closeCtx); err != nil {
		slog.Error("closing sessions", "error", err)
	}
	return nil
}

func newSynthesizer(ctx context.Context, cfg config.TTSConfig) (tts.Synthesizer, error) {
	switch cfg.Backend {
	case "piper":
		slog.Info("using piper synthesizer", "endpoint", cfg.Piper.Endpoint, "voices", len(cfg.Piper.Voices))
		return piper.New(cfg.Piper), nil
	case "google":
		slog.Info("using google synthesizer", "requests_per_minute", cfg.Google.RequestsPerMinute)
		s, err := googletts.New(ctx, cfg.Google)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown tts backend %q", cfg.Backend)
	}
}
