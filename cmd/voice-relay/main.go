// Command voice-relay runs the HTTP gateway that turns browser audio into a
// spoken Hindi reply: transcription, conversational generation, synthesis.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dostvoice/relay/internal/dotenv"
	"github.com/dostvoice/relay/pkg/gateway/config"
	relayserver "github.com/dostvoice/relay/pkg/gateway/server"
	"github.com/dostvoice/relay/pkg/voice/chat"
	"github.com/dostvoice/relay/pkg/voice/stt"
	"github.com/dostvoice/relay/pkg/voice/tts"
)

type relayDeps struct {
	loadConfig     func() (config.Config, error)
	buildProviders func(context.Context, config.Config, *slog.Logger) relayserver.Providers
	newServer      func(config.Config, *slog.Logger, relayserver.Providers) *relayserver.Server
	signalNotify   func(chan<- os.Signal, ...os.Signal)
	signalStop     func(chan<- os.Signal)
}

func defaultRelayDeps() relayDeps {
	return relayDeps{
		loadConfig:     config.LoadFromEnv,
		buildProviders: buildProviders,
		newServer:      relayserver.New,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

// buildProviders constructs whichever capability clients have credentials.
// A missing key degrades the relay instead of stopping it; /health reports
// the gap.
func buildProviders(ctx context.Context, cfg config.Config, logger *slog.Logger) relayserver.Providers {
	p := relayserver.Providers{
		Synth:   make(map[string]tts.Provider),
		Default: "elevenlabs",
	}

	if cfg.DeepgramAPIKey != "" {
		p.Recognizer = stt.NewDeepgram(cfg.DeepgramAPIKey)
	} else {
		logger.Warn("DEEPGRAM_API_KEY not set; transcription disabled")
	}

	if cfg.GeminiAPIKey != "" {
		gen, err := chat.NewGemini(ctx, cfg.GeminiAPIKey)
		if err != nil {
			logger.Warn("gemini client init failed; generation disabled", "error", err)
		} else {
			p.Generator = gen
		}
	} else {
		logger.Warn("GOOGLE_GEMINI_API_KEY not set; generation disabled")
	}

	if cfg.ElevenLabsAPIKey != "" {
		p.Synth["elevenlabs"] = tts.NewElevenLabs(cfg.ElevenLabsAPIKey)
	} else {
		logger.Warn("ELEVENLABS_API_KEY not set; synthesis disabled")
	}
	if cfg.CartesiaAPIKey != "" {
		p.Synth["cartesia"] = tts.NewCartesia(cfg.CartesiaAPIKey)
	}

	return p
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
	}
}

func runRelay(ctx context.Context, logger *slog.Logger, deps relayDeps) error {
	if deps.loadConfig == nil {
		return errors.New("missing loadConfig dependency")
	}
	if deps.buildProviders == nil {
		return errors.New("missing buildProviders dependency")
	}
	if deps.newServer == nil {
		return errors.New("missing newServer dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	providers := deps.buildProviders(ctx, cfg, logger)
	srv := deps.newServer(cfg, logger, providers)
	httpSrv := buildHTTPServer(cfg, srv.Handler())

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go srv.Sessions().Run(sweepCtx)

	logger.Info("starting voice relay", "addr", cfg.Addr, "environment", cfg.Environment)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("voice relay stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps relayDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := dotenv.Load(".env"); err != nil {
		fmt.Fprintf(stderr, "voice-relay: %v\n", err)
		return 1
	}

	if err := runRelay(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "voice-relay: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultRelayDeps()))
}
