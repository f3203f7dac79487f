package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/dostvoice/relay/pkg/gateway/config"
	relayserver "github.com/dostvoice/relay/pkg/gateway/server"
)

func testRelayConfig() config.Config {
	return config.Config{
		Addr:                "127.0.0.1:0",
		Environment:         config.EnvDevelopment,
		AllowedOrigins:      map[string]struct{}{},
		MaxAudioBytes:       25 << 20,
		SessionTimeout:      30 * time.Minute,
		SweepInterval:       5 * time.Minute,
		ReadHeaderTimeout:   time.Second,
		ReadTimeout:         5 * time.Second,
		ShutdownGracePeriod: 2 * time.Second,
	}
}

func TestRunMain_ReturnsNonZeroWhenConfigLoadFails(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	exitCode := runMain(context.Background(), &stderr, relayDeps{
		loadConfig: func() (config.Config, error) {
			return config.Config{}, errors.New("boom")
		},
		buildProviders: buildProviders,
		newServer: func(cfg config.Config, logger *slog.Logger, p relayserver.Providers) *relayserver.Server {
			t.Fatal("newServer should not be called when config load fails")
			return nil
		},
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {},
		signalStop:   func(c chan<- os.Signal) {},
	})

	if exitCode != 1 {
		t.Fatalf("exitCode=%d, want 1", exitCode)
	}
	if stderr.String() == "" {
		t.Fatal("expected stderr output for startup error")
	}
}

func TestRunRelay_RejectsMissingDependencies(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := runRelay(context.Background(), logger, relayDeps{}); err == nil {
		t.Fatal("expected an error for empty deps")
	}
}

func TestRunRelay_StopsOnShutdownSignal(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var mu sync.Mutex
	var sigCh chan<- os.Signal
	deps := defaultRelayDeps()
	deps.loadConfig = func() (config.Config, error) {
		return testRelayConfig(), nil
	}
	deps.buildProviders = func(ctx context.Context, cfg config.Config, logger *slog.Logger) relayserver.Providers {
		return relayserver.Providers{} // degraded start
	}
	deps.signalNotify = func(c chan<- os.Signal, sig ...os.Signal) {
		mu.Lock()
		sigCh = c
		mu.Unlock()
	}
	deps.signalStop = func(c chan<- os.Signal) {}

	done := make(chan error, 1)
	go func() {
		done <- runRelay(context.Background(), logger, deps)
	}()

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		ready := sigCh != nil
		mu.Unlock()
		if ready {
			break
		}
		select {
		case <-deadline:
			t.Fatal("signal channel never registered")
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	sigCh <- syscall.SIGTERM
	mu.Unlock()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runRelay returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runRelay did not stop after SIGTERM")
	}
}

func TestBuildHTTPServer_UsesConfiguredAddress(t *testing.T) {
	t.Parallel()

	cfg := testRelayConfig()
	cfg.Addr = "127.0.0.1:9999"

	srv := buildHTTPServer(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	if srv.Addr != cfg.Addr {
		t.Fatalf("Addr=%q, want %q", srv.Addr, cfg.Addr)
	}
	if srv.ReadHeaderTimeout != cfg.ReadHeaderTimeout {
		t.Fatalf("ReadHeaderTimeout=%v, want %v", srv.ReadHeaderTimeout, cfg.ReadHeaderTimeout)
	}
}

func TestBuildProviders_DegradesWithoutKeys(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := buildProviders(context.Background(), testRelayConfig(), logger)

	if p.Recognizer != nil || p.Generator != nil {
		t.Fatalf("providers built without credentials: %+v", p)
	}
	if len(p.Synth) != 0 {
		t.Fatalf("synthesis providers built without credentials: %v", p.Synth)
	}
}

func TestBuildProviders_WiresConfiguredKeys(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testRelayConfig()
	cfg.DeepgramAPIKey = "dg-key"
	cfg.ElevenLabsAPIKey = "el-key"
	cfg.CartesiaAPIKey = "ca-key"

	p := buildProviders(context.Background(), cfg, logger)

	if p.Recognizer == nil {
		t.Fatal("deepgram recognizer not built")
	}
	if _, ok := p.Synth["elevenlabs"]; !ok {
		t.Fatal("elevenlabs synthesizer not built")
	}
	if _, ok := p.Synth["cartesia"]; !ok {
		t.Fatal("cartesia synthesizer not built")
	}
	if p.Default != "elevenlabs" {
		t.Fatalf("default synthesizer = %q", p.Default)
	}
}
