// Package server assembles the relay's HTTP surface.
package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dostvoice/relay/pkg/gateway/config"
	"github.com/dostvoice/relay/pkg/gateway/handlers"
	"github.com/dostvoice/relay/pkg/gateway/mw"
	"github.com/dostvoice/relay/pkg/gateway/ratelimit"
	"github.com/dostvoice/relay/pkg/gateway/sessions"
	"github.com/dostvoice/relay/pkg/gateway/turn"
	"github.com/dostvoice/relay/pkg/voice/chat"
	"github.com/dostvoice/relay/pkg/voice/stt"
	"github.com/dostvoice/relay/pkg/voice/tts"
)

// Providers are the capability clients the relay fronts. Nil entries start
// the relay degraded: /health reports the gap and turns fail closed.
type Providers struct {
	Recognizer stt.Provider
	Generator  chat.Provider
	Synth      map[string]tts.Provider
	Default    string
}

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	store    *sessions.Store
	limiter  *ratelimit.Limiter
	pipeline *turn.Pipeline
	apis     handlers.APIStatus
	started  time.Time
}

func New(cfg config.Config, logger *slog.Logger, providers Providers) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if providers.Default == "" {
		providers.Default = "elevenlabs"
	}

	var factory sessions.ConversationFactory
	if providers.Generator != nil {
		factory = providers.Generator.NewConversation
	}
	store := sessions.New(cfg.SessionTimeout, cfg.SweepInterval, factory, logger)

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		mux:     http.NewServeMux(),
		store:   store,
		limiter: ratelimit.New(ratelimit.Config{RPS: cfg.LimitRPS, Burst: cfg.LimitBurst}),
		pipeline: &turn.Pipeline{
			STT:       providers.Recognizer,
			Generator: providers.Generator,
			Synth:     providers.Synth,
			Default:   providers.Default,
			Sessions:  store,
			Logger:    logger,

			MaxAudioBytes: cfg.MaxAudioBytes,
			Language:      "hi",
		},
		apis: handlers.APIStatus{
			Deepgram:   providers.Recognizer != nil,
			Gemini:     providers.Generator != nil,
			ElevenLabs: hasSynth(providers.Synth, "elevenlabs"),
		},
		started: time.Now(),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("POST /turn", handlers.TurnHandler{
		Pipeline: s.pipeline,
		MaxBytes: s.cfg.MaxAudioBytes,
		Dev:      s.cfg.Development(),
		Logger:   s.logger,
	})
	s.mux.Handle("GET /health", handlers.HealthHandler{
		Sessions:    s.store,
		Environment: s.cfg.Environment,
		APIs:        s.apis,
		Started:     s.started,
	})
	s.mux.Handle("GET /session/{id}", handlers.SessionHandler{
		Sessions: s.store,
		Dev:      s.cfg.Development(),
	})
	s.mux.Handle("/", handlers.NotFoundHandler{})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.RateLimit(s.limiter, h)
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// Sessions exposes the store so the owner can run the background sweeper.
func (s *Server) Sessions() *sessions.Store {
	return s.store
}

func hasSynth(synth map[string]tts.Provider, name string) bool {
	_, ok := synth[strings.ToLower(name)]
	return ok
}
