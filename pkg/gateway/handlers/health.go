package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dostvoice/relay/pkg/gateway/config"
	"github.com/dostvoice/relay/pkg/gateway/sessions"
)

// APIStatus reports which capability providers are configured.
type APIStatus struct {
	Deepgram   bool `json:"deepgram"`
	Gemini     bool `json:"gemini"`
	ElevenLabs bool `json:"elevenlabs"`
}

// Ready reports whether every primary provider is configured.
func (s APIStatus) Ready() bool {
	return s.Deepgram && s.Gemini && s.ElevenLabs
}

// HealthHandler serves the readiness snapshot for load balancers and the
// frontend's connectivity probe.
type HealthHandler struct {
	Sessions    *sessions.Store
	Environment config.Environment
	APIs        APIStatus
	Started     time.Time
}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type healthResp struct {
		Status         string    `json:"status"`
		Timestamp      string    `json:"timestamp"`
		ActiveSessions int       `json:"activeSessions"`
		UptimeSeconds  int64     `json:"uptime"`
		Environment    string    `json:"environment"`
		APIs           APIStatus `json:"apis"`
	}

	status := "healthy"
	code := http.StatusOK
	if !h.APIs.Ready() {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	active := 0
	if h.Sessions != nil {
		active = h.Sessions.Count()
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(healthResp{
		Status:         status,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		ActiveSessions: active,
		UptimeSeconds:  int64(time.Since(h.Started).Seconds()),
		Environment:    string(h.Environment),
		APIs:           h.APIs,
	})
}
