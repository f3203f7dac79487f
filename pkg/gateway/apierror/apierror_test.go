package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClassifyKeywords(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   Code
		wantStatus int
	}{
		{"quota", errors.New("gemini: quota exceeded for project"), CodeQuotaExceeded, http.StatusTooManyRequests},
		{"limit", errors.New("rate limit hit"), CodeQuotaExceeded, http.StatusTooManyRequests},
		{"network", errors.New("network unreachable"), CodeServiceUnavailable, http.StatusServiceUnavailable},
		{"timeout", errors.New("dial tcp: i/o timeout"), CodeServiceUnavailable, http.StatusServiceUnavailable},
		{"deadline", fmt.Errorf("deepgram request: %w", context.DeadlineExceeded), CodeServiceUnavailable, http.StatusServiceUnavailable},
		{"auth", errors.New("401 unauthorized"), CodeAuthError, http.StatusUnauthorized},
		{"authentication", errors.New("authentication failed for key"), CodeAuthError, http.StatusUnauthorized},
		{"starting", errors.New("generation client not initialized"), CodeServiceStarting, http.StatusServiceUnavailable},
		{"other", errors.New("something broke"), CodeInternalError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err, "sess-1")
			if got.Code != tt.wantCode {
				t.Errorf("Code = %s, want %s", got.Code, tt.wantCode)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", got.Status, tt.wantStatus)
			}
			if got.SessionID != "sess-1" {
				t.Errorf("SessionID = %q", got.SessionID)
			}
			if !errors.Is(got, tt.err) {
				t.Error("underlying error not wrapped")
			}
		})
	}
}

func TestClassifyPassesThroughTypedErrors(t *testing.T) {
	typed := New(CodeEmptyTranscription, http.StatusBadRequest, "Could not understand audio. Please try again.")
	wrapped := fmt.Errorf("pipeline: %w", typed)

	got := Classify(wrapped, "sess-2")
	if got != typed {
		t.Fatal("typed error not passed through")
	}
	if got.SessionID != "sess-2" {
		t.Errorf("SessionID = %q", got.SessionID)
	}

	// An already-attached session id wins.
	got = Classify(typed, "sess-3")
	if got.SessionID != "sess-2" {
		t.Errorf("SessionID overwritten to %q", got.SessionID)
	}
}

func TestWriteJSON(t *testing.T) {
	e := Classify(errors.New("secret stack detail"), "sess-4")

	rec := httptest.NewRecorder()
	WriteJSON(rec, e, false)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.Code != CodeInternalError || env.SessionID != "sess-4" {
		t.Errorf("envelope = %+v", env)
	}
	if env.Details != "" {
		t.Error("details leaked in production mode")
	}

	rec = httptest.NewRecorder()
	WriteJSON(rec, e, true)
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.Details != "secret stack detail" {
		t.Errorf("details = %q in development mode", env.Details)
	}
}
