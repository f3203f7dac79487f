package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dostvoice/relay/pkg/gateway/apierror"
	"github.com/dostvoice/relay/pkg/gateway/sessions"
	"github.com/dostvoice/relay/pkg/voice/chat"
)

func sessionMux(store *sessions.Store) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /session/{id}", SessionHandler{Sessions: store})
	return mux
}

func TestSessionReturnsInfo(t *testing.T) {
	store := sessions.New(30*time.Minute, 5*time.Minute, func(ctx context.Context) (chat.Conversation, error) {
		return &fakeConv{reply: "ok"}, nil
	}, nil)
	sess, err := store.Resolve(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	store.ChargeTurn(sess)

	rec := httptest.NewRecorder()
	sessionMux(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/session/"+sess.ID, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var info sessions.Info
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if info.SessionID != sess.ID || info.MessageCount != 1 {
		t.Fatalf("info = %+v", info)
	}
}

func TestSessionUnknownIDIs404(t *testing.T) {
	store := sessions.New(30*time.Minute, 5*time.Minute, nil, nil)

	rec := httptest.NewRecorder()
	sessionMux(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/session/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	var env apierror.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.Code != apierror.CodeNotFound {
		t.Fatalf("code = %s", env.Code)
	}
}
