package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/dostvoice/relay/pkg/gateway/apierror"
	"github.com/dostvoice/relay/pkg/gateway/sessions"
)

// SessionHandler serves the diagnostic projection of one live session.
// Reads never refresh activity, so polling cannot keep a session alive.
type SessionHandler struct {
	Sessions *sessions.Store
	Dev      bool
}

func (h SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	info, ok := h.Sessions.Describe(id)
	if !ok {
		apierror.WriteJSON(w, apierror.New(apierror.CodeNotFound, http.StatusNotFound,
			"Session not found"), h.Dev)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(info)
}
