// Package handlers holds the HTTP endpoints of the relay.
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dostvoice/relay/pkg/gateway/apierror"
	"github.com/dostvoice/relay/pkg/gateway/turn"
	"github.com/dostvoice/relay/pkg/voice/audio"
)

// TurnHandler accepts one multipart voice turn and streams synthesized audio
// back with the transcript and reply in response headers.
type TurnHandler struct {
	Pipeline *turn.Pipeline
	MaxBytes int64
	Dev      bool
	Logger   *slog.Logger
}

func (h TurnHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Bound the whole request body; multipart framing overhead rides on top
	// of the audio budget.
	maxBytes := h.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 25 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apierror.WriteJSON(w, apierror.New(apierror.CodeFileTooLarge, http.StatusBadRequest,
				"File too large. Maximum size is 25MB."), h.Dev)
			return
		}
		apierror.WriteJSON(w, apierror.New(apierror.CodeNoAudioFile, http.StatusBadRequest,
			"No audio file provided"), h.Dev)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("audio")
	if err != nil {
		apierror.WriteJSON(w, apierror.New(apierror.CodeNoAudioFile, http.StatusBadRequest,
			"No audio file provided"), h.Dev)
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		apierror.WriteJSON(w, apierror.Classify(err, ""), h.Dev)
		return
	}

	res, err := h.Pipeline.Run(r.Context(), turn.Input{
		Audio:           payload,
		MediaType:       header.Header.Get("Content-Type"),
		Provider:        r.FormValue("ttsProvider"),
		VoicePreference: r.FormValue("voicePreference"),
		SessionID:       r.Header.Get("X-Session-Id"),
	})
	if err != nil {
		apierror.WriteJSON(w, apierror.Classify(err, ""), h.Dev)
		return
	}

	// Header values must stay ASCII; the browser client decodes them with
	// decodeURIComponent.
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("X-Session-Id", res.SessionID)
	w.Header().Set("X-Transcription", url.PathEscape(res.Transcript))
	w.Header().Set("X-Response-Text", url.PathEscape(res.Reply))
	w.Header().Set("X-Processing-Time", strconv.FormatInt(res.Elapsed.Milliseconds(), 10))

	if _, err := audio.Copy(w, res.Audio); err != nil {
		// Headers are out; nothing left to do but note the broken stream.
		logger.Error("audio delivery aborted", "session_id", res.SessionID, "error", err)
	}
}
