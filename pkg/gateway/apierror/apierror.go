// Package apierror defines the caller-facing error taxonomy and the
// classification of provider failures into it.
package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Code is a caller-facing error code.
type Code string

const (
	CodeNoAudioFile        Code = "NO_AUDIO_FILE"
	CodeInvalidFileType    Code = "INVALID_FILE_TYPE"
	CodeFileTooLarge       Code = "FILE_TOO_LARGE"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeServiceStarting    Code = "SERVICE_STARTING"
	CodeSTTError           Code = "STT_ERROR"
	CodeEmptyTranscription Code = "EMPTY_TRANSCRIPTION"
	CodeQuotaExceeded      Code = "QUOTA_EXCEEDED"
	CodeAuthError          Code = "AUTH_ERROR"
	CodeInternalError      Code = "INTERNAL_ERROR"
	CodeUnhandledError     Code = "UNHANDLED_ERROR"
	CodeNotFound           Code = "NOT_FOUND"
)

// Error is the canonical gateway error. SessionID is attached once a turn
// has resolved its session so callers can retry without losing context.
type Error struct {
	Code      Code
	Status    int
	Message   string
	SessionID string
	Err       error // underlying cause; surfaced only in development mode
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with the given code, HTTP status and message.
func New(code Code, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// WithSession returns e with the session id attached when not already set.
func (e *Error) WithSession(id string) *Error {
	if e.SessionID == "" {
		e.SessionID = id
	}
	return e
}

// Classify maps an arbitrary failure from the turn pipeline to the taxonomy.
// Typed *Error values pass through with the session id attached; everything
// else is classified by inspecting the failure text, mirroring the status
// classes callers use to decide on retry.
func Classify(err error, sessionID string) *Error {
	var typed *Error
	if errors.As(err, &typed) && typed != nil {
		return typed.WithSession(sessionID)
	}

	out := &Error{
		Code:      CodeInternalError,
		Status:    http.StatusInternalServerError,
		Message:   "An internal server error occurred",
		SessionID: sessionID,
		Err:       err,
	}

	if errors.Is(err, context.DeadlineExceeded) {
		out.Code = CodeServiceUnavailable
		out.Status = http.StatusServiceUnavailable
		out.Message = "Service temporarily unavailable"
		return out
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "quota") || strings.Contains(msg, "limit"):
		out.Code = CodeQuotaExceeded
		out.Status = http.StatusTooManyRequests
		out.Message = "Service temporarily unavailable due to high demand"
	case strings.Contains(msg, "network") || strings.Contains(msg, "timeout"):
		out.Code = CodeServiceUnavailable
		out.Status = http.StatusServiceUnavailable
		out.Message = "Service temporarily unavailable"
	case strings.Contains(msg, "authentication") || strings.Contains(msg, "unauthorized"):
		out.Code = CodeAuthError
		out.Status = http.StatusUnauthorized
		out.Message = "Authentication failed"
	case strings.Contains(msg, "not initialized"):
		out.Code = CodeServiceStarting
		out.Status = http.StatusServiceUnavailable
		out.Message = "Service starting up. Please try again in a moment."
	}
	return out
}

// Envelope is the JSON body of every non-2xx response.
type Envelope struct {
	Error     string `json:"error"`
	Code      Code   `json:"code"`
	SessionID string `json:"sessionId,omitempty"`
	Details   string `json:"details,omitempty"`
}

// WriteJSON renders e as the standard error envelope. The underlying cause
// is included only when includeDetails is set (development mode).
func WriteJSON(w http.ResponseWriter, e *Error, includeDetails bool) {
	env := Envelope{
		Error:     e.Message,
		Code:      e.Code,
		SessionID: e.SessionID,
	}
	if includeDetails && e.Err != nil {
		env.Details = e.Err.Error()
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(env)
}
