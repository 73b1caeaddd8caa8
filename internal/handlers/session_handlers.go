package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"pitch-deck/internal/models"
	"pitch-deck/internal/session"
)

const maxRequestBytes = 4096

// SessionController is the part of the session the HTTP surface drives
type SessionController interface {
	Snapshot() models.SessionSnapshot
	Submit(ctx context.Context, id, key string) (models.SessionSnapshot, error)
	Advance() (models.SessionSnapshot, bool)
	Retreat() (models.SessionSnapshot, bool)
	GoTo(index int) (models.SessionSnapshot, bool)
	Logout() (models.SessionSnapshot, bool)
	RequestSummary(ctx context.Context) (models.SessionSnapshot, error)
	DismissSummary() (models.SessionSnapshot, bool)
	Dispatch(ctx context.Context, in models.Intent) (models.SessionSnapshot, error)
}

// SessionHandler handles HTTP requests that drive the presentation session
type SessionHandler struct {
	controller SessionController
	logger     *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(controller SessionController, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{
		controller: controller,
		logger:     logger,
	}
}

// LoginRequest represents a login submission
type LoginRequest struct {
	LoginID  string `json:"loginId"`
	Password string `json:"password"`
}

// GoToRequest represents a jump to a slide index
type GoToRequest struct {
	Index *int `json:"index"`
}

// KeyRequest represents a raw key press from a renderer
type KeyRequest struct {
	Key string `json:"key"`
}

// SessionResponse is returned by every session endpoint
type SessionResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Changed bool                   `json:"changed"` // whether the request changed the session
	Session models.SessionSnapshot `json:"session"`
}

// GetSession returns the current snapshot
// GET /api/session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, SessionResponse{
		Success: true,
		Session: h.controller.Snapshot(),
	})
}

// Login runs the login gate
// POST /api/session/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	snap, err := h.controller.Submit(r.Context(), req.LoginID, req.Password)
	if err != nil {
		h.writeSessionError(w, snap, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, SessionResponse{Success: true, Changed: true, Session: snap})
}

// Advance moves to the next slide
// POST /api/session/advance
func (h *SessionHandler) Advance(w http.ResponseWriter, r *http.Request) {
	snap, changed := h.controller.Advance()
	h.writeNavigation(w, snap, changed)
}

// Retreat moves to the previous slide
// POST /api/session/retreat
func (h *SessionHandler) Retreat(w http.ResponseWriter, r *http.Request) {
	snap, changed := h.controller.Retreat()
	h.writeNavigation(w, snap, changed)
}

// GoTo jumps to a slide index
// POST /api/session/goto
func (h *SessionHandler) GoTo(w http.ResponseWriter, r *http.Request) {
	var req GoToRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Index == nil {
		http.Error(w, "index is required", http.StatusBadRequest)
		return
	}

	snap, changed := h.controller.GoTo(*req.Index)
	h.writeNavigation(w, snap, changed)
}

// Key applies a key press the way the renderer's keyboard listener would
// POST /api/session/key
func (h *SessionHandler) Key(w http.ResponseWriter, r *http.Request) {
	var req KeyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Key == "" {
		http.Error(w, "key is required", http.StatusBadRequest)
		return
	}

	before := h.controller.Snapshot()
	snap, err := h.controller.Dispatch(r.Context(), models.Intent{Type: models.IntentKey, Key: req.Key})
	if err != nil {
		h.writeSessionError(w, snap, err)
		return
	}
	h.writeNavigation(w, snap, snap.Version != before.Version)
}

// Logout starts the farewell screen and the delayed reset
// POST /api/session/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	snap, changed := h.controller.Logout()
	if !changed {
		h.writeSessionError(w, snap, session.ErrNotAuthenticated)
		return
	}
	writeJSON(w, h.logger, http.StatusAccepted, SessionResponse{Success: true, Changed: true, Session: snap})
}

// RequestPitch generates a pitch summary for the current slide
// POST /api/session/pitch
func (h *SessionHandler) RequestPitch(w http.ResponseWriter, r *http.Request) {
	snap, err := h.controller.RequestSummary(r.Context())
	if err != nil {
		h.writeSessionError(w, snap, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, SessionResponse{Success: true, Changed: true, Session: snap})
}

// DismissPitch discards the held pitch summary
// DELETE /api/session/pitch
func (h *SessionHandler) DismissPitch(w http.ResponseWriter, r *http.Request) {
	snap, changed := h.controller.DismissSummary()
	writeJSON(w, h.logger, http.StatusOK, SessionResponse{Success: true, Changed: changed, Session: snap})
}

func (h *SessionHandler) writeSessionError(w http.ResponseWriter, snap models.SessionSnapshot, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("Session request failed", zap.Int("status", status), zap.Error(err))
	}

	message := err.Error()
	if snap.Error != "" {
		message = snap.Error
	}
	writeJSON(w, h.logger, status, SessionResponse{Success: false, Message: message, Session: snap})
}

// statusForError maps session errors onto HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, session.ErrMissingCredentials), errors.Is(err, session.ErrUnknownIntent):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrCredentialMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, session.ErrNotAuthenticated):
		return http.StatusForbidden
	case errors.Is(err, session.ErrLoginInFlight),
		errors.Is(err, session.ErrNotAvailable),
		errors.Is(err, session.ErrSummaryInFlight),
		errors.Is(err, session.ErrSummaryDiscarded):
		return http.StatusConflict
	case errors.Is(err, session.ErrCredentialFetchFailed):
		return http.StatusBadGateway
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *SessionHandler) writeNavigation(w http.ResponseWriter, snap models.SessionSnapshot, changed bool) {
	writeJSON(w, h.logger, http.StatusOK, SessionResponse{Success: true, Changed: changed, Session: snap})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

// writeJSON encodes v before any header is written; encoding failures are a 500.
func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Error("Failed to encode response", zap.Int("status", status), zap.Error(err))
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		logger.Debug("Failed to write response", zap.Error(err))
	}
}
