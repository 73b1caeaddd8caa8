package handlers

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"pitch-deck/internal/models"
)

const maxAuditLimit = 500

// AttemptLister reads the login attempt audit
type AttemptLister interface {
	Recent(ctx context.Context, limit int) ([]*models.LoginAttempt, error)
	CountByOutcome(ctx context.Context) (map[models.LoginOutcome]int, error)
}

// AuditHandler exposes the login attempt audit
type AuditHandler struct {
	attempts AttemptLister
	logger   *zap.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(attempts AttemptLister, logger *zap.Logger) *AuditHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditHandler{attempts: attempts, logger: logger}
}

// AttemptsResponse represents recent attempts plus totals per outcome
type AttemptsResponse struct {
	Attempts []*models.LoginAttempt     `json:"attempts"`
	Counts   map[models.LoginOutcome]int `json:"counts"`
}

// ListAttempts returns recent login attempts, newest first
// GET /api/audit/attempts?limit=N
func (h *AuditHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxAuditLimit)
	}

	attempts, err := h.attempts.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list login attempts", zap.Error(err))
		http.Error(w, "Failed to list login attempts", http.StatusInternalServerError)
		return
	}
	counts, err := h.attempts.CountByOutcome(r.Context())
	if err != nil {
		h.logger.Error("Failed to count login attempts", zap.Error(err))
		http.Error(w, "Failed to count login attempts", http.StatusInternalServerError)
		return
	}

	// Always return an array, even if empty
	if attempts == nil {
		attempts = []*models.LoginAttempt{}
	}
	writeJSON(w, h.logger, http.StatusOK, AttemptsResponse{Attempts: attempts, Counts: counts})
}
