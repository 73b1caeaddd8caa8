package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pitch-deck/internal/models"
)

// AttemptLog stores completed login attempts. The submitted key is never stored.
type AttemptLog struct {
	database *sql.DB
	logger   *zap.Logger
	now      func() time.Time
}

// NewAttemptLog creates a new attempt log over an initialized database
func NewAttemptLog(database *sql.DB, logger *zap.Logger) *AttemptLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttemptLog{
		database: database,
		logger:   logger,
		now:      time.Now,
	}
}

// RecordAttempt stores one attempt
func (al *AttemptLog) RecordAttempt(ctx context.Context, loginID string, outcome models.LoginOutcome) error {
	id := uuid.NewString()
	query := `INSERT INTO login_attempts (id, login_id, outcome, attempted_at) VALUES (?, ?, ?, ?)`

	if _, err := al.database.ExecContext(ctx, query, id, loginID, string(outcome), al.now().UTC()); err != nil {
		return fmt.Errorf("failed to insert login attempt: %w", err)
	}

	al.logger.Debug("Login attempt recorded",
		zap.String("id", id),
		zap.String("login_id", loginID),
		zap.String("outcome", string(outcome)))
	return nil
}

// Recent returns up to limit attempts, newest first
func (al *AttemptLog) Recent(ctx context.Context, limit int) ([]*models.LoginAttempt, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, login_id, outcome, attempted_at
		FROM login_attempts ORDER BY attempted_at DESC, rowid DESC LIMIT ?`

	rows, err := al.database.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query login attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*models.LoginAttempt
	for rows.Next() {
		var attempt models.LoginAttempt
		var outcome string

		if err := rows.Scan(&attempt.ID, &attempt.LoginID, &outcome, &attempt.AttemptedAt); err != nil {
			return nil, fmt.Errorf("failed to scan login attempt: %w", err)
		}
		attempt.Outcome = models.LoginOutcome(outcome)
		attempts = append(attempts, &attempt)
	}

	return attempts, rows.Err()
}

// CountByOutcome returns the number of stored attempts per outcome
func (al *AttemptLog) CountByOutcome(ctx context.Context) (map[models.LoginOutcome]int, error) {
	rows, err := al.database.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM login_attempts GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("failed to count login attempts: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.LoginOutcome]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan login attempt count: %w", err)
		}
		counts[models.LoginOutcome(outcome)] = n
	}

	return counts, rows.Err()
}
