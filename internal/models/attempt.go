package models

import "time"

// LoginOutcome is the result of a completed login attempt
type LoginOutcome string

const (
	OutcomeAccepted    LoginOutcome = "accepted"
	OutcomeMismatch    LoginOutcome = "mismatch"
	OutcomeFetchFailed LoginOutcome = "fetch_failed"
)

// LoginAttempt represents one audited login attempt
type LoginAttempt struct {
	ID          string       `json:"id"`
	LoginID     string       `json:"loginId"`
	Outcome     LoginOutcome `json:"outcome"`
	AttemptedAt time.Time    `json:"attemptedAt"`
}
