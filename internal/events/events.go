package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pitch-deck/internal/models"
)

// Event topic constants
const (
	TopicLoginAccepted  = "deck.session.login_accepted"
	TopicLoginRejected  = "deck.session.login_rejected"
	TopicSlideChanged   = "deck.session.slide_changed"
	TopicLogoutStarted  = "deck.session.logout_started"
	TopicSessionReset   = "deck.session.reset"
	TopicPitchGenerated = "deck.pitch.generated"
)

// Envelope wraps every published payload
type Envelope struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// NewEnvelope stamps payload with a fresh id and the current time
func NewEnvelope(payload any) Envelope {
	return Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// Event types

type LoginAccepted struct {
	LoginID string `json:"login_id"`
}

type LoginRejected struct {
	LoginID string              `json:"login_id"`
	Outcome models.LoginOutcome `json:"outcome"`
}

type SlideChanged struct {
	From      int              `json:"from"`
	To        int              `json:"to"`
	SlideID   string           `json:"slide_id"`
	Direction models.Direction `json:"direction"`
}

type LogoutStarted struct {
	LoginID string `json:"login_id"`
	DelayMS int64  `json:"delay_ms"`
}

type SessionReset struct{}

type PitchGenerated struct {
	SlideID string `json:"slide_id"`
	Applied bool   `json:"applied"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
