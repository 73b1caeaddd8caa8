package models

// SessionState is the state of the presentation session
type SessionState string

const (
	StateUnauthenticated SessionState = "unauthenticated"
	StateAuthenticating  SessionState = "authenticating"
	StateAuthenticated   SessionState = "authenticated"
	StateLoggingOut      SessionState = "logging_out"
)

// Direction is the direction of the last slide transition
type Direction string

const (
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
)

// SessionSnapshot is the read-only view of the session handed to renderers.
// The submitted password is never part of it.
type SessionSnapshot struct {
	State             SessionState `json:"state"`
	Authenticated     bool         `json:"authenticated"`
	Authenticating    bool         `json:"authenticating"`
	LoggingOut        bool         `json:"loggingOut"`
	CurrentSlideIndex int          `json:"currentSlideIndex"`
	SlideCount        int          `json:"slideCount"`
	Direction         Direction    `json:"direction"`
	LoginID           string       `json:"loginId"`
	Error             string       `json:"error,omitempty"`
	PitchSummary      string       `json:"pitchSummary,omitempty"`
	GeneratingPitch   bool         `json:"generatingPitch"`
	Version           uint64       `json:"version"`
}
