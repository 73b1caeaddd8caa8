// Package session owns the presentation session: the login gate, slide
// navigation, the timed logout and the pitch summary held for the current slide.
//
// All mutations go through Controller methods. Network calls (credential check,
// pitch generation) run without the lock held; their results are applied only if
// the session is still in the state that issued them.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"pitch-deck/internal/events"
	"pitch-deck/internal/models"
)

// User-visible login errors
const (
	MsgInvalidCredentials = "Invalid Terminal ID or Access Key."
	MsgNetworkFailure     = "Authorization failed. Check network connection."
)

// DefaultLogoutDelay is how long the farewell screen stays up before the session resets.
const DefaultLogoutDelay = 10 * time.Second

var (
	ErrClosed                = errors.New("session closed")
	ErrLoginInFlight         = errors.New("login already in progress")
	ErrNotAvailable          = errors.New("operation not available in current state")
	ErrMissingCredentials    = errors.New("login id and access key are required")
	ErrCredentialMismatch    = errors.New("credential mismatch")
	ErrCredentialFetchFailed = errors.New("credential fetch failed")
	ErrNotAuthenticated      = errors.New("not authenticated")
	ErrSummaryInFlight       = errors.New("pitch summary already in progress")
	ErrSummaryDiscarded      = errors.New("pitch summary discarded")
	ErrUnknownIntent         = errors.New("unknown intent")
)

// Verifier checks a login pair
type Verifier interface {
	Verify(ctx context.Context, id, key string) (bool, error)
}

// Summarizer produces pitch text for a slide; it never fails
type Summarizer interface {
	Request(ctx context.Context, slide models.Slide) string
}

// Catalog is the read-only slide sequence
type Catalog interface {
	Len() int
	At(i int) (models.Slide, bool)
}

// Recorder stores completed login attempts
type Recorder interface {
	RecordAttempt(ctx context.Context, loginID string, outcome models.LoginOutcome) error
}

// Observer receives a snapshot after every state change
type Observer interface {
	SessionChanged(models.SessionSnapshot)
}

// Options holds the optional collaborators of a Controller
type Options struct {
	LogoutDelay time.Duration
	Scheduler   Scheduler
	Publisher   events.Publisher
	Recorder    Recorder
	Logger      *zap.Logger
}

// Controller is the single owner of session state
type Controller struct {
	catalog     Catalog
	verifier    Verifier
	summarizer  Summarizer
	scheduler   Scheduler
	publisher   events.Publisher
	recorder    Recorder
	logger      *zap.Logger
	logoutDelay time.Duration

	mu          sync.Mutex
	state       models.SessionState
	index       int
	direction   models.Direction
	loginID     string
	password    string
	errMsg      string
	summary     string
	generating  bool
	pitchToken  uint64
	navSeq      uint64
	logoutSeq   uint64
	logoutTimer Timer
	version     uint64
	closed      bool
	observers   []Observer
}

// NewController creates a controller in the unauthenticated state
func NewController(catalog Catalog, verifier Verifier, summarizer Summarizer, opts Options) *Controller {
	if opts.Scheduler == nil {
		opts.Scheduler = RealScheduler{}
	}
	if opts.Publisher == nil {
		opts.Publisher = &events.NoopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.LogoutDelay < 0 {
		opts.LogoutDelay = 0
	}
	return &Controller{
		catalog:     catalog,
		verifier:    verifier,
		summarizer:  summarizer,
		scheduler:   opts.Scheduler,
		publisher:   opts.Publisher,
		recorder:    opts.Recorder,
		logger:      opts.Logger,
		logoutDelay: opts.LogoutDelay,
		state:       models.StateUnauthenticated,
		direction:   models.DirectionForward,
	}
}

// AddObserver registers o for snapshots of subsequent changes
func (c *Controller) AddObserver(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// Snapshot returns the current session view
func (c *Controller) Snapshot() models.SessionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Submit runs the login gate for (id, key). Only one submission can be in
// flight; the verifier is called without the lock held.
func (c *Controller) Submit(ctx context.Context, id, key string) (models.SessionSnapshot, error) {
	c.mu.Lock()
	if err := c.loginAllowedLocked(); err != nil {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, err
	}
	if strings.TrimSpace(id) == "" || strings.TrimSpace(key) == "" {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, ErrMissingCredentials
	}

	c.state = models.StateAuthenticating
	c.loginID = id
	c.password = key
	c.errMsg = ""
	snap := c.commitLocked()
	c.mu.Unlock()
	c.notify(snap)

	c.logger.Info("Login submitted", zap.String("login_id", id))
	ok, verifyErr := c.verifier.Verify(ctx, id, key)

	c.mu.Lock()
	if c.closed || c.state != models.StateAuthenticating {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, ErrClosed
	}

	var (
		outcome models.LoginOutcome
		result  error
	)
	switch {
	case verifyErr != nil:
		c.state = models.StateUnauthenticated
		c.errMsg = MsgNetworkFailure
		outcome = models.OutcomeFetchFailed
		result = fmt.Errorf("%w: %v", ErrCredentialFetchFailed, verifyErr)
	case !ok:
		c.state = models.StateUnauthenticated
		c.errMsg = MsgInvalidCredentials
		outcome = models.OutcomeMismatch
		result = ErrCredentialMismatch
	default:
		c.state = models.StateAuthenticated
		c.index = 0
		c.direction = models.DirectionForward
		c.errMsg = ""
		c.summary = ""
		outcome = models.OutcomeAccepted
	}
	snap = c.commitLocked()
	c.mu.Unlock()
	c.notify(snap)

	c.record(ctx, id, outcome)
	if result != nil {
		c.logger.Info("Login rejected", zap.String("login_id", id), zap.String("outcome", string(outcome)))
		c.publish(events.TopicLoginRejected, events.LoginRejected{LoginID: id, Outcome: outcome})
	} else {
		c.logger.Info("Login accepted", zap.String("login_id", id))
		c.publish(events.TopicLoginAccepted, events.LoginAccepted{LoginID: id})
	}
	return snap, result
}

func (c *Controller) loginAllowedLocked() error {
	if c.closed {
		return ErrClosed
	}
	switch c.state {
	case models.StateUnauthenticated:
		return nil
	case models.StateAuthenticating:
		return ErrLoginInFlight
	default:
		return ErrNotAvailable
	}
}

// Advance moves to the next slide. It reports false when nothing changed.
func (c *Controller) Advance() (models.SessionSnapshot, bool) {
	return c.navigate(func(i int) int { return i + 1 })
}

// Retreat moves to the previous slide. It reports false when nothing changed.
func (c *Controller) Retreat() (models.SessionSnapshot, bool) {
	return c.navigate(func(i int) int { return i - 1 })
}

// GoTo jumps to index. Direction follows the relative position of the target.
func (c *Controller) GoTo(index int) (models.SessionSnapshot, bool) {
	return c.navigate(func(int) int { return index })
}

func (c *Controller) navigate(target func(current int) int) (models.SessionSnapshot, bool) {
	c.mu.Lock()
	if c.closed || c.state != models.StateAuthenticated {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, false
	}

	from := c.index
	to := target(from)
	if to == from || to < 0 || to >= c.catalog.Len() {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, false
	}

	if to > from {
		c.direction = models.DirectionForward
	} else {
		c.direction = models.DirectionBackward
	}
	c.index = to
	c.summary = ""
	c.navSeq++
	snap := c.commitLocked()
	c.mu.Unlock()
	c.notify(snap)

	slide, _ := c.catalog.At(to)
	c.logger.Debug("Slide changed", zap.Int("from", from), zap.Int("to", to), zap.String("slide", slide.ID))
	c.publish(events.TopicSlideChanged, events.SlideChanged{
		From:      from,
		To:        to,
		SlideID:   slide.ID,
		Direction: snap.Direction,
	})
	return snap, true
}

// Logout switches to the farewell state and schedules the reset.
// It reports false when the session was not authenticated.
func (c *Controller) Logout() (models.SessionSnapshot, bool) {
	c.mu.Lock()
	if c.closed || c.state != models.StateAuthenticated {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, false
	}

	c.state = models.StateLoggingOut
	c.generating = false
	c.pitchToken++
	c.logoutSeq++
	seq := c.logoutSeq
	c.logoutTimer = c.scheduler.AfterFunc(c.logoutDelay, func() { c.completeLogout(seq) })
	loginID := c.loginID
	snap := c.commitLocked()
	c.mu.Unlock()
	c.notify(snap)

	c.logger.Info("Logout started", zap.String("login_id", loginID), zap.Duration("delay", c.logoutDelay))
	c.publish(events.TopicLogoutStarted, events.LogoutStarted{
		LoginID: loginID,
		DelayMS: c.logoutDelay.Milliseconds(),
	})
	return snap, true
}

func (c *Controller) completeLogout(seq uint64) {
	c.mu.Lock()
	if c.closed || c.state != models.StateLoggingOut || c.logoutSeq != seq {
		c.mu.Unlock()
		return
	}

	c.state = models.StateUnauthenticated
	c.index = 0
	c.direction = models.DirectionForward
	c.loginID = ""
	c.password = ""
	c.errMsg = ""
	c.summary = ""
	c.generating = false
	c.logoutTimer = nil
	snap := c.commitLocked()
	c.mu.Unlock()
	c.notify(snap)

	c.logger.Info("Session reset")
	c.publish(events.TopicSessionReset, events.SessionReset{})
}

// RequestSummary asks for a pitch summary of the current slide and holds the
// result. The result is dropped if the slide changed or a logout started
// while it was being generated.
func (c *Controller) RequestSummary(ctx context.Context) (models.SessionSnapshot, error) {
	c.mu.Lock()
	if c.closed {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, ErrClosed
	}
	if c.state != models.StateAuthenticated {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, ErrNotAuthenticated
	}
	if c.generating {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, ErrSummaryInFlight
	}
	slide, ok := c.catalog.At(c.index)
	if !ok {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, ErrNotAvailable
	}

	c.generating = true
	c.pitchToken++
	token, nav := c.pitchToken, c.navSeq
	snap := c.commitLocked()
	c.mu.Unlock()
	c.notify(snap)

	text := c.summarizer.Request(ctx, slide)

	c.mu.Lock()
	if c.pitchToken != token {
		// a logout (or teardown) has already cleared the busy flag
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.logger.Debug("Pitch summary dropped after logout", zap.String("slide", slide.ID))
		c.publish(events.TopicPitchGenerated, events.PitchGenerated{SlideID: slide.ID})
		return snap, ErrSummaryDiscarded
	}

	c.generating = false
	applied := !c.closed && c.state == models.StateAuthenticated && c.navSeq == nav
	if applied {
		c.summary = text
	}
	snap = c.commitLocked()
	c.mu.Unlock()
	c.notify(snap)

	c.publish(events.TopicPitchGenerated, events.PitchGenerated{SlideID: slide.ID, Applied: applied})
	if !applied {
		c.logger.Debug("Pitch summary dropped after navigation", zap.String("slide", slide.ID))
		return snap, ErrSummaryDiscarded
	}
	return snap, nil
}

// DismissSummary discards the held pitch summary
func (c *Controller) DismissSummary() (models.SessionSnapshot, bool) {
	c.mu.Lock()
	if c.closed || c.summary == "" {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, false
	}
	c.summary = ""
	snap := c.commitLocked()
	c.mu.Unlock()
	c.notify(snap)
	return snap, true
}

// Close cancels a pending logout reset. No state changes after Close.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.pitchToken++
	if c.logoutTimer != nil {
		c.logoutTimer.Stop()
		c.logoutTimer = nil
	}
}

// snapshotLocked must be called with mu held
func (c *Controller) snapshotLocked() models.SessionSnapshot {
	return models.SessionSnapshot{
		State:             c.state,
		Authenticated:     c.state == models.StateAuthenticated,
		Authenticating:    c.state == models.StateAuthenticating,
		LoggingOut:        c.state == models.StateLoggingOut,
		CurrentSlideIndex: c.index,
		SlideCount:        c.catalog.Len(),
		Direction:         c.direction,
		LoginID:           c.loginID,
		Error:             c.errMsg,
		PitchSummary:      c.summary,
		GeneratingPitch:   c.generating,
		Version:           c.version,
	}
}

// commitLocked bumps the version and returns the new snapshot; mu must be held
func (c *Controller) commitLocked() models.SessionSnapshot {
	c.version++
	return c.snapshotLocked()
}

func (c *Controller) notify(snap models.SessionSnapshot) {
	c.mu.Lock()
	observers := append([]Observer(nil), c.observers...)
	c.mu.Unlock()
	for _, o := range observers {
		o.SessionChanged(snap)
	}
}

func (c *Controller) publish(topic string, event any) {
	if err := c.publisher.Publish(context.Background(), topic, event); err != nil {
		c.logger.Warn("Failed to publish event", zap.String("topic", topic), zap.Error(err))
	}
}

func (c *Controller) record(ctx context.Context, loginID string, outcome models.LoginOutcome) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordAttempt(context.WithoutCancel(ctx), loginID, outcome); err != nil {
		c.logger.Warn("Failed to record login attempt", zap.String("login_id", loginID), zap.Error(err))
	}
}
