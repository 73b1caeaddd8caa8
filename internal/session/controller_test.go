package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"pitch-deck/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- fakes ---

type fakeCatalog struct {
	slides []models.Slide
}

func newFakeCatalog(n int) *fakeCatalog {
	c := &fakeCatalog{}
	for i := 0; i < n; i++ {
		c.slides = append(c.slides, models.Slide{
			ID:       fmt.Sprintf("page-%d", i+1),
			Title:    fmt.Sprintf("Slide %d", i+1),
			Subtitle: fmt.Sprintf("Subtitle %d", i+1),
			Theme:    models.ThemeDark,
		})
	}
	return c
}

func (c *fakeCatalog) Len() int { return len(c.slides) }

func (c *fakeCatalog) At(i int) (models.Slide, bool) {
	if i < 0 || i >= len(c.slides) {
		return models.Slide{}, false
	}
	return c.slides[i], true
}

type fakeVerifier struct {
	mu      sync.Mutex
	rows    map[string]string
	err     error
	release chan struct{}
	entered chan struct{}
	calls   int
}

func (v *fakeVerifier) Verify(ctx context.Context, id, key string) (bool, error) {
	v.mu.Lock()
	v.calls++
	release, entered := v.release, v.entered
	v.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}
	if v.err != nil {
		return false, v.err
	}
	want, ok := v.rows[id]
	return ok && want == key, nil
}

type fakeSummarizer struct {
	text    string
	release chan struct{}
	entered chan struct{}
	slides  []string
}

func (s *fakeSummarizer) Request(ctx context.Context, slide models.Slide) string {
	s.slides = append(s.slides, slide.ID)
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	return s.text
}

type fakeTimer struct {
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeScheduler struct {
	mu      sync.Mutex
	delays  []time.Duration
	pending []func()
	timers  []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{}
	s.delays = append(s.delays, d)
	s.pending = append(s.pending, f)
	s.timers = append(s.timers, t)
	return t
}

// fire runs every scheduled callback whose timer was not stopped
func (s *fakeScheduler) fire() {
	s.mu.Lock()
	pending, timers := s.pending, s.timers
	s.pending, s.timers = nil, nil
	s.mu.Unlock()
	for i, f := range pending {
		if !timers[i].stopped {
			f()
		}
	}
}

type recordingObserver struct {
	mu    sync.Mutex
	snaps []models.SessionSnapshot
}

func (o *recordingObserver) SessionChanged(s models.SessionSnapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.snaps = append(o.snaps, s)
}

type attempt struct {
	loginID string
	outcome models.LoginOutcome
}

type recordingRecorder struct {
	attempts []attempt
}

func (r *recordingRecorder) RecordAttempt(ctx context.Context, loginID string, outcome models.LoginOutcome) error {
	r.attempts = append(r.attempts, attempt{loginID, outcome})
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type harness struct {
	ctrl       *Controller
	verifier   *fakeVerifier
	summarizer *fakeSummarizer
	scheduler  *fakeScheduler
	recorder   *recordingRecorder
	publisher  *recordingPublisher
	observer   *recordingObserver
}

func newHarness(t *testing.T, slides int) *harness {
	t.Helper()
	h := &harness{
		verifier:   &fakeVerifier{rows: map[string]string{"alice": "s3cr3t"}},
		summarizer: &fakeSummarizer{text: "Pitch it."},
		scheduler:  &fakeScheduler{},
		recorder:   &recordingRecorder{},
		publisher:  &recordingPublisher{},
		observer:   &recordingObserver{},
	}
	h.ctrl = NewController(newFakeCatalog(slides), h.verifier, h.summarizer, Options{
		LogoutDelay: DefaultLogoutDelay,
		Scheduler:   h.scheduler,
		Publisher:   h.publisher,
		Recorder:    h.recorder,
		Logger:      zaptest.NewLogger(t),
	})
	h.ctrl.AddObserver(h.observer)
	t.Cleanup(h.ctrl.Close)
	return h
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	_, err := h.ctrl.Submit(context.Background(), "alice", "s3cr3t")
	require.NoError(t, err)
}

// --- login ---

func TestNewController_Initial(t *testing.T) {
	h := newHarness(t, 8)
	snap := h.ctrl.Snapshot()

	assert.Equal(t, models.StateUnauthenticated, snap.State)
	assert.False(t, snap.Authenticated)
	assert.False(t, snap.LoggingOut)
	assert.Equal(t, 0, snap.CurrentSlideIndex)
	assert.Equal(t, 8, snap.SlideCount)
	assert.Equal(t, models.DirectionForward, snap.Direction)
	assert.Empty(t, snap.Error)
}

func TestSubmit_Success(t *testing.T) {
	h := newHarness(t, 8)

	snap, err := h.ctrl.Submit(context.Background(), "alice", "s3cr3t")
	require.NoError(t, err)

	assert.True(t, snap.Authenticated)
	assert.Equal(t, models.StateAuthenticated, snap.State)
	assert.Equal(t, 0, snap.CurrentSlideIndex)
	assert.Equal(t, models.DirectionForward, snap.Direction)
	assert.Equal(t, "alice", snap.LoginID)
	assert.Empty(t, snap.Error)

	assert.Equal(t, []attempt{{"alice", models.OutcomeAccepted}}, h.recorder.attempts)
	assert.Contains(t, h.publisher.topics, "deck.session.login_accepted")
}

func TestSubmit_Mismatch(t *testing.T) {
	h := newHarness(t, 8)

	snap, err := h.ctrl.Submit(context.Background(), "nope", "nope")
	require.ErrorIs(t, err, ErrCredentialMismatch)

	assert.Equal(t, models.StateUnauthenticated, snap.State)
	assert.False(t, snap.Authenticated)
	assert.Equal(t, "Invalid Terminal ID or Access Key.", snap.Error)
	assert.Equal(t, []attempt{{"nope", models.OutcomeMismatch}}, h.recorder.attempts)
}

func TestSubmit_FetchFailure(t *testing.T) {
	h := newHarness(t, 8)
	h.verifier.err = errors.New("dial tcp: connection refused")

	snap, err := h.ctrl.Submit(context.Background(), "alice", "s3cr3t")
	require.ErrorIs(t, err, ErrCredentialFetchFailed)
	assert.NotErrorIs(t, err, ErrCredentialMismatch)

	assert.Equal(t, models.StateUnauthenticated, snap.State)
	assert.Equal(t, "Authorization failed. Check network connection.", snap.Error)
	assert.NotEqual(t, MsgInvalidCredentials, snap.Error)
	assert.Equal(t, []attempt{{"alice", models.OutcomeFetchFailed}}, h.recorder.attempts)
}

func TestSubmit_ClearsPreviousError(t *testing.T) {
	h := newHarness(t, 8)

	_, err := h.ctrl.Submit(context.Background(), "nope", "nope")
	require.Error(t, err)

	h.login(t)
	assert.Empty(t, h.ctrl.Snapshot().Error)
}

func TestSubmit_MissingCredentials(t *testing.T) {
	h := newHarness(t, 8)

	_, err := h.ctrl.Submit(context.Background(), "  ", "s3cr3t")
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.Equal(t, 0, h.verifier.calls)
	assert.Equal(t, models.StateUnauthenticated, h.ctrl.Snapshot().State)
}

func TestSubmit_SingleFlight(t *testing.T) {
	h := newHarness(t, 8)
	h.verifier.release = make(chan struct{})
	h.verifier.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.Submit(context.Background(), "alice", "s3cr3t")
		done <- err
	}()
	<-h.verifier.entered

	snap := h.ctrl.Snapshot()
	assert.Equal(t, models.StateAuthenticating, snap.State)
	assert.True(t, snap.Authenticating)

	_, err := h.ctrl.Submit(context.Background(), "alice", "s3cr3t")
	assert.ErrorIs(t, err, ErrLoginInFlight)

	close(h.verifier.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, h.verifier.calls)
	assert.True(t, h.ctrl.Snapshot().Authenticated)
}

func TestSubmit_NotAvailableWhenAuthenticated(t *testing.T) {
	h := newHarness(t, 8)
	h.login(t)

	_, err := h.ctrl.Submit(context.Background(), "alice", "s3cr3t")
	assert.ErrorIs(t, err, ErrNotAvailable)

	h.ctrl.Logout()
	_, err = h.ctrl.Submit(context.Background(), "alice", "s3cr3t")
	assert.ErrorIs(t, err, ErrNotAvailable)
}

func TestSubmit_ResultDiscardedAfterClose(t *testing.T) {
	h := newHarness(t, 8)
	h.verifier.release = make(chan struct{})
	h.verifier.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.Submit(context.Background(), "alice", "s3cr3t")
		done <- err
	}()
	<-h.verifier.entered
	h.ctrl.Close()
	close(h.verifier.release)

	assert.ErrorIs(t, <-done, ErrClosed)
	assert.Equal(t, models.StateAuthenticating, h.ctrl.Snapshot().State)
	assert.Empty(t, h.recorder.attempts)
}

// --- navigation ---

func TestAdvance_AllIndices(t *testing.T) {
	const n = 8
	for i := 0; i < n; i++ {
		t.Run(fmt.Sprintf("index %d", i), func(t *testing.T) {
			h := newHarness(t, n)
			h.login(t)
			if i > 0 {
				_, moved := h.ctrl.GoTo(i)
				require.True(t, moved)
			}
			before := h.ctrl.Snapshot()

			snap, moved := h.ctrl.Advance()
			if i < n-1 {
				assert.True(t, moved)
				assert.Equal(t, i+1, snap.CurrentSlideIndex)
				assert.Equal(t, models.DirectionForward, snap.Direction)
			} else {
				assert.False(t, moved)
				assert.Equal(t, before, snap)
			}
		})
	}
}

func TestRetreat_AllIndices(t *testing.T) {
	const n = 8
	for i := 0; i < n; i++ {
		t.Run(fmt.Sprintf("index %d", i), func(t *testing.T) {
			h := newHarness(t, n)
			h.login(t)
			if i > 0 {
				_, moved := h.ctrl.GoTo(i)
				require.True(t, moved)
			}
			before := h.ctrl.Snapshot()

			snap, moved := h.ctrl.Retreat()
			if i > 0 {
				assert.True(t, moved)
				assert.Equal(t, i-1, snap.CurrentSlideIndex)
				assert.Equal(t, models.DirectionBackward, snap.Direction)
			} else {
				assert.False(t, moved)
				assert.Equal(t, before, snap)
			}
		})
	}
}

func TestAdvance_IdempotentAtEnd(t *testing.T) {
	h := newHarness(t, 3)
	h.login(t)
	h.ctrl.Advance()
	h.ctrl.Retreat()
	h.ctrl.Advance()
	h.ctrl.Advance()

	atEnd := h.ctrl.Snapshot()
	require.Equal(t, 2, atEnd.CurrentSlideIndex)

	for i := 0; i < 5; i++ {
		snap, moved := h.ctrl.Advance()
		assert.False(t, moved)
		assert.Equal(t, atEnd, snap)
	}
}

func TestNavigation_IgnoredWhenNotAuthenticated(t *testing.T) {
	h := newHarness(t, 8)

	_, moved := h.ctrl.Advance()
	assert.False(t, moved)
	_, moved = h.ctrl.GoTo(3)
	assert.False(t, moved)
	assert.Equal(t, 0, h.ctrl.Snapshot().CurrentSlideIndex)
	assert.Empty(t, h.observer.snaps)
}

func TestGoTo(t *testing.T) {
	h := newHarness(t, 8)
	h.login(t)

	snap, moved := h.ctrl.GoTo(5)
	assert.True(t, moved)
	assert.Equal(t, 5, snap.CurrentSlideIndex)
	assert.Equal(t, models.DirectionForward, snap.Direction)

	snap, moved = h.ctrl.GoTo(1)
	assert.True(t, moved)
	assert.Equal(t, models.DirectionBackward, snap.Direction)

	for _, idx := range []int{1, -1, 8} {
		_, moved = h.ctrl.GoTo(idx)
		assert.False(t, moved, "GoTo(%d)", idx)
	}
	assert.Equal(t, 1, h.ctrl.Snapshot().CurrentSlideIndex)
}

func TestNavigation_ClearsSummary(t *testing.T) {
	h := newHarness(t, 8)
	h.login(t)

	snap, err := h.ctrl.RequestSummary(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Pitch it.", snap.PitchSummary)

	snap, _ = h.ctrl.Advance()
	assert.Empty(t, snap.PitchSummary)

	_, err = h.ctrl.RequestSummary(context.Background())
	require.NoError(t, err)
	snap, _ = h.ctrl.Retreat()
	assert.Empty(t, snap.PitchSummary)
}

// --- logout ---

func TestLogout_Flow(t *testing.T) {
	h := newHarness(t, 8)
	h.login(t)
	h.ctrl.GoTo(4)

	snap, ok := h.ctrl.Logout()
	require.True(t, ok)
	assert.Equal(t, models.StateLoggingOut, snap.State)
	assert.True(t, snap.LoggingOut)
	assert.False(t, snap.Authenticated)
	require.Equal(t, []time.Duration{DefaultLogoutDelay}, h.scheduler.delays)

	// navigation and login are unavailable while the farewell screen is up
	_, moved := h.ctrl.Advance()
	assert.False(t, moved)
	_, moved = h.ctrl.Retreat()
	assert.False(t, moved)
	_, err := h.ctrl.Submit(context.Background(), "alice", "s3cr3t")
	assert.ErrorIs(t, err, ErrNotAvailable)
	_, ok = h.ctrl.Logout()
	assert.False(t, ok)
	assert.Equal(t, 4, h.ctrl.Snapshot().CurrentSlideIndex)

	h.scheduler.fire()

	snap = h.ctrl.Snapshot()
	assert.Equal(t, models.StateUnauthenticated, snap.State)
	assert.False(t, snap.LoggingOut)
	assert.Equal(t, 0, snap.CurrentSlideIndex)
	assert.Equal(t, models.DirectionForward, snap.Direction)
	assert.Empty(t, snap.LoginID)
	assert.Empty(t, snap.Error)

	h.ctrl.mu.Lock()
	assert.Empty(t, h.ctrl.password)
	h.ctrl.mu.Unlock()

	assert.Contains(t, h.publisher.topics, "deck.session.logout_started")
	assert.Contains(t, h.publisher.topics, "deck.session.reset")
}

func TestLogout_IgnoredWhenUnauthenticated(t *testing.T) {
	h := newHarness(t, 8)

	_, ok := h.ctrl.Logout()
	assert.False(t, ok)
	assert.Empty(t, h.scheduler.delays)
}

func TestLogout_CanLoginAgain(t *testing.T) {
	h := newHarness(t, 8)
	h.login(t)
	h.ctrl.Advance()
	h.ctrl.Logout()
	h.scheduler.fire()

	h.login(t)
	snap := h.ctrl.Snapshot()
	assert.True(t, snap.Authenticated)
	assert.Equal(t, 0, snap.CurrentSlideIndex)
}

func TestClose_CancelsPendingLogout(t *testing.T) {
	h := newHarness(t, 8)
	h.login(t)
	h.ctrl.Logout()

	h.ctrl.Close()
	require.Len(t, h.scheduler.timers, 1)
	assert.True(t, h.scheduler.timers[0].stopped)

	// a callback that raced past Stop must not mutate state
	h.ctrl.completeLogout(h.ctrl.logoutSeq)
	assert.Equal(t, models.StateLoggingOut, h.ctrl.Snapshot().State)
}

func TestLogout_RealScheduler(t *testing.T) {
	ctrl := NewController(newFakeCatalog(3), &fakeVerifier{rows: map[string]string{"a": "b"}}, &fakeSummarizer{}, Options{
		LogoutDelay: 10 * time.Millisecond,
		Logger:      zap.NewNop(),
	})
	defer ctrl.Close()

	_, err := ctrl.Submit(context.Background(), "a", "b")
	require.NoError(t, err)
	ctrl.Advance()
	ctrl.Logout()

	require.Eventually(t, func() bool {
		return ctrl.Snapshot().State == models.StateUnauthenticated
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, ctrl.Snapshot().CurrentSlideIndex)
}

func TestClose_RealSchedulerStopsTimer(t *testing.T) {
	ctrl := NewController(newFakeCatalog(3), &fakeVerifier{rows: map[string]string{"a": "b"}}, &fakeSummarizer{}, Options{
		LogoutDelay: time.Hour,
	})
	_, err := ctrl.Submit(context.Background(), "a", "b")
	require.NoError(t, err)
	ctrl.Logout()
	ctrl.Close()

	assert.Equal(t, models.StateLoggingOut, ctrl.Snapshot().State)
}

// --- pitch summary ---

func TestRequestSummary_Success(t *testing.T) {
	h := newHarness(t, 8)
	h.login(t)
	h.ctrl.GoTo(2)

	snap, err := h.ctrl.RequestSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Pitch it.", snap.PitchSummary)
	assert.False(t, snap.GeneratingPitch)
	assert.Equal(t, []string{"page-3"}, h.summarizer.slides)
}

func TestRequestSummary_FallbackTextIsHeld(t *testing.T) {
	h := newHarness(t, 8)
	h.summarizer.text = "Could not generate pitch script at this moment."
	h.login(t)

	snap, err := h.ctrl.RequestSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Could not generate pitch script at this moment.", snap.PitchSummary)
}

func TestRequestSummary_NotAuthenticated(t *testing.T) {
	h := newHarness(t, 8)

	_, err := h.ctrl.RequestSummary(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Empty(t, h.summarizer.slides)
}

func TestRequestSummary_SingleFlight(t *testing.T) {
	h := newHarness(t, 8)
	h.login(t)
	h.summarizer.release = make(chan struct{})
	h.summarizer.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.RequestSummary(context.Background())
		done <- err
	}()
	<-h.summarizer.entered

	assert.True(t, h.ctrl.Snapshot().GeneratingPitch)
	_, err := h.ctrl.RequestSummary(context.Background())
	assert.ErrorIs(t, err, ErrSummaryInFlight)

	close(h.summarizer.release)
	require.NoError(t, <-done)
	snap := h.ctrl.Snapshot()
	assert.False(t, snap.GeneratingPitch)
	assert.Equal(t, "Pitch it.", snap.PitchSummary)
}

func TestRequestSummary_DiscardedAfterNavigation(t *testing.T) {
	h := newHarness(t, 8)
	h.login(t)
	h.summarizer.release = make(chan struct{})
	h.summarizer.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.RequestSummary(context.Background())
		done <- err
	}()
	<-h.summarizer.entered
	h.ctrl.Advance()
	h.ctrl.Retreat()
	close(h.summarizer.release)

	assert.ErrorIs(t, <-done, ErrSummaryDiscarded)
	snap := h.ctrl.Snapshot()
	assert.Empty(t, snap.PitchSummary)
	assert.False(t, snap.GeneratingPitch)
}

func TestRequestSummary_DiscardedAfterLogout(t *testing.T) {
	h := newHarness(t, 8)
	h.login(t)
	h.summarizer.release = make(chan struct{})
	h.summarizer.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.RequestSummary(context.Background())
		done <- err
	}()
	<-h.summarizer.entered

	h.ctrl.Logout()
	h.scheduler.fire()
	h.login(t)
	close(h.summarizer.release)

	assert.ErrorIs(t, <-done, ErrSummaryDiscarded)
	snap := h.ctrl.Snapshot()
	assert.True(t, snap.Authenticated)
	assert.Empty(t, snap.PitchSummary)
	assert.False(t, snap.GeneratingPitch)
}

func TestDismissSummary(t *testing.T) {
	h := newHarness(t, 8)
	h.login(t)

	_, ok := h.ctrl.DismissSummary()
	assert.False(t, ok)

	_, err := h.ctrl.RequestSummary(context.Background())
	require.NoError(t, err)

	snap, ok := h.ctrl.DismissSummary()
	assert.True(t, ok)
	assert.Empty(t, snap.PitchSummary)
	assert.Equal(t, 0, snap.CurrentSlideIndex)
}

// --- observers ---

func TestObserver_VersionsIncrease(t *testing.T) {
	h := newHarness(t, 8)
	h.login(t)
	h.ctrl.Advance()
	h.ctrl.Advance() // moves
	h.ctrl.GoTo(2)   // no-op, no snapshot

	h.observer.mu.Lock()
	defer h.observer.mu.Unlock()
	require.Len(t, h.observer.snaps, 4)
	for i := 1; i < len(h.observer.snaps); i++ {
		assert.Greater(t, h.observer.snaps[i].Version, h.observer.snaps[i-1].Version)
	}
	assert.Equal(t, models.StateAuthenticating, h.observer.snaps[0].State)
	assert.Equal(t, 2, h.observer.snaps[3].CurrentSlideIndex)
}
