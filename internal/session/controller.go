package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/therealutkarshpriyadarshi/seatback/internal/config"
	"github.com/therealutkarshpriyadarshi/seatback/internal/logging"
	"github.com/therealutkarshpriyadarshi/seatback/internal/metrics"
)

var (
	// ErrCapacityExceeded is returned when the concurrent-session ceiling
	// has been reached. Existing sessions are unaffected.
	ErrCapacityExceeded = errors.New("concurrent session capacity exceeded")

	// ErrSessionNotFound is returned for unknown or already-ended sessions
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoAdPending is returned when beginAd is called outside an ad break
	ErrNoAdPending = errors.New("no advertisement break pending")
)

// State is a playback session state
type State string

// Session states
const (
	StatePlaying   State = "playing"
	StateAdPending State = "ad_pending"
	StateAdPlaying State = "ad_playing"
	StateEnded     State = "ended"
)

// AdDecision tells the delivery layer how to run an ad break.
type AdDecision struct {
	DurationSeconds float64 `json:"duration_seconds"`
	SkippableAfter  float64 `json:"skippable_after_seconds"`
}

// Session is one viewer's playback state machine. Field access goes through
// the controller, which locks per session; sessions are independent of each
// other and share only the global live counter.
type Session struct {
	mu sync.Mutex

	ID      string
	AssetID string
	State   State

	Elapsed   float64 // cumulative playback seconds
	AdsShown  int
	adStarted time.Time
	adBytes   int64 // ad asset bytes already delivered in the current break

	lastSeen time.Time
}

// Controller owns every playback session and the global concurrency ceiling.
// It is an explicit registry passed by handle to the delivery and control
// paths, not ambient process state.
type Controller struct {
	ads         config.AdsConfig
	maxSessions int
	idleTimeout time.Duration
	log         *logging.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	live     int
}

// NewController creates a session controller with the given immutable ad
// schedule and capacity settings.
func NewController(ads config.AdsConfig, delivery config.DeliveryConfig, log *logging.Logger) *Controller {
	return &Controller{
		ads:         ads,
		maxSessions: delivery.MaxSessions,
		idleTimeout: delivery.IdleTimeout,
		log:         log,
		sessions:    make(map[string]*Session),
	}
}

// StartSession allocates a new session for the asset, or fails with
// ErrCapacityExceeded when the ceiling is reached.
func (c *Controller) StartSession(assetID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.live >= c.maxSessions {
		metrics.RecordSessionStarted(false)
		return "", fmt.Errorf("%d live sessions: %w", c.live, ErrCapacityExceeded)
	}

	s := &Session{
		ID:       uuid.New().String(),
		AssetID:  assetID,
		State:    StatePlaying,
		lastSeen: time.Now(),
	}
	c.sessions[s.ID] = s
	c.live++

	metrics.RecordSessionStarted(true)
	c.log.WithSessionID(s.ID).WithAssetID(assetID).Infof("session started (%d/%d live)", c.live, c.maxSessions)
	return s.ID, nil
}

// lookup returns the live session or ErrSessionNotFound.
func (c *Controller) lookup(sessionID string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", sessionID, ErrSessionNotFound)
	}
	return s, nil
}

// Advance accumulates elapsed playback time. When the cumulative time
// crosses the next ad threshold and mid-content ads are enabled, the session
// transitions to AdPending. A chunk landing exactly on the threshold counts
// as crossed: the ad decision takes precedence over content.
func (c *Controller) Advance(sessionID string, elapsedDelta float64) (State, error) {
	s, err := c.lookup(sessionID)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State == StateEnded {
		return StateEnded, nil
	}

	s.lastSeen = time.Now()
	if elapsedDelta > 0 {
		s.Elapsed += elapsedDelta
	}

	if s.State == StatePlaying && c.adDue(s) {
		s.State = StateAdPending
		c.log.LogAdBreak(s.ID, string(StateAdPending), s.AdsShown)
	}

	return s.State, nil
}

// adDue reports whether the session has crossed its next ad threshold. The
// first ad is due at Delay; each later one at the next Delay multiple, so an
// ad plays at most once per threshold.
func (c *Controller) adDue(s *Session) bool {
	if !c.ads.MidContent || c.ads.Delay <= 0 {
		return false
	}
	next := float64(s.AdsShown+1) * c.ads.Delay.Seconds()
	return s.Elapsed >= next
}

// State returns the session's current state.
func (c *Controller) State(sessionID string) (State, error) {
	s, err := c.lookup(sessionID)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State, nil
}

// AssetID returns the content asset bound to the session.
func (c *Controller) AssetID(sessionID string) (string, error) {
	s, err := c.lookup(sessionID)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.AssetID, nil
}

// BeginAd transitions AdPending to AdPlaying and returns the break decision.
// Calling it again while the ad is already playing returns the same decision
// without restarting the break timer.
func (c *Controller) BeginAd(sessionID string) (*AdDecision, error) {
	s, err := c.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	decision := &AdDecision{
		DurationSeconds: c.ads.Duration.Seconds(),
		SkippableAfter:  c.ads.SkipAfter.Seconds(),
	}

	switch s.State {
	case StateAdPlaying:
		return decision, nil
	case StateAdPending:
		s.State = StateAdPlaying
		s.adStarted = time.Now()
		s.adBytes = 0
		metrics.AdBreaksStarted.Inc()
		c.log.LogAdBreak(s.ID, string(StateAdPlaying), s.AdsShown)
		return decision, nil
	default:
		return nil, fmt.Errorf("session in state %s: %w", s.State, ErrNoAdPending)
	}
}

// EndAd returns the session to Playing and counts the shown ad. Ending an ad
// that is not playing is a no-op so delivery and skip requests can race
// safely.
func (c *Controller) EndAd(sessionID string) error {
	s, err := c.lookup(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State != StateAdPlaying {
		return nil
	}

	s.State = StatePlaying
	s.AdsShown++
	s.adBytes = 0
	c.log.LogAdBreak(s.ID, string(StatePlaying), s.AdsShown)
	return nil
}

// AdSkippable reports whether the current break has run long enough for the
// viewer to skip it.
func (c *Controller) AdSkippable(sessionID string) (bool, error) {
	s, err := c.lookup(sessionID)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State != StateAdPlaying {
		return false, nil
	}
	return time.Since(s.adStarted) >= c.ads.SkipAfter, nil
}

// AdProgress records delivered ad bytes and returns the total for the
// current break. Delivery uses the running total to address the ad asset.
func (c *Controller) AdProgress(sessionID string, deliveredBytes int64) (int64, error) {
	s, err := c.lookup(sessionID)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSeen = time.Now()
	s.adBytes += deliveredBytes
	return s.adBytes, nil
}

// AdOffset returns how many bytes of the ad asset the session has already
// received in the current break.
func (c *Controller) AdOffset(sessionID string) (int64, error) {
	s, err := c.lookup(sessionID)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adBytes, nil
}

// Touch marks the session as recently active without advancing playback.
func (c *Controller) Touch(sessionID string) error {
	s, err := c.lookup(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
	return nil
}

// EndSession is terminal from any state and releases the session's slot in
// the concurrency ceiling exactly once; a second call is a no-op. It reports
// whether this call was the one that ended the session.
func (c *Controller) EndSession(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		return false
	}

	s.mu.Lock()
	alreadyEnded := s.State == StateEnded
	s.State = StateEnded
	s.mu.Unlock()

	delete(c.sessions, sessionID)
	if !alreadyEnded && c.live > 0 {
		c.live--
		metrics.RecordSessionEnded()
	}

	c.log.WithSessionID(sessionID).Infof("session ended (%d/%d live)", c.live, c.maxSessions)
	return !alreadyEnded
}

// Live returns the number of live sessions.
func (c *Controller) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

// Sweep ends sessions idle beyond the configured timeout and returns how
// many it reaped.
func (c *Controller) Sweep() int {
	if c.idleTimeout <= 0 {
		return 0
	}

	c.mu.Lock()
	var stale []string
	cutoff := time.Now().Add(-c.idleTimeout)
	for id, s := range c.sessions {
		s.mu.Lock()
		if s.lastSeen.Before(cutoff) {
			stale = append(stale, id)
		}
		s.mu.Unlock()
	}
	c.mu.Unlock()

	for _, id := range stale {
		c.EndSession(id)
	}
	return len(stale)
}

// Run sweeps idle sessions until the context is cancelled.
func (c *Controller) Run(ctx context.Context) {
	interval := c.idleTimeout
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.log.Infof("reaped %d idle sessions", n)
			}
		}
	}
}
