package refresh

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/casaflow/relay-go/internal/credstore"
)

const (
	// DefaultThreshold is the fraction of token lifetime at which proactive
	// refresh triggers. 0.8 means a 1h token is refreshed after 48 minutes.
	DefaultThreshold = 0.8

	// renewTimeout bounds a scheduler-initiated renewal call.
	renewTimeout = 30 * time.Second
)

// Scheduler renews the credential before it expires, so requests rarely pay
// the 401-then-renew round trip. It funnels through the coordinator's Renew,
// so a scheduled renewal and an on-demand one can never run concurrently.
//
// Scheduling only works for JWT access tokens with an exp claim; opaque tokens
// fall back to on-demand renewal.
type Scheduler struct {
	coord     *Coordinator
	threshold float64
	logger    *zap.Logger

	mu    sync.Mutex
	timer *time.Timer
	next  time.Time
}

// NewScheduler creates a scheduler. threshold outside (0,1) falls back to
// DefaultThreshold.
func NewScheduler(coord *Coordinator, threshold float64, logger *zap.Logger) *Scheduler {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = zap.L()
	}
	return &Scheduler{
		coord:     coord,
		threshold: threshold,
		logger:    logger.Named("refresh-scheduler"),
	}
}

// Arm schedules a proactive renewal for the given credential, replacing any
// previous schedule. Tokens without a readable expiry disable scheduling.
func (s *Scheduler) Arm(cred credstore.Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	expiresAt := credstore.ExpiryOf(cred.AccessToken)
	if expiresAt.IsZero() {
		s.logger.Debug("access token has no readable expiry, proactive refresh disabled")
		return
	}

	lifetime := time.Until(expiresAt)
	if lifetime <= 0 {
		// Already expired; the next request's 401 path will renew.
		return
	}

	delay := time.Duration(float64(lifetime) * s.threshold)
	s.next = time.Now().Add(delay)
	s.timer = time.AfterFunc(delay, s.fire)

	s.logger.Info("proactive refresh scheduled",
		zap.Time("expires_at", expiresAt),
		zap.Time("refresh_at", s.next),
		zap.Duration("delay", delay))
}

func (s *Scheduler) fire() {
	ctx, cancel := context.WithTimeout(context.Background(), renewTimeout)
	defer cancel()

	cred, err := s.coord.Renew(ctx)
	if err != nil {
		// Leave recovery to the on-demand path; the next 401 escalates.
		s.logger.Warn("proactive refresh failed", zap.Error(err))
		return
	}
	s.Arm(cred)
}

// Disarm cancels any scheduled renewal. Called on logout.
func (s *Scheduler) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.next = time.Time{}
}

// NextRefresh returns when the next proactive renewal will fire, or the zero
// time if none is scheduled.
func (s *Scheduler) NextRefresh() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}
