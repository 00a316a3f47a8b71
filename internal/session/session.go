// Package session ties the credential store, the refresh coordinator and the
// proactive scheduler to the login/logout lifecycle.
package session

import (
	"go.uber.org/zap"

	"github.com/casaflow/relay-go/internal/credstore"
	"github.com/casaflow/relay-go/internal/refresh"
)

// Session owns the request layer's lifetime contract: credentials exist
// between Login and Logout, and renewal state never outlives them.
type Session struct {
	store  credstore.Store
	coord  *refresh.Coordinator
	sched  *refresh.Scheduler
	logger *zap.Logger
}

// New creates a session. sched may be nil when proactive refresh is disabled.
func New(store credstore.Store, coord *refresh.Coordinator, sched *refresh.Scheduler, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.L()
	}
	return &Session{
		store:  store,
		coord:  coord,
		sched:  sched,
		logger: logger.Named("session"),
	}
}

// Login stores the credential pair and arms proactive refresh.
func (s *Session) Login(cred credstore.Credential) error {
	if err := s.store.Replace(cred); err != nil {
		return err
	}
	if s.sched != nil {
		s.sched.Arm(cred)
	}
	s.logger.Info("session started")
	return nil
}

// Logout clears the credential, cancels proactive refresh, and resets the
// coordinator, rejecting any callers still queued on a renewal.
func (s *Session) Logout() error {
	if s.sched != nil {
		s.sched.Disarm()
	}
	s.coord.Reset()
	if err := s.store.Clear(); err != nil {
		return err
	}
	s.logger.Info("session ended")
	return nil
}

// Active reports whether a credential is currently stored.
func (s *Session) Active() bool {
	_, ok := s.store.Current()
	return ok
}
