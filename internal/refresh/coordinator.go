// Package refresh coordinates credential renewal. Its core guarantee is
// single-flight: no matter how many concurrent requests observe an expired
// credential, at most one call reaches the refresh endpoint and every caller
// shares its outcome.
package refresh

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/casaflow/relay-go/internal/classify"
	"github.com/casaflow/relay-go/internal/credstore"
	"github.com/casaflow/relay-go/internal/metrics"
)

// Func performs one renewal call against the refresh endpoint.
type Func func(ctx context.Context, refreshToken string) (credstore.Credential, error)

type result struct {
	cred credstore.Credential
	err  error
}

// waiter is a caller suspended on an in-flight renewal.
type waiter struct {
	ch chan result
}

// Coordinator serializes renewal. State is either idle or pending; the
// idle→pending transition is atomic with the "am I first" decision, which is
// what prevents duplicate renewal calls under contention.
type Coordinator struct {
	store   credstore.Store
	renew   Func
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	pending bool
	epoch   uint64
	waiters []*waiter
}

// NewCoordinator creates a coordinator around the given store and renewal
// function. metrics may be nil.
func NewCoordinator(store credstore.Store, renew Func, logger *zap.Logger, m *metrics.Metrics) *Coordinator {
	if logger == nil {
		logger = zap.L()
	}
	return &Coordinator{
		store:   store,
		renew:   renew,
		logger:  logger.Named("refresh-coordinator"),
		metrics: m,
	}
}

// Renew returns a freshly renewed credential, issuing at most one call to the
// refresh endpoint across all concurrent callers. Callers that arrive while a
// renewal is in flight are queued and resolved with its outcome in FIFO
// arrival order. A renewal rejected by the endpoint fails with an Unauthorized
// classified error and clears the store so later callers fail fast.
func (c *Coordinator) Renew(ctx context.Context) (credstore.Credential, error) {
	c.mu.Lock()
	if c.pending {
		w := &waiter{ch: make(chan result, 1)}
		c.waiters = append(c.waiters, w)
		queued := len(c.waiters)
		c.mu.Unlock()

		c.metrics.AddRenewalWaiters(1)
		c.logger.Debug("queued on in-flight renewal", zap.Int("position", queued))

		select {
		case r := <-w.ch:
			return r.cred, r.err
		case <-ctx.Done():
			if c.removeWaiter(w) {
				c.metrics.AddRenewalWaiters(-1)
				return credstore.Credential{}, ctx.Err()
			}
			// The renewal settled before the waiter could be removed;
			// its outcome is already buffered.
			r := <-w.ch
			return r.cred, r.err
		}
	}

	c.pending = true
	epoch := c.epoch
	c.mu.Unlock()

	c.logger.Info("starting credential renewal")

	var renewed credstore.Credential
	var err error
	if cred, ok := c.store.Current(); !ok || cred.RefreshToken == "" {
		err = &classify.Error{Kind: classify.Unauthorized, Message: "no refresh token available"}
	} else {
		renewed, err = c.renew(ctx, cred.RefreshToken)
	}

	return c.settle(epoch, renewed, err)
}

// settle resolves the renewal outcome: it mutates the store, transitions back
// to idle, and fans the result out to every queued waiter in arrival order.
func (c *Coordinator) settle(epoch uint64, renewed credstore.Credential, err error) (credstore.Credential, error) {
	c.mu.Lock()
	if c.epoch != epoch {
		// The session was torn down mid-renewal. Reset already rejected the
		// waiters; the late outcome must not touch the store.
		c.mu.Unlock()
		c.logger.Info("discarding renewal outcome from ended session")
		return credstore.Credential{}, &classify.Error{Kind: classify.Unauthorized, Message: "session ended during renewal"}
	}
	c.pending = false
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	if err == nil {
		if rerr := c.store.Replace(renewed); rerr != nil {
			err = fmt.Errorf("persist renewed credential: %w", rerr)
		}
	}

	if err != nil {
		c.metrics.IncRenewal("failure")
		// An endpoint rejection means the refresh token is dead; clear the
		// store so subsequent callers fail fast instead of retrying forever.
		if classify.KindOf(err) == classify.Unauthorized {
			if cerr := c.store.Clear(); cerr != nil {
				c.logger.Error("failed to clear credential after rejected renewal", zap.Error(cerr))
			}
		}
		c.logger.Warn("credential renewal failed",
			zap.Error(err),
			zap.Int("waiters", len(waiters)))
	} else {
		c.metrics.IncRenewal("success")
		c.logger.Info("credential renewal succeeded", zap.Int("waiters", len(waiters)))
	}

	r := result{cred: renewed, err: err}
	if err != nil {
		r.cred = credstore.Credential{}
	}
	for _, w := range waiters {
		w.ch <- r
		c.metrics.AddRenewalWaiters(-1)
	}

	return r.cred, r.err
}

// removeWaiter drops w from the queue. Returns false when the renewal already
// claimed the queue, in which case w's outcome is (or will be) buffered.
func (c *Coordinator) removeWaiter(w *waiter) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, cand := range c.waiters {
		if cand == w {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// Reset returns the coordinator to idle, rejecting any queued waiters. Called
// on logout; a renewal still in flight will find its epoch stale and discard
// its outcome.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.epoch++
	c.pending = false
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	if len(waiters) > 0 {
		c.logger.Info("rejecting queued waiters on reset", zap.Int("waiters", len(waiters)))
	}
	for _, w := range waiters {
		w.ch <- result{err: &classify.Error{Kind: classify.Unauthorized, Message: "session ended"}}
		c.metrics.AddRenewalWaiters(-1)
	}
}

// Pending reports whether a renewal is currently in flight.
func (c *Coordinator) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Waiters returns the number of callers queued on the in-flight renewal.
func (c *Coordinator) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}
