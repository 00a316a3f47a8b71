// Package executor is the façade of the request layer: it attaches the current
// credential to an outbound request, dispatches it, and recovers from
// classified failures (renewal for an expired credential, bounded backoff for
// transient faults).
package executor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/casaflow/relay-go/internal/classify"
	"github.com/casaflow/relay-go/internal/credstore"
	"github.com/casaflow/relay-go/internal/metrics"
	"github.com/casaflow/relay-go/internal/retry"
	"github.com/casaflow/relay-go/internal/transport"
)

// Renewer is the credential renewal entry point; satisfied by
// refresh.Coordinator.
type Renewer interface {
	Renew(ctx context.Context) (credstore.Credential, error)
}

// Executor runs logical requests. It holds no per-request state between calls;
// everything mutable lives in the store (via the renewer) or in local loop
// variables.
type Executor struct {
	transport transport.Transport
	store     credstore.Store
	renewer   Renewer
	policy    retry.Options
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// New creates an executor. metrics may be nil.
func New(t transport.Transport, store credstore.Store, renewer Renewer, policy retry.Options, logger *zap.Logger, m *metrics.Metrics) *Executor {
	if logger == nil {
		logger = zap.L()
	}
	return &Executor{
		transport: t,
		store:     store,
		renewer:   renewer,
		policy:    policy,
		logger:    logger.Named("executor"),
		metrics:   m,
	}
}

// Execute dispatches the descriptor and applies the recovery rules:
//
//   - Unauthorized: renew the credential and redispatch exactly once per call,
//     tracked by a flag separate from the retry attempt counter. A second
//     Unauthorized propagates rather than looping renewal.
//   - Network, Timeout, ServerError: retry with backoff up to the policy's
//     MaxAttempts; exhaustion propagates the last classified error.
//   - Validation, Forbidden, NotFound, Unknown: propagate immediately.
//
// The returned error, when non-nil and not a context error, is always a
// *classify.Error.
func (e *Executor) Execute(ctx context.Context, d *transport.Descriptor) (*transport.Response, error) {
	log := e.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("method", d.Method),
		zap.String("path", d.Path))

	start := time.Now()
	attempt := 1
	hasRetriedAuth := false

	for {
		req := d.Clone()
		if !d.SkipAuth {
			if cred, ok := e.store.Current(); ok && cred.AccessToken != "" {
				req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
			}
			// An absent credential is dispatched anyway; the server's 401
			// drives the renewal path.
		}

		resp, err := e.transport.Send(ctx, req)
		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			log.Debug("request succeeded", zap.Int("attempt", attempt), zap.Int("status", resp.StatusCode))
			e.metrics.ObserveRequest(d.Method, "success", time.Since(start))
			return resp, nil
		}
		if ctx.Err() != nil {
			e.metrics.ObserveRequest(d.Method, "canceled", time.Since(start))
			return nil, ctx.Err()
		}

		cerr := classify.Classify(resp, err)

		switch {
		case cerr.Kind == classify.Unauthorized && !d.SkipAuth && !hasRetriedAuth:
			hasRetriedAuth = true
			log.Info("credential rejected, renewing")
			if _, rerr := e.renewer.Renew(ctx); rerr != nil {
				log.Warn("credential renewal failed", zap.Error(rerr))
				e.metrics.ObserveRequest(d.Method, classify.KindOf(rerr).String(), time.Since(start))
				return nil, rerr
			}
			// Redispatch with the renewed credential; does not consume the
			// retry budget.
			continue

		case e.policy.ShouldRetry(cerr.Kind, attempt):
			delay := e.policy.DelayFor(attempt)
			log.Warn("transient failure, backing off",
				zap.String("kind", cerr.Kind.String()),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			e.metrics.IncRetry(cerr.Kind.String())
			attempt++
			select {
			case <-ctx.Done():
				e.metrics.ObserveRequest(d.Method, "canceled", time.Since(start))
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			continue

		default:
			log.Warn("request failed",
				zap.String("kind", cerr.Kind.String()),
				zap.Int("attempt", attempt),
				zap.Int("status", cerr.HTTPStatus))
			e.metrics.ObserveRequest(d.Method, cerr.Kind.String(), time.Since(start))
			return nil, cerr
		}
	}
}
