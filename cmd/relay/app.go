package main

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/casaflow/relay-go/internal/config"
	"github.com/casaflow/relay-go/internal/credstore"
	"github.com/casaflow/relay-go/internal/executor"
	"github.com/casaflow/relay-go/internal/logs"
	"github.com/casaflow/relay-go/internal/metrics"
	"github.com/casaflow/relay-go/internal/refresh"
	"github.com/casaflow/relay-go/internal/session"
	"github.com/casaflow/relay-go/internal/transport"
)

// app wires the request layer together for a CLI invocation.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *credstore.BoltStore
	coord   *refresh.Coordinator
	sched   *refresh.Scheduler
	exec    *executor.Executor
	sess    *session.Session
	metrics *metrics.Metrics
}

// buildApp loads configuration, applies flag overrides, and assembles the
// store, coordinator, executor and session.
func buildApp() (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagBaseURL != "" {
		cfg.BaseURL = flagBaseURL
	}
	if flagLogLevel != "" {
		cfg.Logging.Level = flagLogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logs.Setup(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}

	store, err := credstore.OpenBoltStore(filepath.Join(cfg.DataDir, "relay.db"), logger)
	if err != nil {
		logger.Sync()
		return nil, err
	}

	policy, err := cfg.Retry.Options()
	if err != nil {
		store.Close()
		return nil, err
	}

	m := metrics.New()
	refresher := refresh.NewHTTPRefresher(cfg.BaseURL+cfg.RefreshPath, cfg.RequestTimeout, logger)
	coord := refresh.NewCoordinator(store, refresher.Renew, logger, m)

	var sched *refresh.Scheduler
	if cfg.Refresh.Proactive {
		sched = refresh.NewScheduler(coord, cfg.Refresh.Threshold, logger)
	}

	t := transport.NewHTTPTransport(cfg.BaseURL, cfg.RequestTimeout, logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		coord:   coord,
		sched:   sched,
		exec:    executor.New(t, store, coord, policy, logger, m),
		sess:    session.New(store, coord, sched, logger),
		metrics: m,
	}, nil
}

func (a *app) close() {
	if a.sched != nil {
		a.sched.Disarm()
	}
	a.store.Close()
	_ = a.logger.Sync()
}
