package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/casaflow/relay-go/internal/classify"
	"github.com/casaflow/relay-go/internal/httpapi"
)

var (
	flagProbeCount       int
	flagProbeConcurrency int
	flagProbeListen      string
)

// probeCmd drives load through the executor, which makes contention on the
// refresh coordinator observable: run it against an API with a short-lived
// token and watch relay_credential_renewals_total stay at one per expiry.
var probeCmd = &cobra.Command{
	Use:   "probe METHOD PATH",
	Short: "Issue many concurrent requests and serve live metrics",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close()

		d, err := buildDescriptor(args[0], args[1])
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var succeeded, failed atomic.Int64
		srv := httpapi.New(flagProbeListen, a.metrics, func() any {
			return map[string]any{
				"active":    a.sess.Active(),
				"succeeded": succeeded.Load(),
				"failed":    failed.Load(),
			}
		}, a.logger)
		go func() {
			if err := srv.Start(); err != nil {
				a.logger.Error("debug server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		jobs := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < flagProbeConcurrency; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range jobs {
					if _, err := a.exec.Execute(ctx, d); err != nil {
						failed.Add(1)
						a.logger.Debug("probe request failed",
							zap.String("kind", classify.KindOf(err).String()),
							zap.Error(err))
					} else {
						succeeded.Add(1)
					}
				}
			}()
		}

		start := time.Now()
	feed:
		for i := 0; i < flagProbeCount; i++ {
			select {
			case jobs <- i:
			case <-ctx.Done():
				break feed
			}
		}
		close(jobs)
		wg.Wait()

		fmt.Printf("probe finished: %d succeeded, %d failed in %s\n",
			succeeded.Load(), failed.Load(), time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	addRequestFlags(probeCmd.Flags())
	probeCmd.Flags().IntVar(&flagProbeCount, "count", 100, "total number of requests")
	probeCmd.Flags().IntVar(&flagProbeConcurrency, "concurrency", 8, "concurrent workers")
	probeCmd.Flags().StringVar(&flagProbeListen, "listen", "127.0.0.1:9321", "debug server listen address")
}
