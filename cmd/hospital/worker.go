package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jwalitptl/hospital-core/internal/handler/health"
	promhandler "github.com/jwalitptl/hospital-core/internal/handler/prometheus"
	"github.com/jwalitptl/hospital-core/internal/repository/postgres"
	"github.com/jwalitptl/hospital-core/internal/router"
	"github.com/jwalitptl/hospital-core/pkg/messaging/redis"
	"github.com/jwalitptl/hospital-core/pkg/worker"
)

func workerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Publish outbox events and serve health and metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			broker, err := a.openBroker()
			if err != nil {
				return err
			}
			defer broker.Close()

			repos := postgres.NewRepositories(store)
			processor := worker.NewOutboxProcessor(repos.Outbox, store, broker, worker.OutboxProcessorConfig{
				BatchSize:     a.cfg.Outbox.BatchSize,
				PollInterval:  a.cfg.Outbox.PollInterval,
				RetryAttempts: a.cfg.Outbox.RetryAttempts,
				RetryDelay:    a.cfg.Outbox.RetryDelay,
			}, a.log, a.metrics)
			cleanup := worker.NewOutboxCleanupWorker(repos.Outbox, a.cfg.Outbox.Retention, a.cfg.Outbox.Retention/24, a.log)

			ops := router.NewRouter(a.cfg.Ops,
				health.NewHandler(map[string]health.Pinger{"database": store, "redis": broker}),
				promhandler.New(a.registry),
				a.log)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				processor.Start(ctx)
				return nil
			})
			g.Go(func() error {
				cleanup.Start(ctx)
				return nil
			})
			g.Go(func() error { return ops.Serve(ctx) })

			a.log.Info("Worker started", "batch_size", a.cfg.Outbox.BatchSize, "poll_interval", a.cfg.Outbox.PollInterval)
			err = g.Wait()
			a.log.Info("Worker stopped")
			return err
		},
	}
}

func (a *app) openBroker() (*redis.RedisBroker, error) {
	return redis.NewRedisBroker(redis.Config{
		URL:          a.cfg.Redis.URL,
		MaxRetries:   a.cfg.Redis.MaxRetries,
		RetryBackoff: a.cfg.Redis.RetryBackoff,
		PoolSize:     a.cfg.Redis.PoolSize,
		MinIdleConns: a.cfg.Redis.MinIdleConns,
	}, a.log.ZL)
}
