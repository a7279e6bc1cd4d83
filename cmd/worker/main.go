// Package main is the entry point for the tillcore background worker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tillcore/internal/app"
	"tillcore/internal/config"
	"tillcore/internal/infrastructure/lease"
	"tillcore/internal/infrastructure/messaging"
	"tillcore/internal/infrastructure/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := app.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting tillcore worker")

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize", "error", err)
	}
	defer a.Close()

	var handler postgres.OutboxHandler = messaging.LogHandler{}
	if cfg.RabbitMQURL != "" {
		pub := messaging.NewPublisher(cfg.RabbitMQURL, cfg.EventsExchange)
		defer func() { _ = pub.Close() }()
		handler = pub
	} else {
		log.Warn("RABBITMQ_URL not set, outbox events are only logged")
	}

	redisClient := lease.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	w := NewWorker(Deps{
		Holds:       a.Holds,
		Outbox:      postgres.NewOutboxRelay(a.TxManager, 100, handler),
		Idempotency: postgres.NewIdempotencyStore(a.TxManager, cfg.IdempotencyTTL),
		Locker:      lease.New(redisClient, ""),
		Clock:       a.Clock,
	}, Intervals{Sweep: cfg.SweepInterval}, log)

	w.Run(ctx)
	log.Info("worker stopped")
}
