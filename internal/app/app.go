// Package app wires configuration, storage and domain services together for
// the server, worker and CLI binaries.
package app

import (
	"context"
	"fmt"

	"tillcore/internal/config"
	"tillcore/internal/core/clock"
	"tillcore/internal/domain/auth"
	"tillcore/internal/domain/billing"
	"tillcore/internal/domain/heldsale"
	"tillcore/internal/domain/register"
	"tillcore/internal/domain/sales"
	"tillcore/internal/infrastructure/numerator"
	"tillcore/internal/infrastructure/storage/postgres"
	"tillcore/internal/infrastructure/storage/postgres/heldsale_repo"
	"tillcore/internal/infrastructure/storage/postgres/register_repo"
	"tillcore/internal/infrastructure/storage/postgres/sale_repo"
	"tillcore/pkg/logger"
)

// App holds the wired services of one process.
type App struct {
	Config config.Config
	Log    *logger.Logger
	Clock  clock.Clock

	Pool      *postgres.Pool
	TxManager *postgres.TxManager
	Outbox    *postgres.OutboxPublisher
	Audit     *postgres.AuditService
	Sequences *numerator.Service

	JWT      *auth.JWTService
	Gate     *register.Gate
	Register *register.Service
	Holds    *heldsale.Service
	Sales    *sales.Service
}

// NewLogger builds the process logger from cfg and installs it as default.
func NewLogger(cfg config.Config) (*logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)
	return log, nil
}

// New connects to the database and builds all services.
func New(ctx context.Context, cfg config.Config, log *logger.Logger) (*App, error) {
	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.MaxConns = int32(cfg.DBMaxConns)

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	txm := postgres.NewTxManager(pool)
	audit, err := postgres.NewAuditService(txm)
	if err != nil {
		pool.Close()
		return nil, err
	}

	clk := clock.NewSystem()
	outbox := postgres.NewOutboxPublisher(txm)

	jwtCfg := auth.DefaultJWTConfig(cfg.JWTSecret)
	jwtCfg.Issuer = cfg.JWTIssuer

	sessions := register_repo.NewSessionRepo(txm)
	holds := heldsale.NewService(heldsale_repo.New(txm), txm, clk, cfg.HoldExpiry,
		heldsale.WithEvents(outbox),
		heldsale.WithAudit(audit),
		heldsale.WithSweepBatch(cfg.SweepBatch),
	)
	sequences := numerator.New(txm)
	allocator := billing.NewAllocator(sequences, txm)

	return &App{
		Config:    cfg,
		Log:       log,
		Clock:     clk,
		Pool:      pool,
		TxManager: txm,
		Outbox:    outbox,
		Audit:     audit,
		Sequences: sequences,
		JWT:       auth.NewJWTService(jwtCfg),
		Gate:      register.NewGate(sessions),
		Register:  register.NewService(sessions, txm, clk),
		Holds:     holds,
		Sales:     sales.NewService(sale_repo.New(txm), allocator, holds, txm, clk, outbox, cfg.SaleNumberRetries),
	}, nil
}

// Close releases the database pool.
func (a *App) Close() {
	a.Pool.Close()
}
