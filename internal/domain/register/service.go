package register

import (
	"context"
	"fmt"

	"tillcore/internal/core/apperror"
	"tillcore/internal/core/clock"
	"tillcore/internal/core/id"
	"tillcore/internal/core/tx"
	"tillcore/internal/domain"
	"tillcore/pkg/logger"
)

// Service opens and closes register sessions.
type Service struct {
	repo      Repository
	txManager tx.Manager
	clock     clock.Clock
}

// NewService creates a register service.
func NewService(repo Repository, txManager tx.Manager, clk clock.Clock) *Service {
	return &Service{repo: repo, txManager: txManager, clock: clk}
}

// Open starts a session for actor.
func (s *Service) Open(ctx context.Context, actor *domain.Actor) (*Session, error) {
	if actor == nil || actor.ID == "" {
		return nil, apperror.NewUnauthorized("authentication required")
	}

	var session *Session
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.FindLatestOpen(ctx, actor.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperror.NewRegisterAlreadyOpen(actor.ID, existing.ID.String())
		}

		session = &Session{
			ID:       id.New(),
			ActorID:  actor.ID,
			Status:   StatusOpen,
			OpenedAt: s.clock.Now(),
		}
		return s.repo.Insert(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "register opened", "session_id", session.ID, "actor_id", actor.ID)
	return session, nil
}

// Close ends the actor's open session.
func (s *Service) Close(ctx context.Context, actor *domain.Actor) (*Session, error) {
	if actor == nil || actor.ID == "" {
		return nil, apperror.NewUnauthorized("authentication required")
	}

	var session *Session
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.FindLatestOpen(ctx, actor.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			return apperror.NewRegisterClosed(actor.ID)
		}

		now := s.clock.Now()
		closed, err := s.repo.MarkClosed(ctx, existing.ID, now)
		if err != nil {
			return fmt.Errorf("close session: %w", err)
		}
		if !closed {
			return apperror.NewRegisterClosed(actor.ID)
		}

		existing.Status = StatusClosed
		existing.ClosedAt = &now
		session = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "register closed", "session_id", session.ID, "actor_id", actor.ID)
	return session, nil
}

// Current returns the actor's open session or REGISTER_CLOSED.
func (s *Service) Current(ctx context.Context, actor *domain.Actor) (*Session, error) {
	if actor == nil || actor.ID == "" {
		return nil, apperror.NewUnauthorized("authentication required")
	}
	existing, err := s.repo.FindLatestOpen(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apperror.NewRegisterClosed(actor.ID)
	}
	return existing, nil
}
