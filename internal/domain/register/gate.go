package register

import (
	"context"
	"fmt"

	"tillcore/internal/core/apperror"
	"tillcore/internal/domain"
)

// Gate admits operations only for actors with an open register session.
// It never mutates sessions. Its reads are not linearized with concurrent
// open/close: a sale admitted just before another process closes the
// register is accepted.
type Gate struct {
	repo Repository
}

// NewGate creates a register gate.
func NewGate(repo Repository) *Gate {
	return &Gate{repo: repo}
}

// Resolve returns the open session of actor.
func (g *Gate) Resolve(ctx context.Context, actor *domain.Actor) (OpenSession, error) {
	if actor == nil || actor.ID == "" {
		return OpenSession{}, apperror.NewUnauthorized("authentication required")
	}

	s, err := g.repo.FindLatestOpen(ctx, actor.ID)
	if err != nil {
		return OpenSession{}, fmt.Errorf("resolve register session: %w", err)
	}
	if s == nil || !s.IsOpen() {
		return OpenSession{}, apperror.NewRegisterClosed(actor.ID)
	}

	return OpenSession{session: *s, actor: *actor}, nil
}

// Guard runs fn with the actor's open session. fn never runs when the
// precondition fails; its error is returned unchanged otherwise.
func (g *Gate) Guard(ctx context.Context, actor *domain.Actor, fn func(ctx context.Context, s OpenSession) error) error {
	s, err := g.Resolve(ctx, actor)
	if err != nil {
		return err
	}
	return fn(ctx, s)
}

// Within is Guard for operations that produce a value.
func Within[T any](ctx context.Context, g *Gate, actor *domain.Actor, fn func(ctx context.Context, s OpenSession) (T, error)) (T, error) {
	s, err := g.Resolve(ctx, actor)
	if err != nil {
		var zero T
		return zero, err
	}
	return fn(ctx, s)
}
