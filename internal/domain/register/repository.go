package register

import (
	"context"
	"time"

	"tillcore/internal/core/id"
)

// Repository persists register sessions.
type Repository interface {
	// FindLatestOpen returns the most recently opened session of actorID that is
	// open and not closed, or nil when there is none.
	FindLatestOpen(ctx context.Context, actorID string) (*Session, error)

	// Insert stores a new open session.
	// Returns apperror REGISTER_ALREADY_OPEN if the actor already has one.
	Insert(ctx context.Context, s *Session) error

	// MarkClosed closes an open session. Returns false if it was not open.
	MarkClosed(ctx context.Context, sessionID id.ID, at time.Time) (bool, error)
}
