package heldsale

import (
	"context"
	"errors"
	"time"

	"tillcore/internal/core/id"
)

// DefaultListLimit bounds List when no limit is given.
const DefaultListLimit = 100

// MaxListLimit caps caller supplied limits.
const MaxListLimit = 500

// EffectiveLimit is the number of rows List returns at most for a
// requested limit.
func EffectiveLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}

// ListFilter narrows List results.
type ListFilter struct {
	TerminalID *string
	ActorID    *string
	// Status nil means active only. StatusExpired also matches held rows
	// whose expiry has passed.
	Status *Status
	Now    time.Time
	Limit  int
}

// ErrHoldIDTaken is returned by Repository.Create when the public hold id
// already exists.
var ErrHoldIDTaken = errors.New("hold id already taken")

// Repository persists held sales. Every state change is a conditional
// update so concurrent callers cannot both win the same transition.
type Repository interface {
	// Create stores a new hold. Returns ErrHoldIDTaken on a hold id clash.
	Create(ctx context.Context, h *HeldSale) error

	// GetByHoldID returns apperror NotFound when the hold does not exist.
	GetByHoldID(ctx context.Context, holdID string) (*HeldSale, error)

	// List returns matching holds, newest first.
	List(ctx context.Context, f ListFilter) ([]*HeldSale, error)

	// Consume moves an active hold to completed and returns it.
	// Returns nil, nil when the hold is missing or not active at now.
	Consume(ctx context.Context, holdID string, now time.Time) (*HeldSale, error)

	// Expire moves a held hold to expired and returns it. When due is set the
	// hold must also have expires_at <= *due. Returns nil, nil on a miss.
	Expire(ctx context.Context, holdID string, due *time.Time) (*HeldSale, error)

	// Remove deletes the row.
	Remove(ctx context.Context, rowID id.ID) error

	// ListDue returns hold ids of held rows with expires_at <= now, oldest expiry first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]string, error)
}
