// Package register_repo stores cash register sessions in PostgreSQL.
package register_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"tillcore/internal/core/apperror"
	"tillcore/internal/core/id"
	"tillcore/internal/domain/register"
	"tillcore/internal/infrastructure/storage/postgres"
)

const (
	tableName = "register_sessions"

	// openSessionConstraint is the partial unique index allowing one open
	// session per actor.
	openSessionConstraint = "uq_register_open"
)

var selectCols = []string{"id", "actor_id", "status", "opened_at", "closed_at"}

// SessionRepo implements register.Repository.
type SessionRepo struct {
	txManager *postgres.TxManager
}

var _ register.Repository = (*SessionRepo)(nil)

// NewSessionRepo creates a session repository.
func NewSessionRepo(txManager *postgres.TxManager) *SessionRepo {
	return &SessionRepo{txManager: txManager}
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// FindLatestOpen returns the latest opened open session of the actor.
func (r *SessionRepo) FindLatestOpen(ctx context.Context, actorID string) (*register.Session, error) {
	sql, args, err := latestOpenQuery(actorID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var s register.Session
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &s, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, postgres.Classify(fmt.Errorf("find open session: %w", err))
	}
	return &s, nil
}

func latestOpenQuery(actorID string) squirrel.SelectBuilder {
	return builder().
		Select(selectCols...).
		From(tableName).
		Where(squirrel.Eq{"actor_id": actorID, "status": string(register.StatusOpen), "closed_at": nil}).
		OrderBy("opened_at DESC", "id DESC").
		Limit(1)
}

// Insert stores a new open session.
func (r *SessionRepo) Insert(ctx context.Context, s *register.Session) error {
	sql, args, err := builder().
		Insert(tableName).
		Columns(selectCols...).
		Values(s.ID, s.ActorID, string(s.Status), s.OpenedAt, s.ClosedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err, openSessionConstraint) {
			return apperror.NewRegisterAlreadyOpen(s.ActorID, "")
		}
		return postgres.Classify(fmt.Errorf("insert session: %w", err))
	}
	return nil
}

// MarkClosed closes an open session.
func (r *SessionRepo) MarkClosed(ctx context.Context, sessionID id.ID, at time.Time) (bool, error) {
	sql, args, err := builder().
		Update(tableName).
		Set("status", string(register.StatusClosed)).
		Set("closed_at", at).
		Where(squirrel.Eq{"id": sessionID, "status": string(register.StatusOpen)}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, postgres.Classify(fmt.Errorf("close session: %w", err))
	}
	return tag.RowsAffected() == 1, nil
}
