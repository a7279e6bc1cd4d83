// Package heldsale_repo stores held sales in PostgreSQL.
// Every transition is a single conditional UPDATE ... RETURNING, so the row
// lock taken by the update decides races between concurrent callers.
package heldsale_repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"tillcore/internal/core/apperror"
	"tillcore/internal/core/id"
	"tillcore/internal/domain/heldsale"
	"tillcore/internal/infrastructure/storage/postgres"
)

const (
	tableName = "held_sales"

	// holdIDConstraint is the unique constraint on the public hold id.
	holdIDConstraint = "held_sales_hold_id_key"
)

var selectCols = []string{
	"id", "hold_id", "terminal_id", "actor_id", "payload", "notes",
	"status", "created_at", "expires_at", "completed_at",
}

var returning = "RETURNING " + strings.Join(selectCols, ", ")

// Repo implements heldsale.Repository.
type Repo struct {
	txManager *postgres.TxManager
}

var _ heldsale.Repository = (*Repo)(nil)

// New creates a held sale repository.
func New(txManager *postgres.TxManager) *Repo {
	return &Repo{txManager: txManager}
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Create inserts a new hold.
func (r *Repo) Create(ctx context.Context, h *heldsale.HeldSale) error {
	sql, args, err := builder().
		Insert(tableName).
		Columns(selectCols...).
		Values(h.ID, h.HoldID, h.TerminalID, h.ActorID, []byte(h.Payload), h.Notes,
			string(h.Status), h.CreatedAt, h.ExpiresAt, h.CompletedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err, holdIDConstraint) {
			return fmt.Errorf("insert %s: %w", h.HoldID, heldsale.ErrHoldIDTaken)
		}
		return postgres.Classify(fmt.Errorf("insert %s: %w", tableName, err))
	}
	return nil
}

// GetByHoldID returns a hold by its public id.
func (r *Repo) GetByHoldID(ctx context.Context, holdID string) (*heldsale.HeldSale, error) {
	sql, args, err := builder().
		Select(selectCols...).
		From(tableName).
		Where(squirrel.Eq{"hold_id": holdID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var h heldsale.HeldSale
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &h, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("held sale", holdID)
		}
		return nil, postgres.Classify(fmt.Errorf("get held sale: %w", err))
	}
	return &h, nil
}

// List returns holds matching f, newest first.
func (r *Repo) List(ctx context.Context, f heldsale.ListFilter) ([]*heldsale.HeldSale, error) {
	sql, args, err := listQuery(f).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	var holds []*heldsale.HeldSale
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &holds, sql, args...); err != nil {
		return nil, postgres.Classify(fmt.Errorf("list held sales: %w", err))
	}
	return holds, nil
}

func listQuery(f heldsale.ListFilter) squirrel.SelectBuilder {
	q := builder().
		Select(selectCols...).
		From(tableName)

	if f.TerminalID != nil {
		q = q.Where(squirrel.Eq{"terminal_id": *f.TerminalID})
	}
	if f.ActorID != nil {
		q = q.Where(squirrel.Eq{"actor_id": *f.ActorID})
	}
	q = q.Where(statusPredicate(f.Status, f.Now)).
		OrderBy("created_at DESC", "id DESC")
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	return q
}

// statusPredicate renders the status filter. nil selects active holds;
// expired also selects held rows past their expiry.
func statusPredicate(status *heldsale.Status, now time.Time) squirrel.Sqlizer {
	switch {
	case status == nil:
		return activePredicate(now)
	case *status == heldsale.StatusExpired:
		return squirrel.Or{
			squirrel.Eq{"status": string(heldsale.StatusExpired)},
			squirrel.And{
				squirrel.Eq{"status": string(heldsale.StatusHeld)},
				squirrel.LtOrEq{"expires_at": now},
			},
		}
	default:
		return squirrel.Eq{"status": string(*status)}
	}
}

func activePredicate(now time.Time) squirrel.Sqlizer {
	return squirrel.And{
		squirrel.Eq{"status": string(heldsale.StatusHeld)},
		squirrel.Or{
			squirrel.Eq{"expires_at": nil},
			squirrel.Gt{"expires_at": now},
		},
	}
}

// Consume moves an active hold to completed.
func (r *Repo) Consume(ctx context.Context, holdID string, now time.Time) (*heldsale.HeldSale, error) {
	return r.transition(ctx, consumeQuery(holdID, now))
}

func consumeQuery(holdID string, now time.Time) squirrel.UpdateBuilder {
	return builder().
		Update(tableName).
		Set("status", string(heldsale.StatusCompleted)).
		Set("completed_at", now).
		Where(squirrel.Eq{"hold_id": holdID}).
		Where(activePredicate(now)).
		Suffix(returning)
}

// Expire moves a held hold to expired, optionally only when due.
func (r *Repo) Expire(ctx context.Context, holdID string, due *time.Time) (*heldsale.HeldSale, error) {
	return r.transition(ctx, expireQuery(holdID, due))
}

func expireQuery(holdID string, due *time.Time) squirrel.UpdateBuilder {
	q := builder().
		Update(tableName).
		Set("status", string(heldsale.StatusExpired)).
		Where(squirrel.Eq{"hold_id": holdID, "status": string(heldsale.StatusHeld)}).
		Suffix(returning)
	if due != nil {
		q = q.Where(squirrel.LtOrEq{"expires_at": *due})
	}
	return q
}

func (r *Repo) transition(ctx context.Context, q squirrel.UpdateBuilder) (*heldsale.HeldSale, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build transition: %w", err)
	}

	var h heldsale.HeldSale
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &h, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, postgres.Classify(fmt.Errorf("transition held sale: %w", err))
	}
	return &h, nil
}

// Remove deletes a hold row.
func (r *Repo) Remove(ctx context.Context, rowID id.ID) error {
	sql, args, err := builder().
		Delete(tableName).
		Where(squirrel.Eq{"id": rowID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.Classify(fmt.Errorf("delete held sale: %w", err))
	}
	return nil
}

// ListDue returns ids of held rows due at now, oldest expiry first.
func (r *Repo) ListDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	q := builder().
		Select("hold_id").
		From(tableName).
		Where(squirrel.Eq{"status": string(heldsale.StatusHeld)}).
		Where(squirrel.LtOrEq{"expires_at": now}).
		OrderBy("expires_at", "id")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build due list: %w", err)
	}

	var ids []string
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &ids, sql, args...); err != nil {
		return nil, postgres.Classify(fmt.Errorf("list due held sales: %w", err))
	}
	return ids, nil
}
