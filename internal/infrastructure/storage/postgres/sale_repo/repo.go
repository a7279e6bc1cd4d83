// Package sale_repo stores finalized sales in PostgreSQL.
package sale_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"tillcore/internal/core/apperror"
	"tillcore/internal/domain/sales"
	"tillcore/internal/infrastructure/storage/postgres"
)

const tableName = "sales"

var selectCols = []string{
	"id", "bill_number", "register_session_id", "terminal_id", "actor_id",
	"actor_name", "hold_id", "payload", "total", "created_at",
}

// Repo implements sales.Repository.
type Repo struct {
	txManager *postgres.TxManager
}

var _ sales.Repository = (*Repo)(nil)

// New creates a sale repository.
func New(txManager *postgres.TxManager) *Repo {
	return &Repo{txManager: txManager}
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Insert stores a sale. A taken bill number is reported as a retryable conflict.
func (r *Repo) Insert(ctx context.Context, s *sales.Sale) error {
	sql, args, err := builder().
		Insert(tableName).
		Columns(selectCols...).
		Values(s.ID, s.BillNumber, s.RegisterSessionID, s.TerminalID, s.ActorID,
			s.ActorName, s.HoldID, []byte(s.Payload), s.Total, s.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.Classify(fmt.Errorf("insert sale: %w", err))
	}
	return nil
}

// GetByBillNumber returns a sale by its bill number.
func (r *Repo) GetByBillNumber(ctx context.Context, billNumber string) (*sales.Sale, error) {
	sql, args, err := builder().
		Select(selectCols...).
		From(tableName).
		Where(squirrel.Eq{"bill_number": billNumber}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var s sales.Sale
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &s, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("sale", billNumber)
		}
		return nil, postgres.Classify(fmt.Errorf("get sale: %w", err))
	}
	return &s, nil
}
