// Package numerator provides the PostgreSQL implementation of bill numbering.
// It implements core/numerator.Sequencer.
package numerator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	corenumerator "tillcore/internal/core/numerator"
	"tillcore/internal/infrastructure/storage/postgres"
)

// Service reads issued bill numbers from sales and advances bill_sequences.
// It keeps no in-process state: every call goes to the database inside the
// caller's transaction.
type Service struct {
	txManager *postgres.TxManager
}

// Ensure compile-time interface compliance.
var _ corenumerator.Sequencer = (*Service)(nil)

// New creates a numerator service.
func New(txManager *postgres.TxManager) *Service {
	return &Service{txManager: txManager}
}

// LastIssued returns the greatest bill number with the given prefix.
// Longer counters sort first so U7/ALX/10000 outranks U7/ALX/9999.
func (s *Service) LastIssued(ctx context.Context, prefix string) (string, bool, error) {
	var number string
	err := s.txManager.GetQuerier(ctx).QueryRow(ctx, `
		SELECT bill_number
		FROM sales
		WHERE bill_number LIKE $1
		ORDER BY length(bill_number) DESC, bill_number DESC
		LIMIT 1
	`, escapeLike(prefix)+"%").Scan(&number)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, postgres.Classify(fmt.Errorf("read last bill number: %w", err))
	}
	return number, true, nil
}

// Advance bumps the scope counter past floor with an UPSERT. The row lock
// taken by the upsert serializes concurrent callers of one scope until their
// transactions end.
func (s *Service) Advance(ctx context.Context, scope string, floor int64) (int64, error) {
	var next int64
	err := s.txManager.GetQuerier(ctx).QueryRow(ctx, `
		INSERT INTO bill_sequences (scope, current_val, updated_at)
		VALUES ($1, $2 + 1, NOW())
		ON CONFLICT (scope) DO UPDATE
		SET current_val = GREATEST(bill_sequences.current_val, $2) + 1,
		    updated_at = NOW()
		RETURNING current_val
	`, scope, floor).Scan(&next)
	if err != nil {
		return 0, postgres.Classify(fmt.Errorf("advance sequence %s: %w", scope, err))
	}
	return next, nil
}

// Current returns the counter of scope, or 0 if the scope was never used.
func (s *Service) Current(ctx context.Context, scope string) (int64, error) {
	var current int64
	err := s.txManager.GetQuerier(ctx).QueryRow(ctx, `
		SELECT current_val FROM bill_sequences WHERE scope = $1
	`, scope).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, postgres.Classify(fmt.Errorf("read sequence %s: %w", scope, err))
	}
	return current, nil
}

// escapeLike escapes LIKE wildcards so names such as "50%" match literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
