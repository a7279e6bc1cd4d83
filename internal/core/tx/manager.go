// Package tx provides transaction management abstractions.
// Domain services depend on this interface; the PostgreSQL implementation
// lives in infrastructure/storage/postgres.
package tx

import (
	"context"
	"errors"
)

// Manager defines the contract for transaction management.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Func adapts a plain function to Manager. Useful for tests and for
// callers that already hold a transaction.
type Func func(ctx context.Context, fn func(ctx context.Context) error) error

// RunInTransaction implements Manager.
func (f Func) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}

// Passthrough runs fn directly without a transaction.
var Passthrough Manager = Func(func(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
})

// ErrConflict marks failures that a fresh transaction may not hit again:
// unique violations on generated values, serialization failures and deadlocks.
var ErrConflict = errors.New("transaction conflict")

// IsConflict reports whether err is a retryable transaction conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
