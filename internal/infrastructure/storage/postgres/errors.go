package postgres

import (
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"

	"tillcore/internal/core/apperror"
	"tillcore/internal/core/tx"
)

// SQLSTATE codes the repositories react to.
const (
	CodeUniqueViolation      = "23505"
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
	CodeTooManyConnections   = "53300"
	CodeAdminShutdown        = "57P01"
	CodeCannotConnectNow     = "57P03"
)

// conflictError marks a retryable failure while keeping the driver error.
type conflictError struct {
	err error
}

func (e *conflictError) Error() string { return fmt.Sprintf("%v: %v", tx.ErrConflict, e.err) }
func (e *conflictError) Unwrap() error { return e.err }
func (e *conflictError) Is(target error) bool {
	return target == tx.ErrConflict
}

// Classify maps driver errors onto the error kinds the domain understands:
// unreachable store becomes STORE_UNAVAILABLE, unique violations,
// serialization failures and deadlocks become tx.ErrConflict.
// Anything else is returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.AsAppError(err); ok {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == CodeUniqueViolation,
			pgErr.Code == CodeSerializationFailure,
			pgErr.Code == CodeDeadlockDetected:
			return &conflictError{err: err}
		case pgErr.Code == CodeTooManyConnections,
			pgErr.Code == CodeAdminShutdown,
			pgErr.Code == CodeCannotConnectNow,
			len(pgErr.Code) == 5 && pgErr.Code[:2] == "08":
			return apperror.NewStoreUnavailable(err)
		}
		return err
	}

	if IsUnavailable(err) {
		return apperror.NewStoreUnavailable(err)
	}
	return err
}

// IsUnavailable reports whether err means the database could not be reached.
func IsUnavailable(err error) bool {
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return pgconn.Timeout(err)
}

// IsUniqueViolation reports whether err violates the named constraint.
// An empty name matches any unique constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != CodeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
