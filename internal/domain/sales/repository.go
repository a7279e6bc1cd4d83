package sales

import "context"

// Repository persists finalized sales.
type Repository interface {
	// Insert stores the sale. A duplicate bill number surfaces as tx.ErrConflict.
	Insert(ctx context.Context, s *Sale) error

	// GetByBillNumber returns apperror NotFound when absent.
	GetByBillNumber(ctx context.Context, billNumber string) (*Sale, error)
}
