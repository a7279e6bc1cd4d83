// Package billing mints bill numbers for finalized sales.
package billing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"tillcore/internal/core/numerator"
	"tillcore/internal/core/tx"
	"tillcore/internal/domain"
)

var tracer = otel.Tracer("tillcore/billing")

// BillNumber is a rendered bill number, e.g. U7/ALX/0042.
type BillNumber string

func (b BillNumber) String() string { return string(b) }

// Allocator issues strictly increasing bill numbers per actor scope.
//
// Allocate must run inside the transaction that persists the sale: a sale
// that fails to commit also rolls back its counter advance, so no number is
// ever observed twice or skipped by a committed sale.
type Allocator struct {
	seq       numerator.Sequencer
	txManager tx.Manager
}

// NewAllocator creates an allocator over the given sequencer.
func NewAllocator(seq numerator.Sequencer, txManager tx.Manager) *Allocator {
	if txManager == nil {
		txManager = tx.Passthrough
	}
	return &Allocator{seq: seq, txManager: txManager}
}

// Allocate returns the next bill number of actor's scope.
func (a *Allocator) Allocate(ctx context.Context, actor domain.Actor) (BillNumber, error) {
	scope := numerator.NewScope(actor.ID, actor.Name)

	ctx, span := tracer.Start(ctx, "billing.Allocate")
	defer span.End()
	span.SetAttributes(attribute.String("billing.scope", scope.Key()))

	var number BillNumber
	err := a.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		last, found, err := a.seq.LastIssued(ctx, scope.Key())
		if err != nil {
			return fmt.Errorf("read last bill number: %w", err)
		}

		var floor int64
		if found {
			floor = numerator.ParseCounter(last)
		}

		next, err := a.seq.Advance(ctx, scope.Key(), floor)
		if err != nil {
			return fmt.Errorf("advance scope %s: %w", scope.Key(), err)
		}

		number = BillNumber(scope.Format(next))
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetAttributes(attribute.String("billing.number", number.String()))
	return number, nil
}
