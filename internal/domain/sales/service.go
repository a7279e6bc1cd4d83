package sales

import (
	"context"
	"fmt"
	"strings"

	"tillcore/internal/core/apperror"
	"tillcore/internal/core/clock"
	"tillcore/internal/core/id"
	"tillcore/internal/core/numerator"
	"tillcore/internal/core/tx"
	"tillcore/internal/core/types"
	"tillcore/internal/domain"
	"tillcore/internal/domain/billing"
	"tillcore/internal/domain/heldsale"
	"tillcore/internal/domain/register"
	"tillcore/pkg/logger"
)

// DefaultRetries is the number of finalize attempts on numbering conflicts.
const DefaultRetries = 5

// HoldTaker consumes a held sale inside the caller's transaction.
type HoldTaker interface {
	Take(ctx context.Context, holdID string) (*heldsale.HeldSale, error)
}

// Service finalizes sales.
//
// Finalize and FinalizeHeld open their own transactions per attempt and
// must not be called inside an outer transaction.
type Service struct {
	repo      Repository
	allocator *billing.Allocator
	holds     HoldTaker
	txManager tx.Manager
	clock     clock.Clock
	events    domain.EventPublisher
	retries   int
}

// NewService creates a sales service.
func NewService(
	repo Repository,
	allocator *billing.Allocator,
	holds HoldTaker,
	txManager tx.Manager,
	clk clock.Clock,
	events domain.EventPublisher,
	retries int,
) *Service {
	if events == nil {
		events = domain.NopPublisher
	}
	if retries <= 0 {
		retries = DefaultRetries
	}
	return &Service{
		repo:      repo,
		allocator: allocator,
		holds:     holds,
		txManager: txManager,
		clock:     clk,
		events:    events,
		retries:   retries,
	}
}

// Finalize numbers and stores a sale for the open session.
func (s *Service) Finalize(ctx context.Context, session register.OpenSession, in FinalizeInput) (*Sale, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	in.TerminalID = strings.TrimSpace(in.TerminalID)

	return s.withRetry(ctx, session, func(ctx context.Context) (*Sale, error) {
		return s.insert(ctx, session, in, nil)
	})
}

// FinalizeHeld recalls a held sale and finalizes its payload in the same
// transaction. A failed finalize leaves the hold recallable.
func (s *Service) FinalizeHeld(ctx context.Context, session register.OpenSession, holdID string, total types.Money) (*Sale, error) {
	if err := types.CheckAmount(total); err != nil {
		return nil, apperror.NewFieldValidation(map[string]string{"total": err.Error()})
	}

	return s.withRetry(ctx, session, func(ctx context.Context) (*Sale, error) {
		h, err := s.holds.Take(ctx, holdID)
		if err != nil {
			return nil, err
		}
		in := FinalizeInput{TerminalID: h.TerminalID, Payload: h.Payload, Total: total}
		return s.insert(ctx, session, in, &h.HoldID)
	})
}

// Get returns a sale by bill number.
func (s *Service) Get(ctx context.Context, billNumber string) (*Sale, error) {
	return s.repo.GetByBillNumber(ctx, billNumber)
}

func (s *Service) withRetry(ctx context.Context, session register.OpenSession, attempt func(ctx context.Context) (*Sale, error)) (*Sale, error) {
	actor := session.Actor()

	var lastErr error
	for i := 1; i <= s.retries; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var sale *Sale
		err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			var err error
			sale, err = attempt(ctx)
			return err
		})
		if err == nil {
			logger.Info(ctx, "sale finalized",
				"bill_number", sale.BillNumber,
				"session_id", sale.RegisterSessionID,
				"hold_id", sale.HoldID,
				"attempt", i,
			)
			return sale, nil
		}
		if !tx.IsConflict(err) {
			return nil, err
		}

		lastErr = err
		logger.Warn(ctx, "bill number conflict, retrying", "attempt", i, "error", err)
	}

	scope := numerator.NewScope(actor.ID, actor.Name).Key()
	logger.Error(ctx, "bill numbering retries exhausted", "scope", scope, "error", lastErr)
	return nil, apperror.NewNumberingConflict(scope, s.retries).WithCause(lastErr)
}

func (s *Service) insert(ctx context.Context, session register.OpenSession, in FinalizeInput, holdID *string) (*Sale, error) {
	actor := session.Actor()

	number, err := s.allocator.Allocate(ctx, actor)
	if err != nil {
		return nil, err
	}

	sale := &Sale{
		ID:                id.New(),
		BillNumber:        number.String(),
		RegisterSessionID: session.SessionID(),
		TerminalID:        in.TerminalID,
		ActorID:           actor.ID,
		ActorName:         actor.Name,
		HoldID:            holdID,
		Payload:           in.Payload,
		Total:             in.Total,
		CreatedAt:         s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, sale); err != nil {
		return nil, fmt.Errorf("insert sale %s: %w", sale.BillNumber, err)
	}

	event := domain.Event{
		AggregateType: "sale",
		AggregateID:   sale.ID,
		EventType:     domain.EventSaleFinalized,
		Payload: map[string]any{
			"bill_number":         sale.BillNumber,
			"register_session_id": sale.RegisterSessionID,
			"terminal_id":         sale.TerminalID,
			"actor_id":            sale.ActorID,
			"hold_id":             sale.HoldID,
			"total":               sale.Total.StringFixed(2),
		},
	}
	if err := s.events.Publish(ctx, event); err != nil {
		return nil, err
	}
	return sale, nil
}

func validate(in FinalizeInput) error {
	fields := make(map[string]string)
	if strings.TrimSpace(in.TerminalID) == "" {
		fields["terminalId"] = "required"
	}
	if !domain.ValidPayload(in.Payload) {
		fields["payload"] = "must be a JSON object or array"
	}
	if err := types.CheckAmount(in.Total); err != nil {
		fields["total"] = err.Error()
	}
	if len(fields) > 0 {
		return apperror.NewFieldValidation(fields)
	}
	return nil
}
