package heldsale

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"tillcore/internal/core/apperror"
	"tillcore/internal/core/clock"
	"tillcore/internal/core/id"
	"tillcore/internal/core/tx"
	"tillcore/internal/domain"
	"tillcore/pkg/logger"
)

// EntityType names held sales in the audit archive and the outbox.
const EntityType = "held_sale"

// DefaultSweepBatch is the number of due holds fetched per sweep round.
const DefaultSweepBatch = 100

// createAttempts bounds retries of Create on a hold id clash.
const createAttempts = 3

// CreateInput carries the fields of a new hold.
type CreateInput struct {
	TerminalID string
	ActorID    string
	Payload    json.RawMessage
	Notes      *string
}

// ListQuery is the caller-facing filter of List.
type ListQuery struct {
	TerminalID string
	ActorID    string
	Status     string
	Limit      int
}

// Service implements the held sale store.
type Service struct {
	repo       Repository
	txManager  tx.Manager
	clock      clock.Clock
	policy     ExpiryPolicy
	events     domain.EventPublisher
	audit      domain.AuditLogger
	sweepBatch int
	newHoldID  func() string
}

// Option configures a Service.
type Option func(*Service)

// WithEvents sets the outbox publisher.
func WithEvents(p domain.EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

// WithAudit sets the audit archive.
func WithAudit(a domain.AuditLogger) Option {
	return func(s *Service) { s.audit = a }
}

// WithSweepBatch sets how many due holds a sweep round fetches.
func WithSweepBatch(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sweepBatch = n
		}
	}
}

// NewService creates a held sale service.
func NewService(repo Repository, txManager tx.Manager, clk clock.Clock, policy ExpiryPolicy, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		txManager:  txManager,
		clock:      clk,
		policy:     policy,
		events:     domain.NopPublisher,
		audit:      domain.NopAudit,
		sweepBatch: DefaultSweepBatch,
		newHoldID:  id.NewHoldID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create parks a sale payload and returns the stored hold.
func (s *Service) Create(ctx context.Context, in CreateInput) (*HeldSale, error) {
	fields := make(map[string]string)
	terminalID := strings.TrimSpace(in.TerminalID)
	actorID := strings.TrimSpace(in.ActorID)
	if terminalID == "" {
		fields["terminalId"] = "required"
	}
	if actorID == "" {
		fields["actorId"] = "required"
	}
	if !domain.ValidPayload(in.Payload) {
		fields["payload"] = "must be a JSON object or array"
	}
	if len(fields) > 0 {
		return nil, apperror.NewFieldValidation(fields)
	}

	now := s.clock.Now()
	h := &HeldSale{
		ID:         id.New(),
		TerminalID: terminalID,
		ActorID:    actorID,
		Payload:    in.Payload,
		Notes:      in.Notes,
		Status:     StatusHeld,
		CreatedAt:  now,
		ExpiresAt:  s.policy.ExpiresAt(now),
	}

	var err error
	for attempt := 1; attempt <= createAttempts; attempt++ {
		h.HoldID = s.newHoldID()
		err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			if err := s.repo.Create(ctx, h); err != nil {
				return fmt.Errorf("create hold: %w", err)
			}
			return s.events.Publish(ctx, s.event(domain.EventHoldCreated, h, nil))
		})
		if !errors.Is(err, ErrHoldIDTaken) {
			break
		}
		logger.Warn(ctx, "hold id collision, retrying", "hold_id", h.HoldID, "attempt", attempt)
	}
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "sale held", "hold_id", h.HoldID, "terminal_id", h.TerminalID)
	return h, nil
}

// List returns a snapshot of holds matching q. Without a status only
// active holds are returned.
func (s *Service) List(ctx context.Context, q ListQuery) ([]*HeldSale, error) {
	f := ListFilter{Now: s.clock.Now(), Limit: EffectiveLimit(q.Limit)}

	if v := strings.TrimSpace(q.TerminalID); v != "" {
		f.TerminalID = &v
	}
	if v := strings.TrimSpace(q.ActorID); v != "" {
		f.ActorID = &v
	}
	if v := strings.TrimSpace(q.Status); v != "" {
		st := Status(strings.ToLower(v))
		if !st.IsValid() {
			return nil, apperror.NewFieldValidation(map[string]string{"status": "must be held, completed or expired"})
		}
		f.Status = &st
	}
	return s.repo.List(ctx, f)
}

// Get returns a hold by its public id.
func (s *Service) Get(ctx context.Context, holdID string) (*HeldSale, error) {
	return s.repo.GetByHoldID(ctx, holdID)
}

// Recall consumes an active hold and returns it with its payload.
// Exactly one of any number of concurrent recalls succeeds.
func (s *Service) Recall(ctx context.Context, holdID string) (*HeldSale, error) {
	h, err := s.Take(ctx, holdID)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "hold recalled", "hold_id", h.HoldID)
	return h, nil
}

// Take performs the recall transition, archive and event of Recall in the
// caller's transaction. It does not log: the caller reports the recall once
// its transaction commits.
func (s *Service) Take(ctx context.Context, holdID string) (*HeldSale, error) {
	var h *HeldSale
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		now := s.clock.Now()
		var err error
		h, err = s.repo.Consume(ctx, holdID, now)
		if err != nil {
			return fmt.Errorf("consume hold: %w", err)
		}
		if h == nil {
			return s.missError(ctx, holdID, now)
		}

		if err := s.audit.LogChange(ctx, EntityType, h.ID, domain.AuditActionRecall, archive(h)); err != nil {
			return err
		}
		return s.events.Publish(ctx, s.event(domain.EventHoldRecalled, h, nil))
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Delete expires a held sale and removes it in one transaction.
func (s *Service) Delete(ctx context.Context, holdID string) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		h, err := s.repo.Expire(ctx, holdID, nil)
		if err != nil {
			return fmt.Errorf("expire hold: %w", err)
		}
		if h == nil {
			return s.missError(ctx, holdID, s.clock.Now())
		}
		return s.retire(ctx, h, domain.AuditActionDelete, "deleted")
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "hold deleted", "hold_id", holdID)
	return nil
}

// ExpireSweep expires and removes every held sale due at now and returns how
// many it processed. Holds recalled or deleted concurrently are skipped.
func (s *Service) ExpireSweep(ctx context.Context, now time.Time) (int, error) {
	count := 0
	for {
		ids, err := s.repo.ListDue(ctx, now, s.sweepBatch)
		if err != nil {
			return count, fmt.Errorf("list due holds: %w", err)
		}

		for _, holdID := range ids {
			expired, err := s.expireOne(ctx, holdID, now)
			if err != nil {
				return count, err
			}
			if expired {
				count++
			}
		}

		if len(ids) < s.sweepBatch {
			break
		}
	}

	if count > 0 {
		logger.Info(ctx, "expired held sales", "count", count, "now", now)
	}
	return count, nil
}

func (s *Service) expireOne(ctx context.Context, holdID string, now time.Time) (bool, error) {
	expired := false
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		h, err := s.repo.Expire(ctx, holdID, &now)
		if err != nil {
			return fmt.Errorf("expire hold %s: %w", holdID, err)
		}
		if h == nil {
			return nil
		}
		expired = true
		return s.retire(ctx, h, domain.AuditActionExpire, "expired")
	})
	return expired, err
}

// retire archives an expired hold, records the event and removes the row.
func (s *Service) retire(ctx context.Context, h *HeldSale, action domain.AuditAction, reason string) error {
	if err := s.audit.LogChange(ctx, EntityType, h.ID, action, archive(h)); err != nil {
		return err
	}
	if err := s.events.Publish(ctx, s.event(domain.EventHoldExpired, h, map[string]any{"reason": reason})); err != nil {
		return err
	}
	return s.repo.Remove(ctx, h.ID)
}

// missError explains why a conditional transition matched nothing.
func (s *Service) missError(ctx context.Context, holdID string, now time.Time) error {
	h, err := s.repo.GetByHoldID(ctx, holdID)
	if err != nil {
		return err
	}
	return apperror.NewHoldInactive(holdID, string(h.EffectiveStatus(now)))
}

func (s *Service) event(eventType string, h *HeldSale, extra map[string]any) domain.Event {
	payload := map[string]any{
		"hold_id":     h.HoldID,
		"terminal_id": h.TerminalID,
		"actor_id":    h.ActorID,
		"status":      h.Status,
	}
	if h.ExpiresAt != nil {
		payload["expires_at"] = h.ExpiresAt
	}
	for k, v := range extra {
		payload[k] = v
	}
	return domain.Event{
		AggregateType: EntityType,
		AggregateID:   h.ID,
		EventType:     eventType,
		Payload:       payload,
	}
}

func archive(h *HeldSale) map[string]any {
	changes := map[string]any{
		"hold_id":     h.HoldID,
		"terminal_id": h.TerminalID,
		"actor_id":    h.ActorID,
		"status":      h.Status,
		"created_at":  h.CreatedAt,
		"payload":     h.Payload,
	}
	if h.Notes != nil {
		changes["notes"] = *h.Notes
	}
	if h.ExpiresAt != nil {
		changes["expires_at"] = *h.ExpiresAt
	}
	return changes
}
