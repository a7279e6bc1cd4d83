package domain

import (
	"context"

	"tillcore/internal/core/id"
)

// Event types emitted by the core.
const (
	EventSaleFinalized = "sale.finalized"
	EventHoldCreated   = "hold.created"
	EventHoldRecalled  = "hold.recalled"
	EventHoldExpired   = "hold.expired"
)

// Event is a domain event recorded in the same transaction as the change it describes.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// EventPublisher records domain events (transactional outbox).
// Publish must be called inside a transaction context.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// AuditAction represents the type of audited operation.
type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionRecall AuditAction = "recall"
	AuditActionExpire AuditAction = "expire"
	AuditActionDelete AuditAction = "delete"
)

// AuditLogger archives state changes of records that may later be removed.
type AuditLogger interface {
	LogChange(ctx context.Context, entityType string, entityID id.ID, action AuditAction, changes map[string]any) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }

type nopAudit struct{}

func (nopAudit) LogChange(context.Context, string, id.ID, AuditAction, map[string]any) error {
	return nil
}

// NopPublisher discards events.
var NopPublisher EventPublisher = nopPublisher{}

// NopAudit discards audit records.
var NopAudit AuditLogger = nopAudit{}
