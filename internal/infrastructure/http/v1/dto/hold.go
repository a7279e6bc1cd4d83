package dto

import (
	"encoding/json"
	"time"

	"tillcore/internal/domain/heldsale"
)

// CreateHoldRequest is the body of POST /holds. The acting cashier comes
// from the access token.
type CreateHoldRequest struct {
	TerminalID string          `json:"terminalId"`
	Payload    json.RawMessage `json:"payload"`
	Notes      *string         `json:"notes"`
}

// ToInput converts the request for actorID.
func (r CreateHoldRequest) ToInput(actorID string) heldsale.CreateInput {
	return heldsale.CreateInput{
		TerminalID: r.TerminalID,
		ActorID:    actorID,
		Payload:    r.Payload,
		Notes:      r.Notes,
	}
}

// ListHoldsQuery holds GET /holds query parameters.
type ListHoldsQuery struct {
	TerminalID string `form:"terminalId"`
	ActorID    string `form:"actorId"`
	Status     string `form:"status"`
	Limit      int    `form:"limit"`
}

// ToQuery converts the query parameters.
func (q ListHoldsQuery) ToQuery() heldsale.ListQuery {
	return heldsale.ListQuery{
		TerminalID: q.TerminalID,
		ActorID:    q.ActorID,
		Status:     q.Status,
		Limit:      q.Limit,
	}
}

// HeldSaleResponse is a held sale as read at a point in time: a hold past
// its expiry reads as expired.
type HeldSaleResponse struct {
	HoldID      string          `json:"holdId"`
	TerminalID  string          `json:"terminalId"`
	ActorID     string          `json:"actorId"`
	Payload     json.RawMessage `json:"payload"`
	Notes       *string         `json:"notes"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	ExpiresAt   *time.Time      `json:"expiresAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// FromHeldSale maps a held sale to its response as seen at now.
func FromHeldSale(h *heldsale.HeldSale, now time.Time) HeldSaleResponse {
	return HeldSaleResponse{
		HoldID:      h.HoldID,
		TerminalID:  h.TerminalID,
		ActorID:     h.ActorID,
		Payload:     h.Payload,
		Notes:       h.Notes,
		Status:      string(h.EffectiveStatus(now)),
		CreatedAt:   h.CreatedAt,
		ExpiresAt:   h.ExpiresAt,
		CompletedAt: h.CompletedAt,
	}
}

// FromHeldSales maps a list of held sales.
func FromHeldSales(items []*heldsale.HeldSale, now time.Time) []HeldSaleResponse {
	out := make([]HeldSaleResponse, 0, len(items))
	for _, h := range items {
		out = append(out, FromHeldSale(h, now))
	}
	return out
}
