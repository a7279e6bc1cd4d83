package dto

import (
	"encoding/json"
	"time"

	"tillcore/internal/core/apperror"
	"tillcore/internal/core/types"
	"tillcore/internal/domain/sales"
)

// FinalizeSaleRequest is the body of POST /sales.
type FinalizeSaleRequest struct {
	TerminalID string          `json:"terminalId"`
	Payload    json.RawMessage `json:"payload"`
	Total      string          `json:"total"`
}

// ToInput converts the request; a malformed total is a field error.
func (r FinalizeSaleRequest) ToInput() (sales.FinalizeInput, error) {
	total, err := parseTotal(r.Total)
	if err != nil {
		return sales.FinalizeInput{}, err
	}
	return sales.FinalizeInput{
		TerminalID: r.TerminalID,
		Payload:    r.Payload,
		Total:      total,
	}, nil
}

// FinalizeHoldRequest is the body of POST /holds/:holdId/finalize.
type FinalizeHoldRequest struct {
	Total string `json:"total"`
}

// ParsedTotal returns the total as money.
func (r FinalizeHoldRequest) ParsedTotal() (types.Money, error) {
	return parseTotal(r.Total)
}

func parseTotal(raw string) (types.Money, error) {
	total, err := types.ParseMoney(raw)
	if err != nil {
		return types.Money{}, apperror.NewFieldValidation(map[string]string{"total": err.Error()})
	}
	return total, nil
}

// SaleResponse is a finalized sale.
type SaleResponse struct {
	ID                string          `json:"id"`
	BillNumber        string          `json:"billNumber"`
	RegisterSessionID string          `json:"registerSessionId"`
	TerminalID        string          `json:"terminalId"`
	ActorID           string          `json:"actorId"`
	ActorName         string          `json:"actorName"`
	HoldID            *string         `json:"holdId,omitempty"`
	Payload           json.RawMessage `json:"payload"`
	Total             string          `json:"total"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// FromSale maps a sale to its response.
func FromSale(s *sales.Sale) SaleResponse {
	return SaleResponse{
		ID:                s.ID.String(),
		BillNumber:        s.BillNumber,
		RegisterSessionID: s.RegisterSessionID.String(),
		TerminalID:        s.TerminalID,
		ActorID:           s.ActorID,
		ActorName:         s.ActorName,
		HoldID:            s.HoldID,
		Payload:           s.Payload,
		Total:             s.Total.StringFixed(types.MoneyScale),
		CreatedAt:         s.CreatedAt,
	}
}
