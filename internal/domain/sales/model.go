// Package sales finalizes sales and stamps them with a bill number.
package sales

import (
	"encoding/json"
	"time"

	"tillcore/internal/core/id"
	"tillcore/internal/core/types"
)

// Sale is a finalized sale.
type Sale struct {
	ID                id.ID           `db:"id" json:"id"`
	BillNumber        string          `db:"bill_number" json:"billNumber"`
	RegisterSessionID id.ID           `db:"register_session_id" json:"registerSessionId"`
	TerminalID        string          `db:"terminal_id" json:"terminalId"`
	ActorID           string          `db:"actor_id" json:"actorId"`
	ActorName         string          `db:"actor_name" json:"actorName"`
	HoldID            *string         `db:"hold_id" json:"holdId,omitempty"`
	Payload           json.RawMessage `db:"payload" json:"payload"`
	Total             types.Money     `db:"total" json:"total"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
}

// FinalizeInput is the checkout request of a new sale.
type FinalizeInput struct {
	TerminalID string
	Payload    json.RawMessage
	Total      types.Money
}
