// Package heldsale parks in-progress sales so they can be resumed exactly once
// or expire safely.
package heldsale

import (
	"encoding/json"
	"time"

	"tillcore/internal/core/id"
)

// Status is the lifecycle state of a held sale.
type Status string

const (
	StatusHeld      Status = "held"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
)

// transitions lists the allowed moves. completed and expired are terminal.
var transitions = map[Status][]Status{
	StatusHeld: {StatusCompleted, StatusExpired},
}

// CanTransition reports whether a held sale may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusHeld, StatusCompleted, StatusExpired:
		return true
	}
	return false
}

// HeldSale is a parked, not yet finalized sale.
type HeldSale struct {
	ID          id.ID           `db:"id" json:"-"`
	HoldID      string          `db:"hold_id" json:"holdId"`
	TerminalID  string          `db:"terminal_id" json:"terminalId"`
	ActorID     string          `db:"actor_id" json:"actorId"`
	Payload     json.RawMessage `db:"payload" json:"payload"`
	Notes       *string         `db:"notes" json:"notes,omitempty"`
	Status      Status          `db:"status" json:"status"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	ExpiresAt   *time.Time      `db:"expires_at" json:"expiresAt"`
	CompletedAt *time.Time      `db:"completed_at" json:"completedAt,omitempty"`
}

// IsActive reports whether the hold can still be recalled at now.
func (h *HeldSale) IsActive(now time.Time) bool {
	return h.Status == StatusHeld && (h.ExpiresAt == nil || h.ExpiresAt.After(now))
}

// EffectiveStatus is the status a reader observes at now: a held sale past
// its expiry is expired even before the sweep reaches it.
func (h *HeldSale) EffectiveStatus(now time.Time) Status {
	if h.Status == StatusHeld && !h.IsActive(now) {
		return StatusExpired
	}
	return h.Status
}
