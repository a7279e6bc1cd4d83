package dto

import (
	"time"

	"tillcore/internal/domain/register"
)

// RegisterSessionResponse is a register session as returned by the API.
type RegisterSessionResponse struct {
	ID       string     `json:"id"`
	ActorID  string     `json:"actorId"`
	Status   string     `json:"status"`
	OpenedAt time.Time  `json:"openedAt"`
	ClosedAt *time.Time `json:"closedAt,omitempty"`
}

// FromRegisterSession maps a session to its response.
func FromRegisterSession(s *register.Session) RegisterSessionResponse {
	return RegisterSessionResponse{
		ID:       s.ID.String(),
		ActorID:  s.ActorID,
		Status:   string(s.Status),
		OpenedAt: s.OpenedAt,
		ClosedAt: s.ClosedAt,
	}
}
