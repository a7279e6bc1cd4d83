// Package register gates sales behind an open cash-register session.
package register

import (
	"time"

	"tillcore/internal/core/id"
	"tillcore/internal/domain"
)

// Status of a register session.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Session is one open-to-close cash drawer period of one actor.
type Session struct {
	ID       id.ID      `db:"id" json:"id"`
	ActorID  string     `db:"actor_id" json:"actorId"`
	Status   Status     `db:"status" json:"status"`
	OpenedAt time.Time  `db:"opened_at" json:"openedAt"`
	ClosedAt *time.Time `db:"closed_at" json:"closedAt,omitempty"`
}

// IsOpen reports whether the session admits sales.
func (s *Session) IsOpen() bool {
	return s.Status == StatusOpen && s.ClosedAt == nil
}

// OpenSession is the capability handed to operations admitted by the Gate.
// It can only be obtained from Gate.Resolve, so holding one proves the
// precondition was checked for this actor.
type OpenSession struct {
	session Session
	actor   domain.Actor
}

// SessionID returns the id of the open register session.
func (o OpenSession) SessionID() id.ID { return o.session.ID }

// OpenedAt returns when the session was opened.
func (o OpenSession) OpenedAt() time.Time { return o.session.OpenedAt }

// Actor returns the actor the session was resolved for.
func (o OpenSession) Actor() domain.Actor { return o.actor }

// Session returns a copy of the underlying session record.
func (o OpenSession) Session() Session { return o.session }
