package domain

import (
	"context"
	"strings"

	appctx "tillcore/internal/core/context"
)

// Actor is the authenticated cashier performing an operation.
type Actor struct {
	ID   string
	Name string
}

// ActorFromContext returns the actor authenticated for the request, or nil.
func ActorFromContext(ctx context.Context) *Actor {
	u := appctx.GetUser(ctx)
	if u == nil || strings.TrimSpace(u.UserID) == "" {
		return nil
	}
	return &Actor{ID: u.UserID, Name: u.DisplayName}
}
