package register

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tillcore/internal/core/apperror"
	"tillcore/internal/core/clock"
	"tillcore/internal/core/id"
	"tillcore/internal/core/tx"
	"tillcore/internal/domain"
)

type memRepo struct {
	mu       sync.Mutex
	sessions []Session
}

func (m *memRepo) FindLatestOpen(_ context.Context, actorID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *Session
	for i := range m.sessions {
		s := m.sessions[i]
		if s.ActorID != actorID || !s.IsOpen() {
			continue
		}
		if best == nil || s.OpenedAt.After(best.OpenedAt) {
			cp := s
			best = &cp
		}
	}
	return best, nil
}

func (m *memRepo) Insert(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, *s)
	return nil
}

func (m *memRepo) MarkClosed(_ context.Context, sessionID id.ID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sessions {
		if m.sessions[i].ID == sessionID && m.sessions[i].IsOpen() {
			m.sessions[i].Status = StatusClosed
			m.sessions[i].ClosedAt = &at
			return true, nil
		}
	}
	return false, nil
}

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestGate_NoActor(t *testing.T) {
	g := NewGate(&memRepo{})

	_, err := g.Resolve(context.Background(), nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))
}

func TestGate_ClosedRegisterDoesNotInvokeOperation(t *testing.T) {
	g := NewGate(&memRepo{})
	invoked := false

	err := g.Guard(context.Background(), &domain.Actor{ID: "3", Name: "john"}, func(context.Context, OpenSession) error {
		invoked = true
		return nil
	})

	require.Error(t, err)
	assert.False(t, invoked)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeRegisterClosed, appErr.Code)
	assert.Equal(t, "No open cash register session. Open a register before processing sales.", appErr.Message)
}

func TestGate_ClosedSessionIsIgnored(t *testing.T) {
	closedAt := t0.Add(time.Hour)
	repo := &memRepo{sessions: []Session{
		{ID: id.New(), ActorID: "3", Status: StatusOpen, OpenedAt: t0, ClosedAt: &closedAt},
		{ID: id.New(), ActorID: "3", Status: StatusClosed, OpenedAt: t0},
	}}

	_, err := NewGate(repo).Resolve(context.Background(), &domain.Actor{ID: "3"})
	assert.True(t, apperror.HasCode(err, apperror.CodeRegisterClosed))
}

func TestGate_PicksLatestOpened(t *testing.T) {
	older := Session{ID: id.New(), ActorID: "3", Status: StatusOpen, OpenedAt: t0}
	newer := Session{ID: id.New(), ActorID: "3", Status: StatusOpen, OpenedAt: t0.Add(time.Minute)}
	other := Session{ID: id.New(), ActorID: "4", Status: StatusOpen, OpenedAt: t0.Add(time.Hour)}
	repo := &memRepo{sessions: []Session{older, newer, other}}

	got, err := Within(context.Background(), NewGate(repo), &domain.Actor{ID: "3", Name: "john"},
		func(_ context.Context, s OpenSession) (id.ID, error) {
			return s.SessionID(), nil
		})

	require.NoError(t, err)
	assert.Equal(t, newer.ID, got)
}

func TestGate_PassesOperationError(t *testing.T) {
	repo := &memRepo{sessions: []Session{{ID: id.New(), ActorID: "3", Status: StatusOpen, OpenedAt: t0}}}
	want := apperror.NewValidation("bad payload")

	err := NewGate(repo).Guard(context.Background(), &domain.Actor{ID: "3"}, func(_ context.Context, s OpenSession) error {
		assert.Equal(t, "3", s.Actor().ID)
		return want
	})

	assert.Same(t, want, err)
}

func TestService_OpenCloseLifecycle(t *testing.T) {
	repo := &memRepo{}
	clk := clock.NewFixed(t0)
	svc := NewService(repo, tx.Passthrough, clk)
	actor := &domain.Actor{ID: "3", Name: "john"}
	ctx := context.Background()

	_, err := svc.Current(ctx, actor)
	assert.True(t, apperror.HasCode(err, apperror.CodeRegisterClosed))

	opened, err := svc.Open(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, opened.Status)
	assert.Equal(t, t0, opened.OpenedAt)

	_, err = svc.Open(ctx, actor)
	assert.True(t, apperror.HasCode(err, apperror.CodeRegisterAlreadyOpen))

	current, err := svc.Current(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, opened.ID, current.ID)

	clk.Advance(8 * time.Hour)
	closed, err := svc.Close(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)
	assert.Equal(t, t0.Add(8*time.Hour), *closed.ClosedAt)

	_, err = svc.Close(ctx, actor)
	assert.True(t, apperror.HasCode(err, apperror.CodeRegisterClosed))

	_, err = NewGate(repo).Resolve(ctx, actor)
	assert.True(t, apperror.HasCode(err, apperror.CodeRegisterClosed))
}
