package heldsale

import (
	"context"
	"sort"
	"sync"
	"time"

	"tillcore/internal/core/apperror"
	"tillcore/internal/core/id"
	"tillcore/internal/domain"
)

// memRepo mirrors the conditional updates of the SQL repository under one mutex.
type memRepo struct {
	mu    sync.Mutex
	holds map[string]*HeldSale
}

func newMemRepo() *memRepo {
	return &memRepo{holds: make(map[string]*HeldSale)}
}

func clone(h *HeldSale) *HeldSale {
	cp := *h
	return &cp
}

func (m *memRepo) Create(_ context.Context, h *HeldSale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.holds[h.HoldID]; taken {
		return ErrHoldIDTaken
	}
	m.holds[h.HoldID] = clone(h)
	return nil
}

func (m *memRepo) GetByHoldID(_ context.Context, holdID string) (*HeldSale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holds[holdID]
	if !ok {
		return nil, apperror.NewNotFound("held sale", holdID)
	}
	return clone(h), nil
}

func (m *memRepo) List(_ context.Context, f ListFilter) ([]*HeldSale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*HeldSale
	for _, h := range m.holds {
		if f.TerminalID != nil && h.TerminalID != *f.TerminalID {
			continue
		}
		if f.ActorID != nil && h.ActorID != *f.ActorID {
			continue
		}
		switch {
		case f.Status == nil:
			if !h.IsActive(f.Now) {
				continue
			}
		case *f.Status == StatusExpired:
			if h.EffectiveStatus(f.Now) != StatusExpired {
				continue
			}
		default:
			if h.Status != *f.Status {
				continue
			}
		}
		out = append(out, clone(h))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memRepo) Consume(_ context.Context, holdID string, now time.Time) (*HeldSale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holds[holdID]
	if !ok || !h.IsActive(now) {
		return nil, nil
	}
	h.Status = StatusCompleted
	h.CompletedAt = &now
	return clone(h), nil
}

func (m *memRepo) Expire(_ context.Context, holdID string, due *time.Time) (*HeldSale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holds[holdID]
	if !ok || h.Status != StatusHeld {
		return nil, nil
	}
	if due != nil && (h.ExpiresAt == nil || h.ExpiresAt.After(*due)) {
		return nil, nil
	}
	h.Status = StatusExpired
	return clone(h), nil
}

func (m *memRepo) Remove(_ context.Context, rowID id.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, h := range m.holds {
		if h.ID == rowID {
			delete(m.holds, k)
		}
	}
	return nil
}

func (m *memRepo) ListDue(_ context.Context, now time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []*HeldSale
	for _, h := range m.holds {
		if h.Status == StatusHeld && h.ExpiresAt != nil && !h.ExpiresAt.After(now) {
			due = append(due, h)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ExpiresAt.Before(*due[j].ExpiresAt) })
	ids := make([]string, 0, len(due))
	for i, h := range due {
		if limit > 0 && i >= limit {
			break
		}
		ids = append(ids, h.HoldID)
	}
	return ids, nil
}

type recordedEvents struct {
	mu    sync.Mutex
	types []string
}

func (r *recordedEvents) Publish(_ context.Context, e domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, e.EventType)
	return nil
}

type recordedAudit struct {
	mu      sync.Mutex
	actions []string
}

func (r *recordedAudit) LogChange(_ context.Context, _ string, _ id.ID, action domain.AuditAction, _ map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, string(action))
	return nil
}
