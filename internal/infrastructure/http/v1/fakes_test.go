package v1

import (
	"context"
	"sort"
	"sync"
	"time"

	"tillcore/internal/core/apperror"
	"tillcore/internal/core/id"
	"tillcore/internal/core/tx"
	"tillcore/internal/domain/heldsale"
	"tillcore/internal/domain/register"
	"tillcore/internal/domain/sales"
)

type sessionStore struct {
	mu       sync.Mutex
	sessions []register.Session
}

func (m *sessionStore) FindLatestOpen(_ context.Context, actorID string) (*register.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sessions) - 1; i >= 0; i-- {
		if s := m.sessions[i]; s.ActorID == actorID && s.IsOpen() {
			return &s, nil
		}
	}
	return nil, nil
}

func (m *sessionStore) Insert(_ context.Context, s *register.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, *s)
	return nil
}

func (m *sessionStore) MarkClosed(_ context.Context, sessionID id.ID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sessions {
		if m.sessions[i].ID == sessionID && m.sessions[i].IsOpen() {
			m.sessions[i].Status = register.StatusClosed
			m.sessions[i].ClosedAt = &at
			return true, nil
		}
	}
	return false, nil
}

type saleStore struct {
	mu    sync.Mutex
	sales map[string]sales.Sale
}

func newSaleStore() *saleStore {
	return &saleStore{sales: make(map[string]sales.Sale)}
}

func (m *saleStore) Insert(_ context.Context, s *sales.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.sales[s.BillNumber]; dup {
		return tx.ErrConflict
	}
	m.sales[s.BillNumber] = *s
	return nil
}

func (m *saleStore) GetByBillNumber(_ context.Context, billNumber string) (*sales.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sales[billNumber]
	if !ok {
		return nil, apperror.NewNotFound("sale", billNumber)
	}
	return &s, nil
}

func (m *saleStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sales)
}

// holdStore keeps held sales in memory with the same conditional updates
// as the SQL repository.
type holdStore struct {
	mu    sync.Mutex
	holds map[string]heldsale.HeldSale
}

func newHoldStore() *holdStore {
	return &holdStore{holds: make(map[string]heldsale.HeldSale)}
}

func (m *holdStore) Create(_ context.Context, h *heldsale.HeldSale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.holds[h.HoldID]; taken {
		return heldsale.ErrHoldIDTaken
	}
	m.holds[h.HoldID] = *h
	return nil
}

func (m *holdStore) GetByHoldID(_ context.Context, holdID string) (*heldsale.HeldSale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holds[holdID]
	if !ok {
		return nil, apperror.NewNotFound("held sale", holdID)
	}
	return &h, nil
}

func (m *holdStore) List(_ context.Context, f heldsale.ListFilter) ([]*heldsale.HeldSale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*heldsale.HeldSale
	for _, h := range m.holds {
		h := h
		if f.TerminalID != nil && h.TerminalID != *f.TerminalID {
			continue
		}
		if f.ActorID != nil && h.ActorID != *f.ActorID {
			continue
		}
		if f.Status == nil && !h.IsActive(f.Now) {
			continue
		}
		if f.Status != nil && h.EffectiveStatus(f.Now) != *f.Status {
			continue
		}
		out = append(out, &h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *holdStore) Consume(_ context.Context, holdID string, now time.Time) (*heldsale.HeldSale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holds[holdID]
	if !ok || !h.IsActive(now) {
		return nil, nil
	}
	h.Status = heldsale.StatusCompleted
	h.CompletedAt = &now
	m.holds[holdID] = h
	return &h, nil
}

func (m *holdStore) Expire(_ context.Context, holdID string, due *time.Time) (*heldsale.HeldSale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holds[holdID]
	if !ok || h.Status != heldsale.StatusHeld {
		return nil, nil
	}
	if due != nil && (h.ExpiresAt == nil || h.ExpiresAt.After(*due)) {
		return nil, nil
	}
	h.Status = heldsale.StatusExpired
	m.holds[holdID] = h
	return &h, nil
}

func (m *holdStore) Remove(_ context.Context, rowID id.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, h := range m.holds {
		if h.ID == rowID {
			delete(m.holds, k)
		}
	}
	return nil
}

func (m *holdStore) ListDue(_ context.Context, now time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, h := range m.holds {
		if h.Status == heldsale.StatusHeld && h.ExpiresAt != nil && !h.ExpiresAt.After(now) {
			ids = append(ids, h.HoldID)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

type pingOK struct{}

func (pingOK) Ping(context.Context) error { return nil }
