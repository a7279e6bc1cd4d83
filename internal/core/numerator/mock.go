package numerator

import (
	"context"
	"strings"
	"sync"
)

// MockSequencer is an in-memory Sequencer for unit tests.
// A single mutex serializes Advance, mirroring the row lock of the SQL upsert.
type MockSequencer struct {
	mu       sync.Mutex
	counters map[string]int64
	issued   []string

	// AdvanceFunc overrides Advance when set.
	AdvanceFunc func(ctx context.Context, scope string, floor int64) (int64, error)
	// LastIssuedFunc overrides LastIssued when set.
	LastIssuedFunc func(ctx context.Context, prefix string) (string, bool, error)
}

// NewMockSequencer returns an empty MockSequencer.
func NewMockSequencer() *MockSequencer {
	return &MockSequencer{counters: make(map[string]int64)}
}

// Issue records a bill number as persisted, as a finalized sale would.
func (m *MockSequencer) Issue(number string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issued = append(m.issued, number)
}

// LastIssued implements Sequencer.
func (m *MockSequencer) LastIssued(ctx context.Context, prefix string) (string, bool, error) {
	if m.LastIssuedFunc != nil {
		return m.LastIssuedFunc(ctx, prefix)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var best string
	found := false
	for _, n := range m.issued {
		if strings.HasPrefix(n, prefix) && (!found || longerOrGreater(n, best)) {
			best, found = n, true
		}
	}
	return best, found, nil
}

// longerOrGreater orders wider counters first, then lexicographically.
func longerOrGreater(a, b string) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a > b
}

// Advance implements Sequencer.
func (m *MockSequencer) Advance(ctx context.Context, scope string, floor int64) (int64, error) {
	if m.AdvanceFunc != nil {
		return m.AdvanceFunc(ctx, scope, floor)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.counters[scope]
	if floor > cur {
		cur = floor
	}
	cur++
	m.counters[scope] = cur
	return cur, nil
}

// Ensure compile-time interface compliance.
var _ Sequencer = (*MockSequencer)(nil)
