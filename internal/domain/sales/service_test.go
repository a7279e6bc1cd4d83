package sales

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tillcore/internal/core/apperror"
	"tillcore/internal/core/clock"
	"tillcore/internal/core/id"
	"tillcore/internal/core/numerator"
	"tillcore/internal/core/tx"
	"tillcore/internal/core/types"
	"tillcore/internal/domain"
	"tillcore/internal/domain/billing"
	"tillcore/internal/domain/heldsale"
	"tillcore/internal/domain/register"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type sessionRepo struct {
	session *register.Session
}

func (r *sessionRepo) FindLatestOpen(context.Context, string) (*register.Session, error) {
	return r.session, nil
}
func (r *sessionRepo) Insert(context.Context, *register.Session) error { return nil }
func (r *sessionRepo) MarkClosed(context.Context, id.ID, time.Time) (bool, error) {
	return true, nil
}

type saleRepo struct {
	mu       sync.Mutex
	byNumber map[string]*Sale
	inserts  int
	// failWith, when set, is returned by every Insert.
	failWith error
}

func newSaleRepo(taken ...string) *saleRepo {
	r := &saleRepo{byNumber: make(map[string]*Sale)}
	for _, n := range taken {
		r.byNumber[n] = &Sale{BillNumber: n}
	}
	return r
}

func (r *saleRepo) Insert(_ context.Context, s *Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts++
	if r.failWith != nil {
		return r.failWith
	}
	if _, ok := r.byNumber[s.BillNumber]; ok {
		return fmt.Errorf("duplicate bill number: %w", tx.ErrConflict)
	}
	r.byNumber[s.BillNumber] = s
	return nil
}

func (r *saleRepo) GetByBillNumber(_ context.Context, n string) (*Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byNumber[n]
	if !ok {
		return nil, apperror.NewNotFound("sale", n)
	}
	return s, nil
}

type fakeTaker struct {
	holds map[string]*heldsale.HeldSale
}

func (f *fakeTaker) Take(_ context.Context, holdID string) (*heldsale.HeldSale, error) {
	h, ok := f.holds[holdID]
	if !ok {
		return nil, apperror.NewNotFound("held sale", holdID)
	}
	if h.Status != heldsale.StatusHeld {
		return nil, apperror.NewHoldInactive(holdID, string(h.Status))
	}
	h.Status = heldsale.StatusCompleted
	return h, nil
}

func openSession(t *testing.T, actor domain.Actor) register.OpenSession {
	t.Helper()
	repo := &sessionRepo{session: &register.Session{
		ID: id.New(), ActorID: actor.ID, Status: register.StatusOpen, OpenedAt: t0,
	}}
	s, err := register.NewGate(repo).Resolve(context.Background(), &actor)
	require.NoError(t, err)
	return s
}

func newService(repo *saleRepo, seq *numerator.MockSequencer, holds HoldTaker) *Service {
	alloc := billing.NewAllocator(seq, tx.Passthrough)
	return NewService(repo, alloc, holds, tx.Passthrough, clock.NewFixed(t0), nil, 3)
}

func checkout() FinalizeInput {
	return FinalizeInput{
		TerminalID: "T-1",
		Payload:    json.RawMessage(`{"items":[{"sku":"A1","qty":1}]}`),
		Total:      types.MustMoney("12.50"),
	}
}

func TestFinalize_StampsBillNumber(t *testing.T) {
	actor := domain.Actor{ID: "3", Name: "john"}
	session := openSession(t, actor)
	svc := newService(newSaleRepo(), numerator.NewMockSequencer(), nil)

	first, err := svc.Finalize(context.Background(), session, checkout())
	require.NoError(t, err)
	assert.Equal(t, "U3/JOH/0001", first.BillNumber)
	assert.Equal(t, session.SessionID(), first.RegisterSessionID)
	assert.Equal(t, "john", first.ActorName)
	assert.True(t, types.MustMoney("12.5").Equal(first.Total))

	second, err := svc.Finalize(context.Background(), session, checkout())
	require.NoError(t, err)
	assert.Equal(t, "U3/JOH/0002", second.BillNumber)
}

func TestFinalize_RetriesOnDuplicateNumber(t *testing.T) {
	session := openSession(t, domain.Actor{ID: "3", Name: "john"})
	repo := newSaleRepo("U3/JOH/0001")
	svc := newService(repo, numerator.NewMockSequencer(), nil)

	sale, err := svc.Finalize(context.Background(), session, checkout())
	require.NoError(t, err)
	assert.Equal(t, "U3/JOH/0002", sale.BillNumber)
	assert.Equal(t, 2, repo.inserts)
}

func TestFinalize_RetriesExhausted(t *testing.T) {
	session := openSession(t, domain.Actor{ID: "3", Name: "john"})
	repo := newSaleRepo()
	repo.failWith = fmt.Errorf("serialization failure: %w", tx.ErrConflict)
	svc := newService(repo, numerator.NewMockSequencer(), nil)

	_, err := svc.Finalize(context.Background(), session, checkout())

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeNumberingConflict, appErr.Code)
	assert.Equal(t, "U3/JOH/", appErr.Details["scope"])
	assert.Equal(t, 3, repo.inserts)
}

func TestFinalize_NonConflictErrorIsNotRetried(t *testing.T) {
	session := openSession(t, domain.Actor{ID: "3", Name: "john"})
	repo := newSaleRepo()
	repo.failWith = apperror.NewStoreUnavailable(fmt.Errorf("dial tcp: refused"))
	svc := newService(repo, numerator.NewMockSequencer(), nil)

	_, err := svc.Finalize(context.Background(), session, checkout())
	assert.True(t, apperror.IsStoreUnavailable(err))
	assert.Equal(t, 1, repo.inserts)
}

func TestFinalize_Validation(t *testing.T) {
	session := openSession(t, domain.Actor{ID: "3", Name: "john"})
	svc := newService(newSaleRepo(), numerator.NewMockSequencer(), nil)

	_, err := svc.Finalize(context.Background(), session, FinalizeInput{
		Payload: json.RawMessage(`1`),
		Total:   types.MustMoney("-1"),
	})

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	fields := appErr.Details["fields"].(map[string]string)
	assert.Len(t, fields, 3)
}

func TestFinalizeHeld(t *testing.T) {
	session := openSession(t, domain.Actor{ID: "3", Name: "john"})
	holds := &fakeTaker{holds: map[string]*heldsale.HeldSale{
		"HS-ABCDEF0123456789AB": {
			ID: id.New(), HoldID: "HS-ABCDEF0123456789AB", TerminalID: "T-1", ActorID: "3",
			Payload: json.RawMessage(`{"items":[]}`), Status: heldsale.StatusHeld,
		},
	}}
	svc := newService(newSaleRepo(), numerator.NewMockSequencer(), holds)

	sale, err := svc.FinalizeHeld(context.Background(), session, "HS-ABCDEF0123456789AB", types.MustMoney("3.00"))
	require.NoError(t, err)
	assert.Equal(t, "U3/JOH/0001", sale.BillNumber)
	require.NotNil(t, sale.HoldID)
	assert.Equal(t, "HS-ABCDEF0123456789AB", *sale.HoldID)
	assert.Equal(t, "T-1", sale.TerminalID)
	assert.JSONEq(t, `{"items":[]}`, string(sale.Payload))

	_, err = svc.FinalizeHeld(context.Background(), session, "HS-ABCDEF0123456789AB", types.MustMoney("3.00"))
	assert.True(t, apperror.IsHoldInactive(err))
}

func TestFinalize_ConcurrentTerminalsGetContiguousNumbers(t *testing.T) {
	session := openSession(t, domain.Actor{ID: "7", Name: "al"})
	svc := newService(newSaleRepo(), numerator.NewMockSequencer(), nil)

	const n = 30
	var wg sync.WaitGroup
	numbers := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sale, err := svc.Finalize(context.Background(), session, checkout())
			if assert.NoError(t, err) {
				numbers <- sale.BillNumber
			}
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[string]bool)
	counters := make([]int64, 0, n)
	for num := range numbers {
		assert.False(t, seen[num], "duplicate %s", num)
		assert.True(t, strings.HasPrefix(num, "U7/ALX/"), num)
		seen[num] = true
		counters = append(counters, numerator.ParseCounter(num))
	}
	require.Len(t, counters, n)

	sort.Slice(counters, func(i, j int) bool { return counters[i] < counters[j] })
	for i, c := range counters {
		assert.Equal(t, int64(i+1), c)
	}
}
