package v1

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tillcore/internal/core/apperror"
	"tillcore/internal/core/clock"
	"tillcore/internal/core/numerator"
	"tillcore/internal/core/tx"
	"tillcore/internal/domain/auth"
	"tillcore/internal/domain/billing"
	"tillcore/internal/domain/heldsale"
	"tillcore/internal/domain/register"
	"tillcore/internal/domain/sales"
	"tillcore/pkg/logger"
)

type testAPI struct {
	t      *testing.T
	router http.Handler
	jwt    *auth.JWTService
	clock  *clock.Fixed
	sales  *saleStore
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	clk := clock.NewFixed(time.Now().UTC())
	sessions := &sessionStore{}
	saleRepo := newSaleStore()

	holds := heldsale.NewService(newHoldStore(), tx.Passthrough, clk,
		heldsale.ExpiryPolicy{Mode: heldsale.ExpiryTTL, TTL: time.Hour})
	alloc := billing.NewAllocator(numerator.NewMockSequencer(), tx.Passthrough)
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig("router-test-secret"))

	router := NewRouter(RouterConfig{
		Logger:       logger.NewNop(),
		DB:           pingOK{},
		JWTValidator: jwtService,
		Clock:        clk,
		Gate:         register.NewGate(sessions),
		Register:     register.NewService(sessions, tx.Passthrough, clk),
		Sales:        sales.NewService(saleRepo, alloc, holds, tx.Passthrough, clk, nil, 3),
		Holds:        holds,
	})

	return &testAPI{t: t, router: router, jwt: jwtService, clock: clk, sales: saleRepo}
}

func (a *testAPI) token(userID, name string, roles ...string) string {
	a.t.Helper()
	tok, _, err := a.jwt.GenerateAccessToken(userID, name, roles, false)
	require.NoError(a.t, err)
	return tok
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func checkout(terminal string) map[string]any {
	return map[string]any{
		"terminalId": terminal,
		"payload":    map[string]any{"items": []any{map[string]any{"sku": "A1", "qty": 2}}},
		"total":      "12.50",
	}
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["checks"].(map[string]any)["database"])
}

func TestAPI_RequiresToken(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/api/v1/sales", "", checkout("T-1"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apperror.CodeUnauthorized, decode(t, w)["code"])

	w = api.do(http.MethodPost, "/api/v1/sales", "not-a-jwt", checkout("T-1"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSales_GateBlocksWithoutOpenRegister(t *testing.T) {
	api := newTestAPI(t)
	tok := api.token("3", "john", auth.RoleCashier)

	w := api.do(http.MethodPost, "/api/v1/sales", tok, checkout("T-1"))
	require.Equal(t, http.StatusPreconditionFailed, w.Code)
	body := decode(t, w)
	assert.Equal(t, apperror.CodeRegisterClosed, body["code"])
	assert.Contains(t, body["message"], "Open a register")
	assert.Zero(t, api.sales.count())
}

func TestSales_FinalizeFlow(t *testing.T) {
	api := newTestAPI(t)
	tok := api.token("3", "john", auth.RoleCashier)

	w := api.do(http.MethodPost, "/api/v1/register/open", tok, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "open", decode(t, w)["status"])

	w = api.do(http.MethodPost, "/api/v1/register/open", tok, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(http.MethodPost, "/api/v1/sales", tok, checkout("T-1"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sale := decode(t, w)
	assert.Equal(t, "U3/JOH/0001", sale["billNumber"])
	assert.Equal(t, "12.50", sale["total"])

	w = api.do(http.MethodPost, "/api/v1/sales", tok, checkout("T-2"))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "U3/JOH/0002", decode(t, w)["billNumber"])

	w = api.do(http.MethodGet, "/api/v1/sales/U3/JOH/0001", tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "T-1", decode(t, w)["terminalId"])

	w = api.do(http.MethodPost, "/api/v1/register/close", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "closed", decode(t, w)["status"])

	w = api.do(http.MethodPost, "/api/v1/sales", tok, checkout("T-1"))
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Equal(t, 2, api.sales.count())
}

func TestSales_ValidationDetails(t *testing.T) {
	api := newTestAPI(t)
	tok := api.token("3", "john")
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/register/open", tok, nil).Code)

	w := api.do(http.MethodPost, "/api/v1/sales", tok, map[string]any{
		"terminalId": "",
		"payload":    "text",
		"total":      "1.00",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, apperror.CodeValidation, body["code"])
	fields := body["details"].(map[string]any)["fields"].(map[string]any)
	assert.Contains(t, fields, "terminalId")
	assert.Contains(t, fields, "payload")

	w = api.do(http.MethodPost, "/api/v1/sales", tok, map[string]any{
		"terminalId": "T-1",
		"payload":    map[string]any{},
		"total":      "abc",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["details"].(map[string]any)["fields"], "total")
}

func TestHolds_Lifecycle(t *testing.T) {
	api := newTestAPI(t)
	tok := api.token("3", "john", auth.RoleCashier)

	w := api.do(http.MethodPost, "/api/v1/holds", tok, map[string]any{
		"terminalId": "T-1",
		"payload":    map[string]any{"items": []any{}},
	})
	require.Equal(t, http.StatusPreconditionFailed, w.Code)

	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/register/open", tok, nil).Code)

	w = api.do(http.MethodPost, "/api/v1/holds", tok, map[string]any{
		"terminalId": "T-1",
		"payload":    map[string]any{"items": []any{map[string]any{"sku": "B2"}}},
		"notes":      "table 4",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	holdID := created["holdId"].(string)
	assert.Equal(t, "held", created["status"])
	assert.Equal(t, "3", created["actorId"])
	assert.NotNil(t, created["expiresAt"])

	w = api.do(http.MethodGet, "/api/v1/holds?terminalId=T-1", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)
	assert.EqualValues(t, 1, list["count"])
	assert.EqualValues(t, heldsale.DefaultListLimit, list["limit"])

	w = api.do(http.MethodGet, "/api/v1/holds?status=bogus", tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/api/v1/holds/"+holdID+"/recall", tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "completed", decode(t, w)["status"])

	w = api.do(http.MethodPost, "/api/v1/holds/"+holdID+"/recall", tok, nil)
	require.Equal(t, http.StatusGone, w.Code)
	assert.Equal(t, apperror.CodeHoldInactive, decode(t, w)["code"])

	w = api.do(http.MethodGet, "/api/v1/holds/HS-00000000000000000000", tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHolds_FinalizeHeld(t *testing.T) {
	api := newTestAPI(t)
	tok := api.token("9", "ann")
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/register/open", tok, nil).Code)

	w := api.do(http.MethodPost, "/api/v1/holds", tok, map[string]any{
		"terminalId": "T-9",
		"payload":    map[string]any{"items": []any{}},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	holdID := decode(t, w)["holdId"].(string)

	w = api.do(http.MethodPost, "/api/v1/holds/"+holdID+"/finalize", tok, map[string]any{"total": "3.00"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sale := decode(t, w)
	assert.Equal(t, "U9/ANN/0001", sale["billNumber"])
	assert.Equal(t, holdID, sale["holdId"])
	assert.Equal(t, "T-9", sale["terminalId"])

	w = api.do(http.MethodPost, "/api/v1/holds/"+holdID+"/finalize", tok, map[string]any{"total": "3.00"})
	assert.Equal(t, http.StatusGone, w.Code)
	assert.Equal(t, 1, api.sales.count())
}

func TestHolds_DeleteAndSweep(t *testing.T) {
	api := newTestAPI(t)
	cashier := api.token("3", "john", auth.RoleCashier)
	supervisor := api.token("1", "sue", auth.RoleSupervisor)
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/register/open", cashier, nil).Code)

	create := func() string {
		w := api.do(http.MethodPost, "/api/v1/holds", cashier, map[string]any{
			"terminalId": "T-1",
			"payload":    map[string]any{"items": []any{}},
		})
		require.Equal(t, http.StatusCreated, w.Code)
		return decode(t, w)["holdId"].(string)
	}

	first := create()
	w := api.do(http.MethodDelete, "/api/v1/holds/"+first, cashier, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = api.do(http.MethodDelete, "/api/v1/holds/"+first, cashier, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	second := create()
	api.clock.Advance(2 * time.Hour)

	w = api.do(http.MethodGet, "/api/v1/holds/"+second, cashier, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "expired", decode(t, w)["status"])

	w = api.do(http.MethodPost, "/api/v1/holds/sweep", cashier, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodPost, "/api/v1/holds/sweep", supervisor, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 1, decode(t, w)["count"])

	w = api.do(http.MethodPost, "/api/v1/holds/sweep", supervisor, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode(t, w)["count"])
}
