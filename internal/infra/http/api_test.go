package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Spok95/makerspace/internal/auth"
	"github.com/Spok95/makerspace/internal/catalog"
	"github.com/Spok95/makerspace/internal/clients"
	"github.com/Spok95/makerspace/internal/docstore"
	"github.com/Spok95/makerspace/internal/domain/machines"
	"github.com/Spok95/makerspace/internal/domain/materials"
	"github.com/Spok95/makerspace/internal/domain/usagelog"
	"github.com/Spok95/makerspace/internal/infra/payments"
	"github.com/Spok95/makerspace/internal/session"
	"github.com/Spok95/makerspace/internal/usage"
)

type testAPI struct {
	t       *testing.T
	handler http.Handler
	store   *docstore.Memory
	archive *fakeArchive
}

type fakeArchive struct {
	names []string
}

func (f *fakeArchive) Put(_ context.Context, name, _ string, _ []byte) (string, error) {
	f.names = append(f.names, name)
	return "exports/" + name, nil
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ctx := context.Background()
	store := docstore.NewMemory(docstore.RetryConfig{BaseDelay: time.Millisecond})
	require.NoError(t, materials.NewRepo(store).Save(ctx, materials.Material{
		ID: "m1", Name: "PLA filament", Unit: "kg",
		Stock: decimal.NewFromInt(10), LowStockThreshold: decimal.NewFromInt(5),
		MemberPrice: decimal.NewFromInt(5), DropInPrice: decimal.NewFromInt(8),
	}))
	require.NoError(t, machines.NewRepo(store).Save(ctx, machines.Machine{ID: "p1", Name: "Prusa MK4"}))

	log := slog.New(slog.DiscardHandler)
	cache := catalog.New(materials.NewRepo(store), machines.NewRepo(store), log, nil)
	_, err := cache.Refresh(ctx)
	require.NoError(t, err)

	reg := clients.NewRegistry(func(s *session.State) *usage.Engine {
		return usage.NewEngine(usage.Deps{Catalog: cache, Store: store, Session: s, Log: log})
	})
	archive := &fakeArchive{}
	h := NewRouter(Deps{
		Log:      log,
		Auth:     auth.NewService(store, auth.Config{TokenSecret: "test", BcryptCost: bcrypt.MinCost}),
		Clients:  reg,
		Catalog:  cache,
		UsageLog: usagelog.NewRepo(store),
		Payments: payments.NewService("http://example.test", "pay", time.Minute, "NOK"),
		Archive:  archive,
	})
	return &testAPI{t: t, handler: h, store: store, archive: archive}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) signUp(email string) string {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email": email, "password": "secret123", "display_name": "Ada",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp sessionResponse
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(a.t, resp.Token)
	return resp.Token
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	a := newTestAPI(t)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/catalog", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/catalog", "nope", nil).Code)
}

func TestAuthErrors(t *testing.T) {
	a := newTestAPI(t)
	a.signUp("ada@example.com")

	rec := a.do(http.MethodPost, "/api/auth/signup", "", map[string]string{"email": "ada@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ada@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ADA@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodPost, "/api/auth/federated", "", map[string]string{"id_token": "x"})
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestUsageFlow(t *testing.T) {
	a := newTestAPI(t)
	token := a.signUp("ada@example.com")

	cat := decodeBody[catalogResponse](t, a.do(http.MethodGet, "/api/catalog", token, nil))
	require.Len(t, cat.Materials, 1)
	assert.Equal(t, "5.00", cat.Materials[0].MemberPrice)

	q := decodeBody[pendingDTO](t, a.do(http.MethodPost, "/api/usage/quote", token,
		map[string]any{"material_id": "m1", "machine_id": "p1", "amount": 0.5}))
	assert.Equal(t, "2.50", q.Price)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/api/usage/pending", token, nil).Code)

	// свой материал: коммит без оплаты
	rec := a.do(http.MethodPost, "/api/usage/stage", token,
		map[string]any{"material_id": "m1", "machine_id": "p1", "amount": "2", "uses_own_material": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	free := decodeBody[pendingDTO](t, rec)
	assert.False(t, free.RequiresConfirmation)
	assert.Empty(t, free.PaymentURL)

	rec = a.do(http.MethodPost, "/api/usage/commit", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "8", decodeBody[commitResponse](t, rec).NewStock)

	// платное: 402 и ссылка на оплату
	paid := decodeBody[pendingDTO](t, a.do(http.MethodPost, "/api/usage/stage", token,
		map[string]any{"material_id": "m1", "machine_id": "p1", "amount": 3, "duration": "30"}))
	assert.Equal(t, "15.00", paid.Price)
	require.True(t, paid.RequiresConfirmation)
	require.NotEmpty(t, paid.PaymentURL)

	rec = a.do(http.MethodPost, "/api/usage/commit", token, nil)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	link, err := url.Parse(paid.PaymentURL)
	require.NoError(t, err)
	rec = a.do(http.MethodGet, link.RequestURI(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	low := decodeBody[[]materialDTO](t, a.do(http.MethodGet, "/api/inventory/low", token, nil))
	require.Len(t, low, 1)
	assert.Equal(t, "5", low[0].Stock)

	history := decodeBody[[]entryDTO](t, a.do(http.MethodGet, "/api/usage/history", token, nil))
	require.Len(t, history, 2)
	assert.Equal(t, "Ada", history[0].UserName)

	assert.Equal(t, http.StatusConflict, a.do(http.MethodPost, "/api/usage/commit", token, nil).Code)
}

func TestStageErrors(t *testing.T) {
	a := newTestAPI(t)
	token := a.signUp("ada@example.com")

	rec := a.do(http.MethodPost, "/api/usage/stage", token, map[string]any{"material_id": "m1", "machine_id": "p1", "amount": "abc"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "amount", decodeBody[errorBody](t, rec).Field)

	rec = a.do(http.MethodPost, "/api/usage/stage", token, map[string]any{"material_id": "m1", "machine_id": "p1", "amount": 11, "uses_own_material": true})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(http.MethodPost, "/api/usage/commit", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody[errorBody](t, rec)
	assert.Equal(t, "10", body.Available)
	assert.Equal(t, "11", body.Requested)

	req := httptest.NewRequest(http.MethodPost, "/api/usage/stage", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelAndLogout(t *testing.T) {
	a := newTestAPI(t)
	token := a.signUp("ada@example.com")

	stage := map[string]any{"material_id": "m1", "machine_id": "p1", "amount": 1}
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/api/usage/stage", token, stage).Code)
	assert.Equal(t, http.StatusNoContent, a.do(http.MethodPost, "/api/usage/cancel", token, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/api/usage/pending", token, nil).Code)

	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/api/usage/stage", token, stage).Code)
	assert.Equal(t, http.StatusNoContent, a.do(http.MethodPost, "/api/auth/logout", token, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/api/usage/pending", token, nil).Code)
}

func TestExports(t *testing.T) {
	a := newTestAPI(t)
	token := a.signUp("ada@example.com")

	rec := a.do(http.MethodGet, "/api/export/inventory.csv", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "inventory_")
	assert.Equal(t, "Name,Stock,Unit,MemberPrice,DropInPrice\nPLA filament,10,kg,5,8\n", rec.Body.String())

	rec = a.do(http.MethodGet, "/api/export/inventory.xlsx", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.Bytes())

	rec = a.do(http.MethodPost, "/api/export/archive", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, a.archive.names, 2)
}
