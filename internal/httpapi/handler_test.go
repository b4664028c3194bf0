package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/minipoints-bot/internal/engine"
	"serotonyl.ru/minipoints-bot/internal/features/ledger"
	"serotonyl.ru/minipoints-bot/internal/features/ledger/ledgertest"
	"serotonyl.ru/minipoints-bot/internal/features/missions"
	"serotonyl.ru/minipoints-bot/internal/features/missions/missionstest"
)

const adminToken = "s3cret-admin"

var adminHash = func() string {
	h, err := HashToken(adminToken)
	if err != nil {
		panic(err)
	}
	return h
}()

type apiFixture struct {
	router http.Handler
	store  *ledgertest.MemoryStore
	alice  *ledger.User
	bob    *ledger.User
	coffee *ledger.CatalogItem
}

func newAPIFixture(t *testing.T, hash string) *apiFixture {
	t.Helper()

	store := ledgertest.New()
	alice := store.AddUser("Alice", 5000)
	bob := store.AddUser("Bob", 3500)
	coffee := store.AddItem("coffee-run", 150)

	svc := ledger.NewService(store)

	mstore := missionstest.New()
	msvc := missions.NewService(mstore, svc, time.UTC)
	_, err := msvc.CreateMission(t.Context(), missions.NewMission{Name: "Compliment", Description: "Say something nice", Reward: 1})
	require.NoError(t, err)

	eng := engine.New(svc, engine.WithMissions(msvc))
	h := NewHandler(svc, eng, msvc, hash)

	return &apiFixture{
		router: NewRouter(h),
		store:  store,
		alice:  alice,
		bob:    bob,
		coffee: coffee,
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(AdminTokenHeader, token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHashAndVerifyToken(t *testing.T) {
	assert.Regexp(t, `^\$argon2id\$v=19\$m=65536,t=3,p=2\$[A-Za-z0-9+/]+\$[A-Za-z0-9+/]+$`, adminHash)
	assert.True(t, VerifyToken(adminToken, adminHash))
	assert.False(t, VerifyToken("wrong", adminHash))
	assert.False(t, VerifyToken(adminToken, "not-a-hash"))
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t, "")
	rec := f.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	f.store.Err = assert.AnError
	rec = f.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUsersRoutes(t *testing.T) {
	f := newAPIFixture(t, "")

	rec := f.do(t, http.MethodGet, "/api/users", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	users := decode[[]ledger.User](t, rec)
	require.Len(t, users, 2)
	assert.Equal(t, "Alice", users[0].Username)

	rec = f.do(t, http.MethodGet, "/api/users/abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid user ID", decode[errorResponse](t, rec).Error)

	rec = f.do(t, http.MethodGet, "/api/users/999", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPurchaseRoute(t *testing.T) {
	f := newAPIFixture(t, "")

	rec := f.do(t, http.MethodPost, "/api/purchase", purchaseRequest{UserID: f.alice.ID, ItemSlug: "coffee-run"}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decode[engine.PurchasePayload](t, rec)
	assert.Equal(t, int64(150), p.Purchase.Cost)
	assert.Equal(t, int64(4850), p.Purchase.NewBalance)
	assert.Equal(t, "Bob", p.Purchase.Recipient)
	assert.Equal(t, int64(3650), f.store.Balance(f.bob.ID))

	rec = f.do(t, http.MethodPost, "/api/purchase", purchaseRequest{UserID: f.alice.ID}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.store.SetBalance(f.alice.ID, 10)
	rec = f.do(t, http.MethodPost, "/api/purchase", purchaseRequest{UserID: f.alice.ID, ItemSlug: "coffee-run"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Error, "Insufficient balance")

	rec = f.do(t, http.MethodPost, "/api/purchase", purchaseRequest{UserID: f.alice.ID, ItemSlug: "yacht"}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransactionsRoutes(t *testing.T) {
	f := newAPIFixture(t, "")
	for i := 0; i < 3; i++ {
		f.do(t, http.MethodPost, "/api/purchase", purchaseRequest{UserID: f.alice.ID, ItemSlug: "coffee-run"}, "")
	}

	rec := f.do(t, http.MethodGet, "/api/transactions?limit=2", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ledger.TransactionView](t, rec), 2)

	rec = f.do(t, http.MethodGet, "/api/users/"+itoa(f.bob.ID)+"/transactions", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ledger.TransactionView](t, rec), 3)

	rec = f.do(t, http.MethodGet, "/api/transactions?limit=-1", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSimulateCommand(t *testing.T) {
	f := newAPIFixture(t, "")

	rec := f.do(t, http.MethodPost, "/api/simulate-command", simulateRequest{UserID: f.alice.ID, Command: "!balance"}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res struct {
		Type    string `json:"type"`
		Content struct {
			User ledger.User `json:"user"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, engine.TypeBalance, res.Type)
	assert.Equal(t, int64(5000), res.Content.User.Balance)

	rec = f.do(t, http.MethodPost, "/api/simulate-command", simulateRequest{UserID: f.alice.ID, Command: "!dance"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	errRes := decode[engine.Result](t, rec)
	assert.Equal(t, engine.TypeError, errRes.Type)
	assert.Equal(t, "Unknown command: dance. Try help for a list of commands.", errRes.Content)

	rec = f.do(t, http.MethodPost, "/api/simulate-command", map[string]any{"userId": f.alice.ID}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Both userId and command are required", decode[errorResponse](t, rec).Details)
}

func TestUserMissionRoute(t *testing.T) {
	f := newAPIFixture(t, "")

	rec := f.do(t, http.MethodGet, "/api/users/"+itoa(f.alice.ID)+"/mission", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	a := decode[missions.Assignment](t, rec)
	assert.Equal(t, "Compliment", a.Mission.Name)
	assert.False(t, a.IsCompleted)

	rec = f.do(t, http.MethodGet, "/api/users/999/mission", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestManagementRequiresToken(t *testing.T) {
	item := ledger.CatalogItemInput{Name: "Pizza", Description: "Order pizza", Price: 300, Slug: "pizza"}

	t.Run("disabled without hash", func(t *testing.T) {
		f := newAPIFixture(t, "")
		rec := f.do(t, http.MethodPost, "/api/catalog", item, adminToken)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("missing or wrong token", func(t *testing.T) {
		f := newAPIFixture(t, adminHash)
		assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/api/catalog", item, "").Code)
		assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/api/catalog", item, "nope").Code)
	})

	t.Run("reads stay public", func(t *testing.T) {
		f := newAPIFixture(t, adminHash)
		assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/catalog", nil, "").Code)
		assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/rules", nil, "").Code)
	})
}

func TestCatalogManagement(t *testing.T) {
	f := newAPIFixture(t, adminHash)

	rec := f.do(t, http.MethodPost, "/api/catalog",
		ledger.CatalogItemInput{Name: "Pizza", Description: "Order pizza", Price: 300, Slug: "Pizza"}, adminToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[ledger.CatalogItem](t, rec)
	assert.Equal(t, "pizza", created.Slug)

	rec = f.do(t, http.MethodPost, "/api/catalog",
		ledger.CatalogItemInput{Name: "Pizza 2", Description: "Again", Price: 300, Slug: "pizza"}, adminToken)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/catalog",
		ledger.CatalogItemInput{Name: "Free", Description: "Nothing", Price: 0, Slug: "free"}, adminToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/catalog/"+itoa(created.ID),
		ledger.CatalogItemInput{Name: "Pizza", Description: "Order pizza", Price: 320, Slug: "pizza"}, adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(320), decode[ledger.CatalogItem](t, rec).Price)

	// Купленный товар удалить нельзя
	f.do(t, http.MethodPost, "/api/purchase", purchaseRequest{UserID: f.alice.ID, ItemSlug: "coffee-run"}, "")
	rec = f.do(t, http.MethodDelete, "/api/catalog/"+itoa(f.coffee.ID), nil, adminToken)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/catalog/"+itoa(created.ID), nil, adminToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/catalog/"+itoa(created.ID), nil, adminToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRulesManagement(t *testing.T) {
	f := newAPIFixture(t, adminHash)

	rec := f.do(t, http.MethodPost, "/api/rules", map[string]any{
		"name":        "Steal",
		"description": "Steal 1 MP",
		"type":        "steal",
		"parameters":  map[string]any{"chance": 0.66},
	}, adminToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rule := decode[ledger.Rule](t, rec)
	assert.True(t, rule.IsActive)
	assert.JSONEq(t, `{"chance":0.66}`, string(rule.Parameters))

	rec = f.do(t, http.MethodPut, "/api/rules/"+itoa(rule.ID), map[string]any{
		"name":        "Steal",
		"description": "Steal 1 MP",
		"type":        "steal",
		"isActive":    false,
	}, adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/rules", nil, "")
	assert.Empty(t, decode[[]ledger.Rule](t, rec))
	rec = f.do(t, http.MethodGet, "/api/rules?all=true", nil, "")
	assert.Len(t, decode[[]ledger.Rule](t, rec), 1)

	rec = f.do(t, http.MethodDelete, "/api/rules/"+itoa(rule.ID), nil, adminToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
