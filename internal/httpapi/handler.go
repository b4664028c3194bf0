// Package httpapi: JSON API поверх ledger и движка команд.
// Чтение открыто, изменение каталога и правил требует X-Admin-Token.
package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"serotonyl.ru/minipoints-bot/internal/engine"
	"serotonyl.ru/minipoints-bot/internal/features/ledger"
	"serotonyl.ru/minipoints-bot/internal/features/missions"
)

// Ledger: операции ledger.Service, которые нужны API.
type Ledger interface {
	Ping(ctx context.Context) error
	GetUser(ctx context.Context, id int64) (*ledger.User, error)
	ListUsers(ctx context.Context) ([]*ledger.User, error)
	ListCatalogItems(ctx context.Context) ([]*ledger.CatalogItem, error)
	CreateCatalogItem(ctx context.Context, in ledger.CatalogItemInput) (*ledger.CatalogItem, error)
	UpdateCatalogItem(ctx context.Context, id int64, in ledger.CatalogItemInput) (*ledger.CatalogItem, error)
	DeleteCatalogItem(ctx context.Context, id int64) error
	ListTransactions(ctx context.Context, limit int) ([]*ledger.TransactionView, error)
	ListTransactionsForUser(ctx context.Context, userID int64, limit int) ([]*ledger.TransactionView, error)
	ListRules(ctx context.Context, activeOnly bool) ([]*ledger.Rule, error)
	CreateRule(ctx context.Context, in ledger.RuleInput) (*ledger.Rule, error)
	UpdateRule(ctx context.Context, id int64, in ledger.RuleInput) (*ledger.Rule, error)
	DeleteRule(ctx context.Context, id int64) error
}

// Commands: движок команд.
type Commands interface {
	Execute(ctx context.Context, text string, caller *ledger.User) *engine.Result
	Purchase(ctx context.Context, buyer *ledger.User, slug string) (*engine.Purchase, error)
}

// Missions: выдача миссии дня.
type Missions interface {
	GetOrAssignMission(ctx context.Context, userID int64) (*missions.Assignment, error)
}

type Handler struct {
	ledger    Ledger
	commands  Commands
	missions  Missions
	adminHash string
}

// NewHandler: missions может быть nil, тогда маршрут миссий отвечает 404.
func NewHandler(l Ledger, commands Commands, m Missions, adminHash string) *Handler {
	return &Handler{
		ledger:    l,
		commands:  commands,
		missions:  m,
		adminHash: adminHash,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.healthz)

	r.Route("/api", func(r chi.Router) {
		r.Get("/users", h.listUsers)
		r.Get("/users/{id}", h.getUser)
		r.Get("/users/{id}/transactions", h.userTransactions)
		r.Get("/users/{id}/mission", h.userMission)

		r.Get("/catalog", h.listCatalog)
		r.Get("/transactions", h.listTransactions)
		r.Get("/rules", h.listRules)

		r.Post("/purchase", h.purchase)
		r.Post("/simulate-command", h.simulateCommand)

		r.Group(func(r chi.Router) {
			r.Use(RequireAdminToken(h.adminHash))
			r.Post("/catalog", h.createCatalogItem)
			r.Put("/catalog/{id}", h.updateCatalogItem)
			r.Delete("/catalog/{id}", h.deleteCatalogItem)
			r.Post("/rules", h.createRule)
			r.Put("/rules/{id}", h.updateRule)
			r.Delete("/rules/{id}", h.deleteRule)
		})
	})
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// idParam парсит {id}; при ошибке сам пишет 400.
func idParam(w http.ResponseWriter, r *http.Request, what string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid "+what+" ID", "")
		return 0, false
	}
	return id, true
}

// limitParam: ?limit=, 0 если не задан (сервис подставит значение по умолчанию).
func limitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, "Invalid limit", "limit must be a non-negative integer")
		return 0, false
	}
	return limit, true
}

// --- Пользователи ---

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.ledger.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "Failed to fetch users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "user")
	if !ok {
		return
	}
	user, err := h.ledger.GetUser(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "Failed to fetch user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) userTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "user")
	if !ok {
		return
	}
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	txs, err := h.ledger.ListTransactionsForUser(r.Context(), id, limit)
	if err != nil {
		writeServiceError(w, r, err, "Failed to fetch user transactions")
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *Handler) userMission(w http.ResponseWriter, r *http.Request) {
	if h.missions == nil {
		writeError(w, http.StatusNotFound, "Missions are disabled", "")
		return
	}
	id, ok := idParam(w, r, "user")
	if !ok {
		return
	}
	if _, err := h.ledger.GetUser(r.Context(), id); err != nil {
		writeServiceError(w, r, err, "Failed to fetch user")
		return
	}
	a, err := h.missions.GetOrAssignMission(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "Failed to fetch mission")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// --- Журнал ---

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	txs, err := h.ledger.ListTransactions(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, err, "Failed to fetch transactions")
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// --- Покупка и команды ---

type purchaseRequest struct {
	UserID   int64  `json:"userId"`
	ItemSlug string `json:"itemSlug"`
}

func (h *Handler) purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation error", err.Error())
		return
	}
	if req.UserID <= 0 || req.ItemSlug == "" {
		writeError(w, http.StatusBadRequest, "Validation error", "Both userId and itemSlug are required")
		return
	}

	buyer, err := h.ledger.GetUser(r.Context(), req.UserID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to process purchase")
		return
	}
	p, err := h.commands.Purchase(r.Context(), buyer, req.ItemSlug)
	if err != nil {
		writeServiceError(w, r, err, "Failed to process purchase")
		return
	}
	writeJSON(w, http.StatusCreated, engine.PurchasePayload{Purchase: *p})
}

type simulateRequest struct {
	UserID  int64  `json:"userId"`
	Command string `json:"command"`
}

func (h *Handler) simulateCommand(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation error", err.Error())
		return
	}
	if req.UserID <= 0 || req.Command == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields", "Both userId and command are required")
		return
	}

	user, err := h.ledger.GetUser(r.Context(), req.UserID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to process command")
		return
	}
	writeJSON(w, http.StatusOK, h.commands.Execute(r.Context(), req.Command, user))
}
