package httpapi

import (
	"net/http"

	"serotonyl.ru/minipoints-bot/internal/features/ledger"
)

// --- Каталог ---

func (h *Handler) listCatalog(w http.ResponseWriter, r *http.Request) {
	items, err := h.ledger.ListCatalogItems(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "Failed to fetch catalog items")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) createCatalogItem(w http.ResponseWriter, r *http.Request) {
	var in ledger.CatalogItemInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Validation error", err.Error())
		return
	}
	item, err := h.ledger.CreateCatalogItem(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err, "Failed to create catalog item")
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *Handler) updateCatalogItem(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "item")
	if !ok {
		return
	}
	var in ledger.CatalogItemInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Validation error", err.Error())
		return
	}
	item, err := h.ledger.UpdateCatalogItem(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update catalog item")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) deleteCatalogItem(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "item")
	if !ok {
		return
	}
	if err := h.ledger.DeleteCatalogItem(r.Context(), id); err != nil {
		writeServiceError(w, r, err, "Failed to delete catalog item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Правила ---

func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") != "true"
	rules, err := h.ledger.ListRules(r.Context(), activeOnly)
	if err != nil {
		writeServiceError(w, r, err, "Failed to fetch rules")
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	var in ledger.RuleInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Validation error", err.Error())
		return
	}
	rule, err := h.ledger.CreateRule(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err, "Failed to create rule")
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (h *Handler) updateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "rule")
	if !ok {
		return
	}
	var in ledger.RuleInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Validation error", err.Error())
		return
	}
	rule, err := h.ledger.UpdateRule(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update rule")
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *Handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "rule")
	if !ok {
		return
	}
	if err := h.ledger.DeleteRule(r.Context(), id); err != nil {
		writeServiceError(w, r, err, "Failed to delete rule")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
