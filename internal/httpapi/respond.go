package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/minipoints-bot/internal/common"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Debug("Ошибка записи ответа")
	}
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, errorResponse{Error: msg, Details: details})
}

// statusFor: класс ошибки → HTTP-статус.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrValidation),
		errors.Is(err, common.ErrInsufficientBalance),
		errors.Is(err, common.ErrNoActiveOffer),
		errors.Is(err, common.ErrCooldown):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeServiceError отдаёт классифицированные ошибки как есть,
// остальные логирует и прячет за fallback.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	if msg, ok := common.UserMessage(err); ok {
		writeError(w, statusFor(err), msg, "")
		return
	}
	log.WithError(err).WithFields(log.Fields{
		"component": "httpapi",
		"method":    r.Method,
		"path":      r.URL.Path,
	}).Error(fallback)
	writeError(w, http.StatusInternalServerError, fallback, "")
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
