package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/deepscan/internal/interfaces"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// HistoryHandler serves the local job history
type HistoryHandler struct {
	history HistoryLister
	logger  arbor.ILogger
}

// NewHistoryHandler creates a new HistoryHandler
func NewHistoryHandler(history HistoryLister, logger arbor.ILogger) *HistoryHandler {
	return &HistoryHandler{
		history: history,
		logger:  logger,
	}
}

// ListHandler handles GET /api/history
func (h *HistoryHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	records, err := h.history.List(r.Context(), GetLimitParam(r, defaultHistoryLimit, maxHistoryLimit))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list job history")
		WriteError(w, http.StatusInternalServerError, "Failed to list job history")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// GetHandler handles GET /api/history/{id}
func (h *HistoryHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/history/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, http.StatusBadRequest, "Record id is required")
		return
	}

	record, err := h.history.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, interfaces.ErrRecordNotFound) {
			WriteError(w, http.StatusNotFound, "Record not found")
			return
		}
		h.logger.Error().Err(err).Str("record_id", id).Msg("Failed to get job record")
		WriteError(w, http.StatusInternalServerError, "Failed to get job record")
		return
	}

	WriteJSON(w, http.StatusOK, record)
}
