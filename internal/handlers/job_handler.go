package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/deepscan/internal/models"
	"github.com/ternarybob/deepscan/internal/report"
)

// JobHandler exposes the job controller over HTTP
type JobHandler struct {
	controller JobController
	checker    UploadChecker // Optional: validates paths before Submit
	logger     arbor.ILogger
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(controller JobController, checker UploadChecker, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		controller: controller,
		checker:    checker,
		logger:     logger,
	}
}

// AnalyzeRequest is the body of POST /api/analyze
type AnalyzeRequest struct {
	Path string `json:"path"`
}

// JobResponse is the body of GET /api/job
type JobResponse struct {
	Job       models.Job `json:"job"`
	Stage     string     `json:"stage"`
	LastError string     `json:"last_error,omitempty"`
}

// AnalyzeHandler handles POST /api/analyze
func (h *JobHandler) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if h.checker != nil {
		if _, err := h.checker.Check(req.Path); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := h.controller.Submit(req.Path); err != nil {
		var precondition *models.PreconditionError
		if errors.As(err, &precondition) {
			WriteError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("path", req.Path).Msg("Failed to submit video")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusAccepted, h.current())
}

// GetJobHandler handles GET /api/job
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, h.current())
}

// CancelHandler handles POST /api/job/cancel
func (h *JobHandler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	h.controller.Cancel()
	WriteJSON(w, http.StatusOK, h.current())
}

// ResetHandler handles POST /api/job/reset
func (h *JobHandler) ResetHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	h.controller.Reset()
	WriteJSON(w, http.StatusOK, h.current())
}

// StatisticsHandler handles GET /api/job/statistics
func (h *JobHandler) StatisticsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	result, stats, ok := h.controller.Result()
	if !ok {
		WriteError(w, http.StatusConflict, "No completed analysis")
		return
	}

	WriteJSON(w, http.StatusOK, report.Document{
		Job:        h.controller.Job(),
		Result:     result,
		Statistics: stats,
	})
}

func (h *JobHandler) current() JobResponse {
	resp := JobResponse{
		Job:   h.controller.Job(),
		Stage: h.controller.StageMessage(),
	}
	if err := h.controller.LastError(); err != nil {
		resp.LastError = err.Error()
	}
	return resp
}
