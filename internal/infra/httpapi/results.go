package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/entity"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/port"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type resultStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.ScanJob, error)
	ListDetections(ctx context.Context, jobID uuid.UUID) ([]entity.Detection, error)
}

// ResultsHandler exposes the result table of finished scans.
type ResultsHandler struct {
	store  resultStore
	logger *zap.Logger
}

func NewResultsHandler(store resultStore, logger *zap.Logger) *ResultsHandler {
	return &ResultsHandler{store: store, logger: logger}
}

func (h *ResultsHandler) Mount(r chi.Router) {
	r.Get("/jobs/{jobID}/detections", h.detections)
}

type resultsResponse struct {
	JobID      uuid.UUID          `json:"job_id"`
	Status     entity.JobStatus   `json:"status"`
	Detections []entity.Detection `json:"detections"`
	TotalTime  string             `json:"total_time,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *ResultsHandler) detections(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_JOB_ID", "job id must be a UUID")
		return
	}

	job, err := h.store.FindByID(r.Context(), id)
	if errors.Is(err, port.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "scan job not found")
		return
	}
	if err != nil {
		h.logger.Error("load job", zap.String("job_id", id.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "could not load job")
		return
	}

	rows, err := h.store.ListDetections(r.Context(), id)
	if err != nil {
		h.logger.Error("load detections", zap.String("job_id", id.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "could not load detections")
		return
	}

	table := entity.NewResultTable()
	for _, d := range rows {
		table.Append(d)
	}
	resp := resultsResponse{JobID: job.ID, Status: job.Status, Detections: table.Detections()}
	if total, err := table.TotalTime(); err == nil {
		resp.TotalTime = entity.FormatTotal(total)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
