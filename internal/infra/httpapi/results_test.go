package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/entity"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/port"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memStore struct {
	jobs       map[uuid.UUID]*entity.ScanJob
	detections map[uuid.UUID][]entity.Detection
	err        error
}

func (m *memStore) FindByID(_ context.Context, id uuid.UUID) (*entity.ScanJob, error) {
	if m.err != nil {
		return nil, m.err
	}
	job, ok := m.jobs[id]
	if !ok {
		return nil, port.ErrJobNotFound
	}
	return job, nil
}

func (m *memStore) ListDetections(_ context.Context, id uuid.UUID) ([]entity.Detection, error) {
	return m.detections[id], nil
}

func serve(t *testing.T, store *memStore, path string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	NewResultsHandler(store, zap.NewNop()).Mount(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestDetectionsReturnsTableAndTotal(t *testing.T) {
	job := entity.NewScanJob("u", "u/run.mp4", 1, 3)
	job.Status = entity.JobStatusCompleted
	store := &memStore{
		jobs: map[uuid.UUID]*entity.ScanJob{job.ID: job},
		detections: map[uuid.UUID][]entity.Detection{job.ID: {
			{Time: "1:00.000", TimestampSec: 30, Source: entity.SourceSolo},
			{Time: "0:30.500", TimestampSec: 95, Source: entity.SourceGhostWon},
		}},
	}

	rec := serve(t, store, "/jobs/"+job.ID.String()+"/detections")
	require.Equal(t, http.StatusOK, rec.Code)

	var body resultsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, job.ID, body.JobID)
	assert.Equal(t, entity.JobStatusCompleted, body.Status)
	assert.Len(t, body.Detections, 2)
	assert.Equal(t, "00:01:30.500", body.TotalTime)
}

func TestDetectionsEmptyTableHasNoTotal(t *testing.T) {
	job := entity.NewScanJob("u", "u/run.mp4", 1, 3)
	store := &memStore{jobs: map[uuid.UUID]*entity.ScanJob{job.ID: job}}

	rec := serve(t, store, "/jobs/"+job.ID.String()+"/detections")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "total_time")
}

func TestDetectionsErrors(t *testing.T) {
	store := &memStore{jobs: map[uuid.UUID]*entity.ScanJob{}}
	assert.Equal(t, http.StatusBadRequest, serve(t, store, "/jobs/not-a-uuid/detections").Code)
	assert.Equal(t, http.StatusNotFound, serve(t, store, "/jobs/"+uuid.NewString()+"/detections").Code)

	store.err = errors.New("db down")
	assert.Equal(t, http.StatusInternalServerError, serve(t, store, "/jobs/"+uuid.NewString()+"/detections").Code)
}
