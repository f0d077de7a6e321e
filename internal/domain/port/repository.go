package port

import (
	"context"
	"errors"

	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/entity"
	"github.com/google/uuid"
)

var ErrJobNotFound = errors.New("scan job not found")

type JobRepository interface {
	Create(ctx context.Context, job *entity.ScanJob) error
	Update(ctx context.Context, job *entity.ScanJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.ScanJob, error)
}

type DetectionRepository interface {
	// ReplaceDetections stores the full result table of a job, dropping rows from earlier attempts.
	ReplaceDetections(ctx context.Context, jobID uuid.UUID, detections []entity.Detection) error
	ListDetections(ctx context.Context, jobID uuid.UUID) ([]entity.Detection, error)
}
