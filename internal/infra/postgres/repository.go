package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/entity"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/port"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) Create(ctx context.Context, job *entity.ScanJob) error {
	query := `
		INSERT INTO scan_jobs (
			id, user_id, video_key, evidence_key, status, detection_count,
			total_time, file_size, video_duration, attempt, max_attempts,
			error_message, created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`

	_, err := r.pool.Exec(ctx, query,
		job.ID, job.UserID, job.VideoKey, job.EvidenceKey, string(job.Status),
		job.DetectionCount, job.TotalTime, job.FileSize, job.VideoDuration,
		job.Attempt, job.MaxAttempts, job.ErrorMessage,
		job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *JobRepository) Update(ctx context.Context, job *entity.ScanJob) error {
	query := `
		UPDATE scan_jobs SET
			status=$2, evidence_key=$3, detection_count=$4, total_time=$5,
			video_duration=$6, attempt=$7, error_message=$8, updated_at=$9, completed_at=$10
		WHERE id=$1`

	_, err := r.pool.Exec(ctx, query,
		job.ID, string(job.Status), job.EvidenceKey, job.DetectionCount,
		job.TotalTime, job.VideoDuration, job.Attempt, job.ErrorMessage,
		job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

func (r *JobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.ScanJob, error) {
	query := `
		SELECT id, user_id, video_key, evidence_key, status, detection_count,
			total_time, file_size, video_duration, attempt, max_attempts,
			error_message, created_at, updated_at, completed_at
		FROM scan_jobs WHERE id=$1`

	job := &entity.ScanJob{}
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.UserID, &job.VideoKey, &job.EvidenceKey, &status,
		&job.DetectionCount, &job.TotalTime, &job.FileSize, &job.VideoDuration,
		&job.Attempt, &job.MaxAttempts, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", port.ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find job by id: %w", err)
	}
	job.Status = entity.JobStatus(status)
	return job, nil
}

func (r *JobRepository) ReplaceDetections(ctx context.Context, jobID uuid.UUID, detections []entity.Detection) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM detections WHERE job_id=$1`, jobID); err != nil {
		return fmt.Errorf("clear detections: %w", err)
	}

	batch := &pgx.Batch{}
	for i, d := range detections {
		batch.Queue(`
			INSERT INTO detections (job_id, position, race_time, timestamp_seconds, source)
			VALUES ($1,$2,$3,$4,$5)`,
			jobID, i, d.Time, d.TimestampSec, string(d.Source),
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert detections: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit detections: %w", err)
	}
	return nil
}

func (r *JobRepository) ListDetections(ctx context.Context, jobID uuid.UUID) ([]entity.Detection, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT race_time, timestamp_seconds, source
		FROM detections WHERE job_id=$1 ORDER BY position`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list detections: %w", err)
	}
	defer rows.Close()

	var out []entity.Detection
	for rows.Next() {
		var d entity.Detection
		var source string
		if err := rows.Scan(&d.Time, &d.TimestampSec, &source); err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}
		d.Source = entity.Source(source)
		out = append(out, d)
	}
	return out, rows.Err()
}
