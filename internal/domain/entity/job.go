package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// ScanJob tracks one video scan requested through the queue.
type ScanJob struct {
	ID             uuid.UUID
	UserID         string
	VideoKey       string
	EvidenceKey    string
	Status         JobStatus
	DetectionCount int
	TotalTime      string
	FileSize       int64
	VideoDuration  float64
	Attempt        int
	MaxAttempts    int
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

func NewScanJob(userID, videoKey string, fileSize int64, maxAttempts int) *ScanJob {
	now := time.Now().UTC()
	return &ScanJob{
		ID:          uuid.New(),
		UserID:      userID,
		VideoKey:    videoKey,
		FileSize:    fileSize,
		Status:      JobStatusPending,
		Attempt:     0,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (j *ScanJob) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.Attempt++
	j.UpdatedAt = time.Now().UTC()
}

// MarkCompleted records the scan outcome. totalTime is empty when nothing was detected.
func (j *ScanJob) MarkCompleted(evidenceKey string, detections int, totalTime string, duration float64) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.EvidenceKey = evidenceKey
	j.DetectionCount = detections
	j.TotalTime = totalTime
	j.VideoDuration = duration
	j.ErrorMessage = ""
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *ScanJob) MarkFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}

func (j *ScanJob) CanRetry() bool {
	return j.Attempt < j.MaxAttempts
}
