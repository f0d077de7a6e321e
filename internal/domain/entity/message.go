package entity

import "github.com/google/uuid"

// ScanRequestMessage is the inbound message from the scan request queue.
type ScanRequestMessage struct {
	JobID     uuid.UUID `json:"job_id"`
	UserID    string    `json:"user_id"`
	VideoKey  string    `json:"video_key"`
	FileSize  int64     `json:"file_size"`
	UserEmail string    `json:"user_email"`
}

// ScanStatusMessage is published on every job state change.
type ScanStatusMessage struct {
	JobID          uuid.UUID   `json:"job_id"`
	UserID         string      `json:"user_id"`
	Status         JobStatus   `json:"status"`
	VideoKey       string      `json:"video_key"`
	EvidenceKey    string      `json:"evidence_key,omitempty"`
	DetectionCount int         `json:"detection_count,omitempty"`
	Detections     []Detection `json:"detections,omitempty"`
	TotalTime      string      `json:"total_time,omitempty"`
	Duration       float64     `json:"duration_seconds,omitempty"`
	ErrorMessage   string      `json:"error_message,omitempty"`
	Attempt        int         `json:"attempt"`
	MaxAttempts    int         `json:"max_attempts"`
}

// ScanProgressMessage reports how far along the timeline a running scan is.
type ScanProgressMessage struct {
	JobID    uuid.UUID `json:"job_id"`
	Progress float64   `json:"progress"`
	Message  string    `json:"message,omitempty"`
}
