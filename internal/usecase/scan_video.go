package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/entity"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/port"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/infra/metrics"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/infra/tracing"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/report"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/scan"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ScanRepository interface {
	port.JobRepository
	port.DetectionRepository
}

type TimelineScanner interface {
	Run(ctx context.Context, src port.FrameSource, opts scan.Options) (*entity.ResultTable, error)
}

type ScanVideoUseCase struct {
	repo      ScanRepository
	storage   port.VideoStorage
	opener    port.VideoOpener
	scanner   TimelineScanner
	zipper    port.Zipper
	publisher port.StatusPublisher
	progress  port.ProgressPublisher
	dlq       port.DLQPublisher
	notifier  port.FailureNotifier
	logger    *zap.Logger
	cfg       ScanVideoConfig
}

type ScanVideoConfig struct {
	TempDir    string
	MaxRetries int
	// ProgressEvery is the minimum timeline fraction between progress messages.
	ProgressEvery float64
	// KeepEvidence archives the frame of every detection next to the results CSV.
	KeepEvidence bool
}

func NewScanVideoUseCase(
	repo ScanRepository,
	storage port.VideoStorage,
	opener port.VideoOpener,
	scanner TimelineScanner,
	zipper port.Zipper,
	publisher port.StatusPublisher,
	progress port.ProgressPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg ScanVideoConfig,
) *ScanVideoUseCase {
	return &ScanVideoUseCase{
		repo:      repo,
		storage:   storage,
		opener:    opener,
		scanner:   scanner,
		zipper:    zipper,
		publisher: publisher,
		progress:  progress,
		dlq:       dlq,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg,
	}
}

// Execute handles one scan request. A nil return acks the message; an error
// asks the consumer to requeue it.
func (uc *ScanVideoUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	ctx, end := tracing.StartStage(ctx, "total")
	var execErr error
	defer func() { end(execErr) }()

	var msg entity.ScanRequestMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()
		return nil
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.video_key", msg.VideoKey),
	)
	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("video_key", msg.VideoKey))

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	if errors.Is(err, port.ErrJobNotFound) {
		job = entity.NewScanJob(msg.UserID, msg.VideoKey, msg.FileSize, uc.cfg.MaxRetries)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			execErr = fmt.Errorf("create job: %w", err)
			return execErr
		}
	} else if err != nil {
		log.Error("failed to load job record", zap.Error(err))
		execErr = fmt.Errorf("load job: %w", err)
		return execErr
	}

	if job.Status == entity.JobStatusCompleted {
		log.Info("job already completed, skipping redelivery")
		return nil
	}

	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		_ = uc.handlePermanentFailure(ctx, job, msg, rawMsg, "max retries exceeded", log)
		return nil
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		execErr = fmt.Errorf("update job: %w", err)
		return execErr
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if execErr = uc.scanPipeline(ctx, job, msg, rawMsg, log); execErr != nil {
		return execErr
	}
	return nil
}

func (uc *ScanVideoUseCase) scanPipeline(
	ctx context.Context,
	job *entity.ScanJob,
	msg entity.ScanRequestMessage,
	rawMsg []byte,
	log *zap.Logger,
) error {
	workDir := filepath.Join(uc.cfg.TempDir, job.ID.String())
	evidenceDir := filepath.Join(workDir, "evidence")
	if err := os.MkdirAll(evidenceDir, 0o755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	videoPath := filepath.Join(workDir, "input"+filepath.Ext(msg.VideoKey))
	dlCtx, endDl := tracing.StartStage(ctx, "download")
	err := uc.storage.DownloadVideo(dlCtx, msg.VideoKey, videoPath)
	endDl(err)
	if err != nil {
		log.Error("failed to download video", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "download_video: "+err.Error(), log)
	}

	openCtx, endOpen := tracing.StartStage(ctx, "open")
	src, err := uc.opener.Open(openCtx, videoPath)
	endOpen(err)
	if err != nil {
		return uc.handleScanError(ctx, job, msg, rawMsg, "open_video", err, log)
	}
	defer src.Close()

	progress := newProgressReporter(ctx, job.ID, uc.progress, uc.cfg.ProgressEvery, log)
	evidence := &evidenceWriter{dir: evidenceDir, enabled: uc.cfg.KeepEvidence, log: log}

	scanCtx, endScan := tracing.StartStage(ctx, "scan")
	table, err := uc.scanner.Run(scanCtx, src, scan.Options{
		Progress:    progress.Report,
		OnDetection: evidence.Save,
	})
	progress.Close()
	endScan(err)
	if err != nil {
		return uc.handleScanError(ctx, job, msg, rawMsg, "scan", err, log)
	}

	evidenceKey, err := uc.archiveEvidence(ctx, job, msg, table, evidence.paths, workDir)
	if err != nil {
		log.Error("evidence archive failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "archive_evidence: "+err.Error(), log)
	}

	if err := uc.repo.ReplaceDetections(ctx, job.ID, table.Detections()); err != nil {
		log.Error("failed to store detections", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "store_detections: "+err.Error(), log)
	}

	totalTime := ""
	if total, err := table.TotalTime(); err == nil {
		totalTime = entity.FormatTotal(total)
	} else if !errors.Is(err, entity.ErrNoData) {
		log.Warn("could not sum detected times", zap.Error(err))
	}

	job.MarkCompleted(evidenceKey, table.Len(), totalTime, src.Duration())
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, table.Detections(), log)
	metrics.JobsProcessedTotal.WithLabelValues("completed").Inc()

	log.Info("job completed successfully",
		zap.Int("detections", table.Len()),
		zap.String("total_time", totalTime),
		zap.Float64("duration_secs", src.Duration()),
		zap.String("evidence_key", evidenceKey),
	)
	return nil
}

// handleScanError sorts open/scan failures: unusable input is never retried,
// shutdown leaves the job for redelivery, anything else is retried.
func (uc *ScanVideoUseCase) handleScanError(
	ctx context.Context,
	job *entity.ScanJob,
	msg entity.ScanRequestMessage,
	rawMsg []byte,
	stage string,
	err error,
	log *zap.Logger,
) error {
	switch {
	case errors.Is(err, entity.ErrInvalidVideo):
		log.Warn("video rejected", zap.String("stage", stage), zap.Error(err))
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, stage+": "+err.Error(), log)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Info("scan interrupted", zap.String("stage", stage), zap.Error(err))
		return fmt.Errorf("%s interrupted: %w", stage, err)
	default:
		log.Error("scan stage failed", zap.String("stage", stage), zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, stage+": "+err.Error(), log)
	}
}

func (uc *ScanVideoUseCase) archiveEvidence(
	ctx context.Context,
	job *entity.ScanJob,
	msg entity.ScanRequestMessage,
	table *entity.ResultTable,
	frames []string,
	workDir string,
) (string, error) {
	ctx, end := tracing.StartStage(ctx, "upload")
	var err error
	defer func() { end(err) }()

	csvPath := filepath.Join(workDir, "results.csv")
	if err = writeResultsCSV(csvPath, table); err != nil {
		return "", err
	}

	zipPath := filepath.Join(workDir, "evidence.zip")
	files := append(append([]string{}, frames...), csvPath)
	if err = uc.zipper.CreateZip(ctx, files, zipPath); err != nil {
		return "", fmt.Errorf("create zip: %w", err)
	}

	f, err := os.Open(zipPath)
	if err != nil {
		return "", fmt.Errorf("open zip: %w", err)
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat zip: %w", err)
	}

	key := fmt.Sprintf("%s/evidence_%s.zip", msg.UserID, job.ID.String())
	if err = uc.storage.UploadEvidence(ctx, key, f, stat.Size()); err != nil {
		return "", err
	}
	return key, nil
}

func writeResultsCSV(path string, table *entity.ResultTable) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create results csv: %w", err)
	}
	if err := report.WriteCSV(f, table); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (uc *ScanVideoUseCase) handleRetryableFailure(
	ctx context.Context,
	job *entity.ScanJob,
	msg entity.ScanRequestMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, errMsg, log)
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, nil, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg)
}

func (uc *ScanVideoUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.ScanJob,
	msg entity.ScanRequestMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)
	uc.publishStatus(ctx, job, nil, log)
	metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, port.FailureNotice{
			UserEmail: msg.UserEmail,
			JobID:     job.ID.String(),
			VideoKey:  msg.VideoKey,
			Reason:    errMsg,
			Attempts:  job.Attempt,
		})
	}
	return nil
}

func (uc *ScanVideoUseCase) publishStatus(ctx context.Context, job *entity.ScanJob, detections []entity.Detection, log *zap.Logger) {
	statusMsg := entity.ScanStatusMessage{
		JobID:          job.ID,
		UserID:         job.UserID,
		Status:         job.Status,
		VideoKey:       job.VideoKey,
		EvidenceKey:    job.EvidenceKey,
		DetectionCount: job.DetectionCount,
		Detections:     detections,
		TotalTime:      job.TotalTime,
		Duration:       job.VideoDuration,
		ErrorMessage:   job.ErrorMessage,
		Attempt:        job.Attempt,
		MaxAttempts:    job.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}

// evidenceWriter stores the frame behind each detection as a PNG.
type evidenceWriter struct {
	dir     string
	enabled bool
	log     *zap.Logger
	paths   []string
}

func (e *evidenceWriter) Save(d entity.Detection, frame *entity.Frame) {
	if !e.enabled {
		return
	}
	path := filepath.Join(e.dir, fmt.Sprintf("detection_%03d_%07.2fs.png", len(e.paths)+1, d.TimestampSec))
	if err := writePNG(path, frame); err != nil {
		e.log.Warn("could not save evidence frame", zap.Float64("timestamp", d.TimestampSec), zap.Error(err))
		return
	}
	e.paths = append(e.paths, path)
}

func writePNG(path string, frame *entity.Frame) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, frame.Image); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
