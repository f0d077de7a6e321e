package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/BayesicGaming/MKWTTSpeedruns/internal/classifier"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/entity"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/port"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/geometry"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/scan"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRepo struct {
	jobs       map[uuid.UUID]*entity.ScanJob
	detections map[uuid.UUID][]entity.Detection
	findErr    error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{jobs: map[uuid.UUID]*entity.ScanJob{}, detections: map[uuid.UUID][]entity.Detection{}}
}

func (r *fakeRepo) Create(_ context.Context, job *entity.ScanJob) error {
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *fakeRepo) Update(_ context.Context, job *entity.ScanJob) error {
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *fakeRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.ScanJob, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	job, ok := r.jobs[id]
	if !ok {
		return nil, port.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (r *fakeRepo) ReplaceDetections(_ context.Context, id uuid.UUID, d []entity.Detection) error {
	r.detections[id] = d
	return nil
}

func (r *fakeRepo) ListDetections(_ context.Context, id uuid.UUID) ([]entity.Detection, error) {
	return r.detections[id], nil
}

type fakeStorage struct {
	downloadErr error
	uploadedKey string
	uploaded    []byte
}

func (s *fakeStorage) DownloadVideo(_ context.Context, _ string, dest string) error {
	if s.downloadErr != nil {
		return s.downloadErr
	}
	return os.WriteFile(dest, []byte("video"), 0o644)
}

func (s *fakeStorage) UploadEvidence(_ context.Context, key string, r io.Reader, _ int64) error {
	s.uploadedKey = key
	data, err := io.ReadAll(r)
	s.uploaded = data
	return err
}

type fakeSource struct {
	duration float64
	closed   int
	cancelAt float64
	cancel   context.CancelFunc
}

func (s *fakeSource) Duration() float64 { return s.duration }
func (s *fakeSource) Size() (int, int)   { return 320, 180 }
func (s *fakeSource) Close() error       { s.closed++; return nil }

func (s *fakeSource) FrameAt(ctx context.Context, ts float64) (*entity.Frame, error) {
	if s.cancel != nil && ts == s.cancelAt {
		s.cancel()
		return nil, ctx.Err()
	}
	if ts >= s.duration {
		return nil, port.ErrNoFrame
	}
	return &entity.Frame{Image: image.NewRGBA(image.Rect(0, 0, 320, 180)), TimestampSec: ts}, nil
}

type fakeOpener struct {
	src *fakeSource
	err error
}

func (o *fakeOpener) Open(context.Context, string) (port.FrameSource, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.src, nil
}

type fakeZipper struct {
	files []string
}

func (z *fakeZipper) CreateZip(_ context.Context, files []string, out string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return err
		}
	}
	z.files = files
	return os.WriteFile(out, []byte("zip"), 0o644)
}

type fakeBroker struct {
	mu       sync.Mutex
	statuses []entity.ScanStatusMessage
	progress int
	dlq      []string
}

func (b *fakeBroker) PublishStatus(_ context.Context, msg []byte) error {
	var m entity.ScanStatusMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return err
	}
	b.statuses = append(b.statuses, m)
	return nil
}

func (b *fakeBroker) PublishProgress(context.Context, []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.progress++
	return nil
}

func (b *fakeBroker) PublishToDLQ(_ context.Context, _ []byte, reason string) error {
	b.dlq = append(b.dlq, reason)
	return nil
}

type fakeNotifier struct {
	sent []string
}

func (n *fakeNotifier) NotifyFailure(_ context.Context, notice port.FailureNotice) error {
	n.sent = append(n.sent, notice.UserEmail)
	return nil
}

type scripted map[float64]classifier.Reading

func (s scripted) Classify(_ context.Context, f *entity.Frame, _ geometry.Resolved) (classifier.Reading, bool) {
	r, ok := s[f.TimestampSec]
	return r, ok
}

type harness struct {
	repo     *fakeRepo
	storage  *fakeStorage
	opener   *fakeOpener
	zipper   *fakeZipper
	broker   *fakeBroker
	notifier *fakeNotifier
	uc       *ScanVideoUseCase
}

func newHarness(t *testing.T, maxRetries int, readings scripted) *harness {
	t.Helper()
	h := &harness{
		repo:     newFakeRepo(),
		storage:  &fakeStorage{},
		opener:   &fakeOpener{src: &fakeSource{duration: 100}},
		zipper:   &fakeZipper{},
		broker:   &fakeBroker{},
		notifier: &fakeNotifier{},
	}
	driver := scan.NewDriver(readings, scan.DefaultConfig(), zap.NewNop())
	h.uc = NewScanVideoUseCase(
		h.repo, h.storage, h.opener, driver, h.zipper,
		h.broker, h.broker, h.broker, h.notifier,
		zap.NewNop(),
		ScanVideoConfig{TempDir: t.TempDir(), MaxRetries: maxRetries, ProgressEvery: 0.1, KeepEvidence: true},
	)
	return h
}

func request(t *testing.T) (entity.ScanRequestMessage, []byte) {
	t.Helper()
	msg := entity.ScanRequestMessage{
		JobID:     uuid.New(),
		UserID:    "racer",
		VideoKey:  "racer/session.mp4",
		FileSize:  5,
		UserEmail: "racer@example.com",
	}
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	return msg, raw
}

func TestExecuteCompletesScan(t *testing.T) {
	h := newHarness(t, 3, scripted{
		3:  {Time: "1:23.456", Source: entity.SourceSolo},
		63: {Time: "1:10.000", Source: entity.SourceGhostWon},
	})
	msg, raw := request(t)

	require.NoError(t, h.uc.Execute(context.Background(), raw))

	job := h.repo.jobs[msg.JobID]
	require.NotNil(t, job)
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Equal(t, 2, job.DetectionCount)
	assert.Equal(t, "00:02:33.456", job.TotalTime)
	assert.Equal(t, 100.0, job.VideoDuration)
	assert.Equal(t, fmt.Sprintf("racer/evidence_%s.zip", msg.JobID), job.EvidenceKey)

	assert.Equal(t, []entity.Detection{
		{Time: "1:23.456", TimestampSec: 3, Source: entity.SourceSolo},
		{Time: "1:10.000", TimestampSec: 63, Source: entity.SourceGhostWon},
	}, h.repo.detections[msg.JobID])

	require.Len(t, h.zipper.files, 3)
	assert.Equal(t, "results.csv", filepath.Base(h.zipper.files[2]))
	assert.Equal(t, job.EvidenceKey, h.storage.uploadedKey)
	assert.Equal(t, []byte("zip"), h.storage.uploaded)

	last := h.broker.statuses[len(h.broker.statuses)-1]
	assert.Equal(t, entity.JobStatusCompleted, last.Status)
	assert.Len(t, last.Detections, 2)
	assert.Positive(t, h.broker.progress)
	assert.Equal(t, 1, h.opener.src.closed)
	assert.Empty(t, h.broker.dlq)
}

func TestExecuteWithoutDetectionsLeavesTotalEmpty(t *testing.T) {
	h := newHarness(t, 3, scripted{})
	msg, raw := request(t)

	require.NoError(t, h.uc.Execute(context.Background(), raw))
	job := h.repo.jobs[msg.JobID]
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Empty(t, job.TotalTime)
	assert.Zero(t, job.DetectionCount)
	assert.Len(t, h.zipper.files, 1)
}

func TestExecuteRejectsInvalidVideoWithoutRetry(t *testing.T) {
	h := newHarness(t, 3, scripted{})
	h.opener.err = fmt.Errorf("%w: no frames", entity.ErrInvalidVideo)
	msg, raw := request(t)

	require.NoError(t, h.uc.Execute(context.Background(), raw))
	job := h.repo.jobs[msg.JobID]
	assert.Equal(t, entity.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "open_video")
	assert.Len(t, h.broker.dlq, 1)
	assert.Equal(t, []string{"racer@example.com"}, h.notifier.sent)
}

func TestExecuteRetriesDownloadFailure(t *testing.T) {
	h := newHarness(t, 3, scripted{})
	h.storage.downloadErr = errors.New("connection reset")
	msg, raw := request(t)

	err := h.uc.Execute(context.Background(), raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attempt 1/3")

	job := h.repo.jobs[msg.JobID]
	assert.Equal(t, entity.JobStatusFailed, job.Status)
	assert.Equal(t, 1, job.Attempt)
	assert.Empty(t, h.broker.dlq)
	assert.Empty(t, h.notifier.sent)
}

func TestExecuteSendsToDLQWhenRetriesRunOut(t *testing.T) {
	h := newHarness(t, 1, scripted{})
	h.storage.downloadErr = errors.New("connection reset")
	_, raw := request(t)

	require.NoError(t, h.uc.Execute(context.Background(), raw))
	assert.Len(t, h.broker.dlq, 1)
	assert.Len(t, h.notifier.sent, 1)

	// A redelivery after exhaustion goes straight to the DLQ.
	require.NoError(t, h.uc.Execute(context.Background(), raw))
	assert.Len(t, h.broker.dlq, 2)
}

func TestExecuteSkipsCompletedJob(t *testing.T) {
	h := newHarness(t, 3, scripted{})
	msg, raw := request(t)
	job := entity.NewScanJob(msg.UserID, msg.VideoKey, msg.FileSize, 3)
	job.ID = msg.JobID
	job.MarkCompleted("k", 0, "", 10)
	require.NoError(t, h.repo.Create(context.Background(), job))

	require.NoError(t, h.uc.Execute(context.Background(), raw))
	assert.Empty(t, h.broker.statuses)
}

func TestExecuteMalformedMessage(t *testing.T) {
	h := newHarness(t, 3, scripted{})

	require.NoError(t, h.uc.Execute(context.Background(), []byte("{not json")))
	require.Len(t, h.broker.dlq, 1)
	assert.Contains(t, h.broker.dlq[0], "unmarshal_error")
}

func TestExecuteRequeuesOnRepositoryError(t *testing.T) {
	h := newHarness(t, 3, scripted{})
	h.repo.findErr = errors.New("db down")
	_, raw := request(t)

	assert.Error(t, h.uc.Execute(context.Background(), raw))
	assert.Empty(t, h.broker.dlq)
}

func TestExecuteRequeuesScanInterruptedMidRead(t *testing.T) {
	h := newHarness(t, 3, scripted{
		3: {Time: "1:23.456", Source: entity.SourceSolo},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.opener.src.cancelAt = 63
	h.opener.src.cancel = cancel
	msg, raw := request(t)

	err := h.uc.Execute(ctx, raw)
	require.ErrorIs(t, err, context.Canceled)

	job := h.repo.jobs[msg.JobID]
	assert.Equal(t, entity.JobStatusProcessing, job.Status)
	assert.Empty(t, h.repo.detections[msg.JobID])
	assert.Empty(t, h.storage.uploadedKey)
	assert.Empty(t, h.broker.dlq)
}
