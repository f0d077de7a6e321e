package gocv

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/entity"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/port"
	"go.uber.org/zap"
	cv "gocv.io/x/gocv"
)

// VideoOpener opens local video files with OpenCV.
type VideoOpener struct {
	logger *zap.Logger
}

func NewVideoOpener(logger *zap.Logger) *VideoOpener {
	return &VideoOpener{logger: logger}
}

func (o *VideoOpener) Open(_ context.Context, path string) (port.FrameSource, error) {
	capture, err := cv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", entity.ErrInvalidVideo, path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: open %s: capture not opened", entity.ErrInvalidVideo, path)
	}

	fps := capture.Get(cv.VideoCaptureFPS)
	frames := capture.Get(cv.VideoCaptureFrameCount)
	width := int(capture.Get(cv.VideoCaptureFrameWidth))
	height := int(capture.Get(cv.VideoCaptureFrameHeight))

	if err := validateMeta(fps, frames, width, height); err != nil {
		capture.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	o.logger.Info("video opened",
		zap.String("path", path),
		zap.Float64("fps", fps),
		zap.Float64("frames", frames),
		zap.Int("width", width),
		zap.Int("height", height),
	)

	return &VideoSource{
		capture:  capture,
		duration: frames / fps,
		width:    width,
		height:   height,
	}, nil
}

func validateMeta(fps, frames float64, width, height int) error {
	if math.IsNaN(fps) || math.IsInf(fps, 0) || fps <= 0 {
		return fmt.Errorf("%w: invalid frame rate %v", entity.ErrInvalidVideo, fps)
	}
	if math.IsNaN(frames) || frames <= 0 {
		return fmt.Errorf("%w: no frames", entity.ErrInvalidVideo)
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: invalid dimensions %dx%d", entity.ErrInvalidVideo, width, height)
	}
	return nil
}

// VideoSource seeks an OpenCV capture by timestamp. Not safe for concurrent use.
type VideoSource struct {
	capture   *cv.VideoCapture
	duration  float64
	width     int
	height    int
	closeOnce sync.Once
	closeErr  error
}

func (s *VideoSource) Duration() float64 { return s.duration }

func (s *VideoSource) Size() (width, height int) { return s.width, s.height }

// FrameAt decodes the frame at timestampSec. OpenCV returns BGR; the
// resulting image is RGBA.
func (s *VideoSource) FrameAt(_ context.Context, timestampSec float64) (*entity.Frame, error) {
	if timestampSec >= s.duration {
		return nil, port.ErrNoFrame
	}
	s.capture.Set(cv.VideoCapturePosMsec, timestampSec*1000)

	mat := cv.NewMat()
	defer mat.Close()
	if ok := s.capture.Read(&mat); !ok || mat.Empty() {
		return nil, port.ErrNoFrame
	}

	img, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame at %.2fs: %w", timestampSec, err)
	}
	return &entity.Frame{Image: img, TimestampSec: timestampSec}, nil
}

func (s *VideoSource) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.capture.Close()
	})
	return s.closeErr
}
