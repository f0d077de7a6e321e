package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os/exec"
	"strconv"

	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/entity"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/port"
	"go.uber.org/zap"
)

// FrameExtractor decodes single frames by running ffmpeg once per timestamp.
// It needs no cgo and works wherever the ffmpeg binaries are installed.
type FrameExtractor struct {
	ffmpegPath  string
	ffprobePath string
	logger      *zap.Logger
}

func NewFrameExtractor(ffmpegPath, ffprobePath string, logger *zap.Logger) *FrameExtractor {
	return &FrameExtractor{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, logger: logger}
}

func (e *FrameExtractor) Open(ctx context.Context, videoPath string) (port.FrameSource, error) {
	meta, err := e.probe(ctx, videoPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", entity.ErrInvalidVideo, videoPath, err)
	}
	if meta.FPS <= 0 {
		return nil, fmt.Errorf("%w: %s: invalid frame rate", entity.ErrInvalidVideo, videoPath)
	}
	if meta.FrameCount <= 0 {
		return nil, fmt.Errorf("%w: %s: no frames", entity.ErrInvalidVideo, videoPath)
	}
	if meta.Width <= 0 || meta.Height <= 0 {
		return nil, fmt.Errorf("%w: %s: invalid dimensions %dx%d", entity.ErrInvalidVideo, videoPath, meta.Width, meta.Height)
	}

	e.logger.Info("video probed",
		zap.String("path", videoPath),
		zap.Float64("fps", meta.FPS),
		zap.Float64("frames", meta.FrameCount),
		zap.Int("width", meta.Width),
		zap.Int("height", meta.Height),
	)

	return &frameSource{extractor: e, path: videoPath, meta: meta}, nil
}

type frameSource struct {
	extractor *FrameExtractor
	path      string
	meta      VideoMeta
}

func (s *frameSource) Duration() float64 { return s.meta.FrameCount / s.meta.FPS }

func (s *frameSource) Size() (width, height int) { return s.meta.Width, s.meta.Height }

func (s *frameSource) FrameAt(ctx context.Context, timestampSec float64) (*entity.Frame, error) {
	if timestampSec >= s.Duration() {
		return nil, port.ErrNoFrame
	}

	cmd := exec.CommandContext(ctx, s.extractor.ffmpegPath,
		"-v", "error",
		"-ss", strconv.FormatFloat(timestampSec, 'f', 3, 64),
		"-i", s.path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg error: %w, output: %s", err, stderr.String())
	}
	if len(output) == 0 {
		return nil, port.ErrNoFrame
	}

	img, err := png.Decode(bytes.NewReader(output))
	if err != nil {
		return nil, fmt.Errorf("decode frame at %.2fs: %w", timestampSec, err)
	}
	return &entity.Frame{Image: img, TimestampSec: timestampSec}, nil
}

// Close is a no-op: each frame read is its own ffmpeg process.
func (s *frameSource) Close() error { return nil }
