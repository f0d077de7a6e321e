package port

import (
	"context"
	"errors"

	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/entity"
)

// ErrNoFrame signals that the requested timestamp is at or past the end of the stream.
var ErrNoFrame = errors.New("no frame at timestamp")

// FrameSource gives timestamp-indexed access to a decoded video.
type FrameSource interface {
	// Duration is frame count / fps, in seconds.
	Duration() float64
	Size() (width, height int)
	FrameAt(ctx context.Context, timestampSec float64) (*entity.Frame, error)
	Close() error
}

type VideoOpener interface {
	Open(ctx context.Context, path string) (FrameSource, error)
}
