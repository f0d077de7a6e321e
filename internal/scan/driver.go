// Package scan walks a video timeline and collects race results.
package scan

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/BayesicGaming/MKWTTSpeedruns/internal/classifier"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/entity"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/port"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/geometry"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/infra/metrics"
	"go.uber.org/zap"
)

type FrameClassifier interface {
	Classify(ctx context.Context, frame *entity.Frame, geo geometry.Resolved) (classifier.Reading, bool)
}

// ProgressFunc receives the scanned fraction of the timeline in [0,1].
// It is called synchronously once per sampled frame and must return quickly.
type ProgressFunc func(fraction float64, status string)

type Config struct {
	// StepIdle is the advance after a frame with no new result.
	StepIdle float64
	// StepAfterHit is the advance after a new result. A results screen stays
	// up until the next race starts, so this skips most of it. A different
	// result shown inside this window is missed.
	StepAfterHit float64
	Reference    geometry.Reference
}

func DefaultConfig() Config {
	return Config{
		StepIdle:     1.0,
		StepAfterHit: 60.0,
		Reference:    geometry.DefaultReference(),
	}
}

func (c Config) Validate() error {
	if c.StepIdle <= 0 || c.StepAfterHit <= 0 {
		return fmt.Errorf("scan steps must be positive (idle=%v, after hit=%v)", c.StepIdle, c.StepAfterHit)
	}
	return c.Reference.Validate()
}

type Options struct {
	Progress ProgressFunc
	// OnDetection sees each accepted detection together with its frame.
	OnDetection func(d entity.Detection, frame *entity.Frame)
}

type Driver struct {
	classifier FrameClassifier
	cfg        Config
	logger     *zap.Logger
}

func NewDriver(c FrameClassifier, cfg Config, logger *zap.Logger) *Driver {
	return &Driver{classifier: c, cfg: cfg, logger: logger}
}

// Run scans src from the start and returns every distinct result in timeline order.
//
// Read failures end the scan and keep what was collected. Only setup problems
// (bad config, unusable frame size) are returned before scanning. If ctx is
// cancelled between frames the partial table is returned with ctx.Err().
func (d *Driver) Run(ctx context.Context, src port.FrameSource, opts Options) (*entity.ResultTable, error) {
	if err := d.cfg.Validate(); err != nil {
		return nil, err
	}

	width, height := src.Size()
	geo, err := geometry.Resolve(d.cfg.Reference, width, height)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidVideo, err)
	}

	duration := src.Duration()
	results := entity.NewResultTable()
	var (
		current float64
		last    string
		status  string
	)

	for current < duration {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		frame, err := src.FrameAt(ctx, current)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return results, cerr
			}
			if errors.Is(err, port.ErrNoFrame) {
				d.logger.Debug("end of stream", zap.Float64("timestamp", current))
			} else {
				d.logger.Warn("frame read failed, stopping scan", zap.Float64("timestamp", current), zap.Error(err))
			}
			break
		}
		metrics.FramesSampledTotal.Inc()

		if opts.Progress != nil {
			opts.Progress(Fraction(current, duration), status)
		}

		reading, ok := d.classifier.Classify(ctx, frame, geo)
		if ok && reading.Time != last {
			det := entity.Detection{
				Time:         reading.Time,
				TimestampSec: roundCentis(current),
				Source:       reading.Source,
			}
			results.Append(det)
			metrics.DetectionsTotal.WithLabelValues(string(det.Source)).Inc()
			d.logger.Info("detected time",
				zap.String("time", det.Time),
				zap.Float64("timestamp", det.TimestampSec),
				zap.String("source", string(det.Source)),
			)
			if opts.OnDetection != nil {
				opts.OnDetection(det, frame)
			}

			status = fmt.Sprintf("Detected time: %s at %.2f sec (source: %s)", det.Time, det.TimestampSec, det.Source)
			last = reading.Time
			current += d.cfg.StepAfterHit
			continue
		}
		current += d.cfg.StepIdle
	}

	return results, nil
}

// Fraction clamps position/duration to [0,1].
func Fraction(position, duration float64) float64 {
	if duration <= 0 {
		return 1
	}
	return math.Min(1, math.Max(0, position/duration))
}

func roundCentis(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
