// Package classifier reads the results HUD of a single frame.
package classifier

import (
	"context"
	"image"
	"image/draw"
	"time"

	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/entity"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/port"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/geometry"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/infra/metrics"
	"go.uber.org/zap"
)

// Reading is the authoritative time on a frame and where it came from.
type Reading struct {
	Time   string
	Source entity.Source
}

type Classifier struct {
	recognizer port.TextRecognizer
	opts       port.OCROptions
	logger     *zap.Logger
}

func New(recognizer port.TextRecognizer, opts port.OCROptions, logger *zap.Logger) *Classifier {
	return &Classifier{recognizer: recognizer, opts: opts, logger: logger}
}

// Classify returns the player's time on frame, if the results screen is showing.
//
// Two parseable boxes mean a ghost race: the border probe is blue when the
// ghost finished first, so the player's time is the bottom box. Otherwise the
// solo box is used.
func (c *Classifier) Classify(ctx context.Context, frame *entity.Frame, geo geometry.Resolved) (Reading, bool) {
	top, topOK := c.readRegion(ctx, frame, geo, geometry.RegionTop)
	bottom, bottomOK := c.readRegion(ctx, frame, geo, geometry.RegionBottom)
	solo, soloOK := c.readRegion(ctx, frame, geo, geometry.RegionSolo)

	switch {
	case topOK && bottomOK:
		if c.ghostAhead(frame, geo.BorderProbe) {
			return Reading{Time: bottom, Source: entity.SourceGhostLost}, true
		}
		return Reading{Time: top, Source: entity.SourceGhostWon}, true
	case soloOK:
		return Reading{Time: solo, Source: entity.SourceSolo}, true
	default:
		return Reading{}, false
	}
}

// ghostAhead reports whether the border probe is blue. A probe outside the
// decoded frame counts as not blue.
func (c *Classifier) ghostAhead(frame *entity.Frame, p image.Point) bool {
	if !p.In(frame.Image.Bounds()) {
		c.logger.Debug("border probe outside frame",
			zap.Int("x", p.X),
			zap.Int("y", p.Y),
			zap.Stringer("bounds", frame.Image.Bounds()),
			zap.Float64("timestamp", frame.TimestampSec),
		)
		return false
	}
	return IsBlue(frame.Image.At(p.X, p.Y))
}

func (c *Classifier) readRegion(ctx context.Context, frame *entity.Frame, geo geometry.Resolved, region geometry.Region) (string, bool) {
	crop := Crop(frame.Image, geo.Rect(region))
	if crop.Bounds().Empty() {
		return "", false
	}

	start := time.Now()
	text, err := c.recognizer.Recognize(ctx, crop, c.opts)
	metrics.OCRDuration.WithLabelValues(string(region)).Observe(time.Since(start).Seconds())
	if err != nil {
		c.logger.Debug("ocr failed",
			zap.String("region", string(region)),
			zap.Float64("timestamp", frame.TimestampSec),
			zap.Error(err),
		)
		return "", false
	}
	return ExtractTime(text)
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Crop returns the part of img inside r, clipped to the image bounds.
func Crop(img image.Image, r image.Rectangle) image.Image {
	r = r.Intersect(img.Bounds())
	if si, ok := img.(subImager); ok {
		return si.SubImage(r)
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}
