// Package geometry maps HUD regions calibrated on a reference frame onto
// frames of any size by proportional scaling.
package geometry

import (
	"errors"
	"fmt"
	"image"
)

var ErrInvalidDimensions = errors.New("frame dimensions must be positive")

type Region string

const (
	RegionTop    Region = "top"
	RegionBottom Region = "bottom"
	RegionSolo   Region = "solo"
)

// Box is a rectangle in fractions of the reference frame.
type Box struct {
	Left, Top, Right, Bottom float64
}

// Point is a position in fractions of the reference frame.
type Point struct {
	X, Y float64
}

// Reference is the HUD layout measured on a reference-resolution frame.
type Reference struct {
	Width, Height int
	Regions       map[Region]Box
	BorderProbe   Point
}

// Resolved is a Reference mapped to the pixel grid of an actual video.
type Resolved struct {
	Width, Height int
	Regions       map[Region]image.Rectangle
	BorderProbe   image.Point
}

func (r Resolved) Rect(region Region) image.Rectangle {
	return r.Regions[region]
}

// DefaultReference returns the results-screen layout measured on 1920x1080 captures.
// With a ghost, two result boxes appear (faster time on top); a solo run shows one.
// The probe sits on the player's box border, which is blue when the ghost won.
func DefaultReference() Reference {
	const w, h = 1920.0, 1080.0
	return Reference{
		Width:  1920,
		Height: 1080,
		Regions: map[Region]Box{
			RegionTop:    {Left: 1252 / w, Top: 360 / h, Right: 1575 / w, Bottom: 438 / h},
			RegionBottom: {Left: 1252 / w, Top: 563 / h, Right: 1575 / w, Bottom: 641 / h},
			RegionSolo:   {Left: 1250 / w, Top: 410 / h, Right: 1580 / w, Bottom: 500 / h},
		},
		BorderProbe: Point{X: 1108 / w, Y: 436 / h},
	}
}

func (r Reference) Validate() error {
	for _, region := range []Region{RegionTop, RegionBottom, RegionSolo} {
		b, ok := r.Regions[region]
		if !ok {
			return fmt.Errorf("reference geometry: missing region %q", region)
		}
		if !inUnit(b.Left) || !inUnit(b.Top) || !inUnit(b.Right) || !inUnit(b.Bottom) {
			return fmt.Errorf("reference geometry: region %q outside [0,1]", region)
		}
		if b.Left >= b.Right || b.Top >= b.Bottom {
			return fmt.Errorf("reference geometry: region %q is empty or inverted", region)
		}
	}
	// The probe addresses a single pixel, so 1.0 would land one past the edge.
	if !inHalfOpenUnit(r.BorderProbe.X) || !inHalfOpenUnit(r.BorderProbe.Y) {
		return fmt.Errorf("reference geometry: border probe outside [0,1)")
	}
	return nil
}

// Resolve scales every region and the probe to width x height, truncating to whole pixels.
func Resolve(ref Reference, width, height int) (Resolved, error) {
	if width <= 0 || height <= 0 {
		return Resolved{}, fmt.Errorf("%w: got %dx%d", ErrInvalidDimensions, width, height)
	}
	if err := ref.Validate(); err != nil {
		return Resolved{}, err
	}

	fw, fh := float64(width), float64(height)
	regions := make(map[Region]image.Rectangle, len(ref.Regions))
	for name, b := range ref.Regions {
		regions[name] = image.Rect(
			int(b.Left*fw), int(b.Top*fh),
			int(b.Right*fw), int(b.Bottom*fh),
		)
	}

	return Resolved{
		Width:       width,
		Height:      height,
		Regions:     regions,
		BorderProbe: image.Pt(int(ref.BorderProbe.X*fw), int(ref.BorderProbe.Y*fh)),
	}, nil
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}

func inHalfOpenUnit(v float64) bool {
	return v >= 0 && v < 1
}
