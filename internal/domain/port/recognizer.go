package port

import (
	"context"
	"image"
)

type PageSegMode int

const (
	PageSegAuto       PageSegMode = 3
	PageSegSingleLine PageSegMode = 7
)

// OCROptions is passed with every recognition call instead of living in engine globals.
type OCROptions struct {
	Mode     PageSegMode
	Language string
}

func DefaultOCROptions() OCROptions {
	return OCROptions{Mode: PageSegSingleLine, Language: "eng"}
}

type TextRecognizer interface {
	Recognize(ctx context.Context, img image.Image, opts OCROptions) (string, error)
}
