package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strconv"
	"strings"
	"sync"

	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/port"
	"github.com/otiai10/gosseract/v2"
)

const pageSegModeVar = gosseract.SettableVariable("tessedit_pageseg_mode")

// Recognizer wraps a single Tesseract engine. Calls are serialized because
// the underlying client is not safe for concurrent use.
//
// Changing the language or page segmentation mode forces the engine to
// reload its traineddata, so both are applied only when they differ from
// the previous call.
type Recognizer struct {
	mu     sync.Mutex
	client *gosseract.Client

	configured bool
	language   string
	mode       port.PageSegMode
}

func NewRecognizer() *Recognizer {
	return &Recognizer{client: gosseract.NewClient()}
}

func (r *Recognizer) Recognize(ctx context.Context, img image.Image, opts port.OCROptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := encodePNG(img)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.configure(opts); err != nil {
		return "", err
	}
	if err := r.client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("load image: %w", err)
	}

	text, err := r.client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// configure must be called with mu held.
func (r *Recognizer) configure(opts port.OCROptions) error {
	if opts.Language != "" && (!r.configured || opts.Language != r.language) {
		if err := r.client.SetLanguage(opts.Language); err != nil {
			return fmt.Errorf("set language %q: %w", opts.Language, err)
		}
		r.language = opts.Language
	}
	// Set as a variable so the mode is re-applied after every engine init.
	if !r.configured || opts.Mode != r.mode {
		if err := r.client.SetVariable(pageSegModeVar, strconv.Itoa(int(opts.Mode))); err != nil {
			return fmt.Errorf("set page segmentation mode %d: %w", opts.Mode, err)
		}
		r.mode = opts.Mode
	}
	r.configured = true
	return nil
}

func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client.Close()
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}
	return buf.Bytes(), nil
}
