package tesseract

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePNGKeepsSubImageBounds(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	img.Set(12, 7, color.White)
	crop := img.SubImage(image.Rect(10, 5, 30, 15))

	data, err := encodePNG(crop)
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 20, decoded.Bounds().Dx())
	assert.Equal(t, 10, decoded.Bounds().Dy())
}

func TestRecognizeBlankImage(t *testing.T) {
	if os.Getenv("TESSERACT_TESTS") == "" {
		t.Skip("set TESSERACT_TESTS=1 to run against a local tesseract install")
	}
	r := NewRecognizer()
	defer r.Close()

	text, err := r.Recognize(context.Background(), image.NewRGBA(image.Rect(0, 0, 200, 50)), port.DefaultOCROptions())
	if err == nil {
		assert.Empty(t, text)
	}
}

func TestRecognizeKeepsEngineConfigAcrossCalls(t *testing.T) {
	if os.Getenv("TESSERACT_TESTS") == "" {
		t.Skip("set TESSERACT_TESTS=1 to run against a local tesseract install")
	}
	r := NewRecognizer()
	defer r.Close()

	blank := image.NewRGBA(image.Rect(0, 0, 200, 50))
	opts := port.DefaultOCROptions()
	for i := 0; i < 2; i++ {
		_, err := r.Recognize(context.Background(), blank, opts)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"eng"}, r.client.Languages)
	assert.Equal(t, "7", r.client.Variables[pageSegModeVar])
	assert.Equal(t, port.PageSegSingleLine, r.mode)

	opts.Mode = port.PageSegAuto
	_, err := r.Recognize(context.Background(), blank, opts)
	require.NoError(t, err)
	assert.Equal(t, "3", r.client.Variables[pageSegModeVar])
}

func TestRecognizeHonoursCancelledContext(t *testing.T) {
	r := &Recognizer{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Recognize(ctx, image.NewRGBA(image.Rect(0, 0, 1, 1)), port.DefaultOCROptions())
	assert.ErrorIs(t, err, context.Canceled)
}
