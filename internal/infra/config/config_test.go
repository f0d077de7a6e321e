package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)

	assert.Equal(t, DecoderGoCV, cfg.ScanDecoder)
	assert.Equal(t, 1.0, cfg.ScanStepIdleSec)
	assert.Equal(t, 60.0, cfg.ScanStepAfterHitSec)
	assert.Equal(t, "timetrial.scan", cfg.RabbitMQScanQueue)
	assert.Equal(t, "eng", cfg.OCRLanguage)
}

func TestLoadFromEnvAndDotenv(t *testing.T) {
	dotenv := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("SCAN_DECODER=ffmpeg\nWORKER_COUNT=4\n"), 0o644))
	t.Setenv("WORKER_COUNT", "6")
	t.Setenv("SCAN_STEP_AFTER_HIT_SECONDS", "45")
	t.Cleanup(func() { os.Unsetenv("SCAN_DECODER") })

	cfg, err := Load(dotenv)
	require.NoError(t, err)
	assert.Equal(t, DecoderFFmpeg, cfg.ScanDecoder)
	assert.Equal(t, 6, cfg.WorkerCount)
	assert.Equal(t, 45.0, cfg.ScanStepAfterHitSec)
}

func TestLoadRejectsUnknownDecoder(t *testing.T) {
	t.Setenv("SCAN_DECODER", "vlc")
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.Error(t, err)
}

func TestLoadRejectsZeroStep(t *testing.T) {
	t.Setenv("SCAN_STEP_IDLE_SECONDS", "0")
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.Error(t, err)
}
