package port

import (
	"context"
	"io"
)

// VideoStorage reads uploaded recordings and stores the evidence archive of a scan.
type VideoStorage interface {
	DownloadVideo(ctx context.Context, objectKey string, destPath string) error
	UploadEvidence(ctx context.Context, objectKey string, reader io.Reader, size int64) error
}
