package port

import "context"

// Zipper bundles evidence files flat, by base name, into a single archive.
type Zipper interface {
	CreateZip(ctx context.Context, filePaths []string, outputPath string) error
}
