package storage

import (
	"context"
	"fmt"

	"outfit-studio/internal/config"
)

// New builds the artifact store selected by cfg.Backend.
func New(ctx context.Context, cfg config.ArtifactConfig) (ArtifactStore, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileStore(cfg.Dir, cfg.URLPrefix)
	case "s3":
		return NewS3Store(ctx, cfg.S3Region, cfg.S3Bucket, cfg.S3Prefix, cfg.PresignExpiry)
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", cfg.Backend)
	}
}
