// Package archive stores order documents and exports outside the local
// database, in a directory or an S3 bucket.
package archive

import (
	"context"
	"fmt"

	"poflow/internal/config"
)

// Archive stores an object under key and returns where it ended up.
type Archive interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// FromConfig returns the configured archive, or nil for ARCHIVE_BACKEND=none.
func FromConfig(ctx context.Context, cfg config.Config) (Archive, error) {
	switch cfg.ArchiveBackend {
	case "", "none":
		return nil, nil
	case "dir":
		if err := cfg.Require("ARCHIVE_DIR", cfg.ArchiveDir); err != nil {
			return nil, err
		}
		return NewDir(cfg.ArchiveDir), nil
	case "s3":
		if err := cfg.Require("S3_BUCKET", cfg.S3Bucket); err != nil {
			return nil, err
		}
		return NewS3(ctx, S3Options{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Prefix:    cfg.S3Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown ARCHIVE_BACKEND %q", cfg.ArchiveBackend)
	}
}
