package archive

import (
	"context"
	"fmt"

	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/config"
	"github.com/rs/zerolog"
)

// New constructs the configured Backend for a system's archive config
// (spec §4.5). The backend string selects one of the four variants; a
// disabled config returns a nil backend and no error, and an unrecognized
// backend string returns an error.
func New(ctx context.Context, cfg config.ArchiveConfig, log zerolog.Logger) (Backend, error) {
	if !cfg.Enabled.Bool() {
		return nil, nil
	}
	switch cfg.Backend {
	case "local":
		return NewLocalBackend(cfg.Local.ArchiveRoot, cfg.Local.BaseURL, log), nil
	case "s3":
		return NewS3Backend(ctx, cfg.S3.Bucket, cfg.S3.Region, cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey, log)
	case "gcs":
		return NewGCSBackend(ctx, cfg.GCS.Bucket, cfg.GCS.CredentialsFile, log)
	case "scp":
		return NewSCPBackend(cfg.SCP.Host, cfg.SCP.Port, cfg.SCP.Username, cfg.SCP.Password, cfg.SCP.PrivateKey, cfg.SCP.BaseURL, log), nil
	default:
		return nil, fmt.Errorf("archive: unknown backend %q", cfg.Backend)
	}
}
