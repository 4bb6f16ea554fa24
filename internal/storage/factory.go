package storage

import (
	"fmt"

	"github.com/rowjay/content-restore/internal/config"
)

// New opens the backup location described by cfg. Keys are resolved below cfg.Prefix.
func New(cfg config.StorageConfig) (Storage, error) {
	var (
		store Storage
		err   error
	)
	switch cfg.Backend {
	case "local", "":
		if cfg.Local.Path == "" {
			return nil, fmt.Errorf("local storage path is required")
		}
		store = NewLocal(cfg.Local.Path)
	case "s3":
		if cfg.S3.Endpoint == "" || cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("s3 endpoint and bucket are required")
		}
		store, err = NewS3(cfg.S3.Endpoint, cfg.S3.Region, cfg.S3.Bucket, cfg.S3.AccessKey, cfg.S3.SecretKey, cfg.S3.SessionToken, cfg.S3.UseSSL, cfg.S3.ForcePathStyle, cfg.S3.TLSInsecureSkip)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
	if cfg.Prefix != "" {
		store = WithPrefix(store, cfg.Prefix)
	}
	return store, nil
}
