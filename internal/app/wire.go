package app

import (
	"context"

	"github.com/rowjay/content-restore/internal/backupset"
	"github.com/rowjay/content-restore/internal/config"
	"github.com/rowjay/content-restore/internal/contentapi"
	"github.com/rowjay/content-restore/internal/storage"
)

// NewServiceClient builds the content API client described by cfg.
func NewServiceClient(ctx context.Context, cfg *config.Config) (*contentapi.Client, error) {
	return contentapi.New(ctx, contentapi.Options{
		Endpoint:   cfg.Service.Endpoint,
		Deployment: cfg.Service.Deployment,
		AccessID:   cfg.Service.AccessID,
		AccessKey:  cfg.Service.AccessKey,
		UserAgent:  cfg.Global.UserAgent,
		AdminMode:  cfg.Service.AdminMode,
		Overwrite:  cfg.Service.Overwrite,
		Timeout:    cfg.Service.HTTPTimeout,
		Interval:   cfg.Restore.RateInterval,
		Burst:      cfg.Restore.RateBurst,
	})
}

// OpenBackup opens the backup location and the backup set stored in it.
func OpenBackup(cfg *config.Config) (storage.Storage, *backupset.Set, error) {
	store, err := storage.New(cfg.Storage)
	if err != nil {
		return nil, nil, err
	}
	set, err := backupset.New(store, backupset.Options{
		ManifestKey:   cfg.Backup.ManifestKey,
		ContentPrefix: cfg.Backup.ContentPrefix,
		Compression:   cfg.Backup.Compression,
		Encryption:    cfg.Backup.Encryption,
		EncryptionKey: cfg.Backup.EncryptionKey,
	})
	if err != nil {
		return nil, nil, err
	}
	return store, set, nil
}
