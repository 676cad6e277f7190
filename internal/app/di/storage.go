package di

import (
	"context"
	"fmt"

	"scholarly_library/internal/feature/papers/usecase"
	"scholarly_library/internal/platform/config"
	infrahttp "scholarly_library/internal/platform/http"
	"scholarly_library/internal/platform/storage"
)

// NewFileStore creates the upload store selected by storage.driver.
func NewFileStore(ctx context.Context, cfg config.StorageConfig) (usecase.FileStore, error) {
	switch cfg.Driver {
	case "s3":
		s3, err := storage.NewS3(ctx, cfg.S3, infrahttp.NewHTTPClient(cfg.S3.Timeout))
		if err != nil {
			return nil, err
		}
		return s3, nil
	case "local", "":
		local, err := storage.NewLocal(cfg.LocalDir, cfg.PublicPrefix)
		if err != nil {
			return nil, err
		}
		return local, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
