// Package storage keeps uploaded files until the ingestion task reads them back.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"rag-backend/internal/config"
)

// Store saves an upload and returns an opaque location that Load accepts.
// Every Save gets its own location, even for repeated filenames.
type Store interface {
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
	Load(ctx context.Context, location string) ([]byte, error)
	Delete(ctx context.Context, location string) error
}

var ErrInvalidFilename = errors.New("invalid filename")

// New builds the upload store named by cfg.Type.
func New(ctx context.Context, cfg config.UploadsConfig) (Store, error) {
	switch cfg.Type {
	case "local", "":
		return NewLocal(cfg.Dir)
	case "s3":
		if cfg.S3 == nil {
			return nil, errors.New("uploads.s3 is required")
		}
		return NewS3(ctx, S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
	default:
		return nil, fmt.Errorf("unknown uploads type: %s", cfg.Type)
	}
}

// CleanFilename reduces a client-supplied name to its base name.
func CleanFilename(name string) (string, error) {
	name = strings.ReplaceAll(name, `\`, "/")
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." || base == ".." || strings.TrimSpace(base) == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	return base, nil
}

// uniqueName prefixes a cleaned filename with a random UUID.
func uniqueName(name string) string {
	return uuid.NewString() + "-" + name
}
