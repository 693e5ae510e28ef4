// Package storage keeps uploaded item images on local disk or in S3.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/example/foodhall/pkg/config"
	"github.com/google/uuid"
)

type ImageStore interface {
	// Save stores the image and returns the key recorded on the item.
	Save(ctx context.Context, filename, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
}

func New(ctx context.Context, cfg *config.StorageConfig) (ImageStore, error) {
	switch cfg.Driver {
	case "s3":
		return NewS3Store(ctx, cfg)
	case "local", "":
		return NewLocalStore(cfg.UploadDir)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// objectName builds a collision-free name that keeps the upload's extension.
func objectName(filename, contentType string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		switch contentType {
		case "image/jpeg", "image/jpg":
			ext = ".jpg"
		default:
			if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
				ext = exts[0]
			}
		}
	}
	return uuid.NewString() + ext
}
