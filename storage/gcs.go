package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	gcs "cloud.google.com/go/storage"
	"github.com/princinho/postboard/config"
	"google.golang.org/api/option"
)

// GCSStore uploads to a Google Cloud Storage bucket.
type GCSStore struct {
	client *gcs.Client
	bucket string
}

// NewGCSStore authenticates with the service account file at
// CREDENTIALS_FILE_LOCATION, relative to the working directory, or with the
// default credentials when it is unset.
func NewGCSStore(ctx context.Context, cfg config.StorageConfig) (*GCSStore, error) {
	if cfg.GCSBucket == "" {
		return nil, fmt.Errorf("missing GCS_BUCKET")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		path := cfg.CredentialsFile
		if !filepath.IsAbs(path) {
			wd, err := os.Getwd()
			if err != nil {
				return nil, err
			}
			path = filepath.Join(wd, path)
		}
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, path))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &GCSStore{client: client, bucket: cfg.GCSBucket}, nil
}

func (g *GCSStore) Put(ctx context.Context, obj Object) (string, error) {
	w := g.client.Bucket(g.bucket).Object(obj.Key).If(gcs.Conditions{DoesNotExist: true}).NewWriter(ctx)
	if obj.ContentType != "" {
		w.ContentType = obj.ContentType
	}
	if _, err := io.Copy(w, obj.Body); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload copy: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("upload close: %w", err)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, obj.Key), nil
}

func (g *GCSStore) Delete(ctx context.Context, key string) error {
	if err := g.client.Bucket(g.bucket).Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (g *GCSStore) Close() error {
	return g.client.Close()
}
