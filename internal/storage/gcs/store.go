// Package gcs provides a content store backed by Google Cloud Storage.
package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/JakeFAU/sitecrawler/internal/hash/sha256"
	"github.com/JakeFAU/sitecrawler/internal/logging"
	sitestorage "github.com/JakeFAU/sitecrawler/internal/storage"
)

// Config captures the bucket and key prefix content is written under.
type Config struct {
	Bucket string
	Prefix string
}

// Store writes fetched content to a bucket, one object per URL.
type Store struct {
	client     *storage.Client
	bucket     string
	prefix     string
	ownsClient bool
	logger     *zap.Logger
}

// New creates a store around an existing client.
func New(client *storage.Client, cfg Config, logger *zap.Logger) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: logging.OrNop(logger),
	}, nil
}

// Open creates a client using Application Default Credentials (or opts) and
// fails fast when the bucket is not reachable.
func Open(ctx context.Context, cfg Config, logger *zap.Logger, opts ...option.ClientOption) (*Store, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	s, err := New(client, cfg, logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if _, err := client.Bucket(cfg.Bucket).Attrs(ctx); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			s.logger.Warn("close gcs client after bucket check failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("get gcs bucket %q attributes: %w", cfg.Bucket, err)
	}
	s.ownsClient = true
	return s, nil
}

// Key returns the object name Save uses for name.
func (s *Store) Key(name, contentType string) string {
	return sitestorage.ObjectKey(name, contentType, s.prefix)
}

// Save uploads data, overwriting any existing object. The source URL and the
// content digest are recorded as object metadata.
func (s *Store) Save(ctx context.Context, name string, data []byte, contentType string) error {
	key := s.Key(name, contentType)
	writer := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	writer.Metadata = map[string]string{
		"source_url":       name,
		sha256.MetadataKey: sha256.Digest(data),
	}
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			s.logger.Warn("close gcs writer after copy failure", zap.String("object", key), zap.Error(closeErr))
		}
		return fmt.Errorf("copy object %s: %w", key, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", key, err)
	}
	s.logger.Debug("object written", zap.String("bucket", s.bucket), zap.String("object", key))
	return nil
}

// URI returns the gs:// location of name.
func (s *Store) URI(name, contentType string) string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, s.Key(name, contentType))
}

// Close releases the client when the store created it.
func (s *Store) Close() error {
	if !s.ownsClient {
		return nil
	}
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close gcs client: %w", err)
	}
	return nil
}
