package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ekaya-inc/tablelink/pkg/config"
)

// Sink stores encoded reports.
type Sink interface {
	// Write stores data under name and returns where it ended up.
	Write(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// NewSink builds the sink selected by cfg. It returns nil for SnapshotNone.
func NewSink(ctx context.Context, cfg *config.SnapshotConfig) (Sink, error) {
	switch cfg.Type {
	case config.SnapshotNone, "":
		return nil, nil
	case config.SnapshotFile:
		return NewFileSink(cfg.Path), nil
	case config.SnapshotMinio:
		sink, err := NewMinioSink(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return sink, nil
	default:
		return nil, fmt.Errorf("unknown snapshot type %q", cfg.Type)
	}
}

// FileSink writes reports below a local directory.
type FileSink struct {
	dir string
}

// NewFileSink creates a FileSink rooted at dir.
func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

func (s *FileSink) Write(_ context.Context, name string, data []byte, _ string) (string, error) {
	path := filepath.Join(s.dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	return path, nil
}

// MinioSink writes reports to an S3-compatible bucket.
type MinioSink struct {
	client *miniogo.Client
	bucket string
}

// NewMinioSink connects to the object store and creates the bucket when missing.
func NewMinioSink(ctx context.Context, cfg *config.SnapshotConfig) (*MinioSink, error) {
	client, err := miniogo.New(config.ResolveEndpointForDocker(cfg.Endpoint), &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, miniogo.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &MinioSink{client: client, bucket: cfg.Bucket}, nil
}

func (s *MinioSink) Write(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)),
		miniogo.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, name), nil
}
