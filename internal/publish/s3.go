// Package publish uploads built artifacts to S3-compatible object storage.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/afero"
)

// CacheControl is set on every object. Artifact names change whenever their
// content does, so objects can be cached forever.
const CacheControl = "public, max-age=31536000, immutable"

// S3Config describes the bucket artifacts are uploaded to. Region defaults
// to us-east-1.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// S3Publisher uploads artifacts to a single bucket. The bucket is checked,
// and created if missing, on the first Publish.
type S3Publisher struct {
	client     *minio.Client
	fs         afero.Fs
	logger     *slog.Logger
	bucketName string
	region     string
	prefix     string
	initOnce   sync.Once
	initErr    error
}

// NewS3Publisher validates cfg and creates the client. No request is made
// until Publish. A nil fs reads from the OS filesystem.
func NewS3Publisher(cfg S3Config, fs afero.Fs, logger *slog.Logger) (*S3Publisher, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Publisher{
		client:     client,
		fs:         fs,
		logger:     logger,
		bucketName: bucket,
		region:     region,
		prefix:     strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
	}, nil
}

func (p *S3Publisher) ensureBucket(ctx context.Context) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is nil")
	}
	p.initOnce.Do(func() {
		exists, err := p.client.BucketExists(ctx, p.bucketName)
		if err != nil {
			p.initErr = err
			return
		}
		if exists {
			return
		}
		p.initErr = p.client.MakeBucket(ctx, p.bucketName, minio.MakeBucketOptions{Region: p.region})
	})
	return p.initErr
}

// ObjectKey returns the key an artifact called filename is stored under.
func (p *S3Publisher) ObjectKey(filename string) string {
	if p.prefix == "" {
		return filename
	}
	return path.Join(p.prefix, filename)
}

// Publish uploads the file at localPath and returns its object key.
func (p *S3Publisher) Publish(ctx context.Context, localPath string) (string, error) {
	if err := p.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}

	content, err := afero.ReadFile(p.fs, localPath)
	if err != nil {
		return "", fmt.Errorf("read artifact: %w", err)
	}

	name := filepath.Base(localPath)
	key := p.ObjectKey(name)
	contentType, contentEncoding := ContentType(name)

	_, err = p.client.PutObject(ctx, p.bucketName, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType:     contentType,
		ContentEncoding: contentEncoding,
		CacheControl:    CacheControl,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	p.logger.Info("artifact published", "bucket", p.bucketName, "key", key, "bytes", len(content))
	return key, nil
}

var contentTypes = map[string]string{
	".js":  "application/javascript",
	".css": "text/css",
}

// ContentType derives the content type and encoding of an artifact from its
// name. Precompressed copies keep the type of the file they compress.
func ContentType(name string) (contentType, contentEncoding string) {
	switch filepath.Ext(name) {
	case ".gz":
		contentEncoding = "gzip"
		name = strings.TrimSuffix(name, ".gz")
	case ".zst":
		contentEncoding = "zstd"
		name = strings.TrimSuffix(name, ".zst")
	}

	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := contentTypes[ext]; ok {
		return t, contentEncoding
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t, contentEncoding
	}
	return "application/octet-stream", contentEncoding
}
