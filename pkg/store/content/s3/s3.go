// Package s3 implements content storage on Amazon S3 or S3-compatible
// object stores.
//
// Object keys mirror the share-relative file paths, optionally under a
// configured prefix, so a bucket can be inspected with ordinary S3 tooling.
// The backend has its own access control model and no OS-level permission
// checks, so operations against it never need an identity switch.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/driftlab/driftfs/internal/logger"
	"github.com/driftlab/driftfs/pkg/store/content"
)

// S3ContentStore implements content.ContentStore on an S3 bucket.
//
// Writes buffer the full object in memory before upload; this store targets
// modest file sizes, not multi-gigabyte streaming.
type S3ContentStore struct {
	client    *s3.Client
	bucket    string
	keyPrefix string

	mu     sync.RWMutex
	closed bool
}

// S3ContentStoreConfig contains configuration for the S3 content store.
type S3ContentStoreConfig struct {
	// Client is the configured S3 client.
	Client *s3.Client

	// Bucket is the S3 bucket name. The bucket must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys, e.g.
	// "driftfs/export/" results in keys like "driftfs/export/docs/a.txt".
	KeyPrefix string
}

// NewS3ClientFromConfig creates an S3 client from flat configuration values.
// An empty endpoint uses the AWS default; a custom endpoint with path-style
// addressing supports MinIO and other S3-compatible services.
func NewS3ClientFromConfig(
	ctx context.Context,
	endpoint,
	region,
	accessKeyID,
	secretAccessKey string,
	forcePathStyle bool,
) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID,
			secretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = &endpoint
		}
		o.UsePathStyle = forcePathStyle
	})
	return client, nil
}

// NewS3ContentStore creates a store on the configured bucket and verifies
// access with a HeadBucket call.
func NewS3ContentStore(ctx context.Context, cfg S3ContentStoreConfig) (*S3ContentStore, error) {
	if cfg.Client == nil {
		return nil, errors.New("s3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	store := &S3ContentStore{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}

	if _, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	}); err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	logger.Debug("s3 content store ready",
		logger.KeyBucket, cfg.Bucket,
		logger.KeyPath, cfg.KeyPrefix)
	return store, nil
}

// EnforcesOSPermissions reports false: S3 access control is bucket policy,
// not Unix file permissions.
func (s *S3ContentStore) EnforcesOSPermissions() bool { return false }

func (s *S3ContentStore) key(contentPath string) (string, error) {
	cleaned, err := content.CleanPath(contentPath)
	if err != nil {
		return "", err
	}
	return s.keyPrefix + cleaned, nil
}

func (s *S3ContentStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return content.ErrStoreClosed
	}
	return nil
}

// isNotFound recognizes the various shapes S3 uses for missing objects.
func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noKey) || errors.As(err, &notFound)
}

// ReadContent streams the object body.
func (s *S3ContentStore) ReadContent(ctx context.Context, contentPath string) (io.ReadCloser, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	key, err := s.key(contentPath)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, content.ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to get object %q: %w", key, err)
	}
	return out.Body, nil
}

// WriteContent uploads the data as a single object.
func (s *S3ContentStore) WriteContent(ctx context.Context, contentPath string, r io.Reader) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	key, err := s.key(contentPath)
	if err != nil {
		return 0, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("failed to buffer content: %w", err)
	}

	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}); err != nil {
		return 0, fmt.Errorf("failed to put object %q: %w", key, err)
	}
	return int64(len(data)), nil
}

// DeleteContent removes the object. S3 deletes are silent for missing keys,
// so existence is checked first to honor the not-found contract.
func (s *S3ContentStore) DeleteContent(ctx context.Context, contentPath string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	key, err := s.key(contentPath)
	if err != nil {
		return err
	}

	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		if isNotFound(err) {
			return content.ErrContentNotFound
		}
		return fmt.Errorf("failed to check object %q: %w", key, err)
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("failed to delete object %q: %w", key, err)
	}
	return nil
}

// StatContent returns object size and modification time from a HeadObject.
func (s *S3ContentStore) StatContent(ctx context.Context, contentPath string) (content.ContentInfo, error) {
	if err := s.checkOpen(); err != nil {
		return content.ContentInfo{}, err
	}

	key, err := s.key(contentPath)
	if err != nil {
		return content.ContentInfo{}, err
	}

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return content.ContentInfo{}, content.ErrContentNotFound
		}
		return content.ContentInfo{}, fmt.Errorf("failed to head object %q: %w", key, err)
	}

	info := content.ContentInfo{
		Path: strings.TrimPrefix(key, s.keyPrefix),
		Size: aws.ToInt64(out.ContentLength),
	}
	if out.LastModified != nil {
		info.ModTime = *out.LastModified
	}
	return info, nil
}

// Close marks the store closed. The S3 client holds no connections that
// need explicit teardown.
func (s *S3ContentStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
