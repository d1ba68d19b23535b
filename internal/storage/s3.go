package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"photoq/internal/config"
	"photoq/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// multipartThreshold is the size above which uploads go through the
// multipart upload manager
const multipartThreshold = 10 * 1024 * 1024

// S3Storage implements BlobStorage for AWS S3 and S3-compatible storage
type S3Storage struct {
	client   *s3.Client
	uploader *manager.Uploader
	config   *config.S3Config
	bucket   string

	// limiter bounds put requests across all workers so a burst of jobs
	// cannot saturate the storage endpoint
	limiter *rate.Limiter
}

// NewS3Storage creates a new S3 storage instance
func NewS3Storage(cfg *config.S3Config) (BlobStorage, error) {
	logger.Info("Initializing S3 storage",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("region", cfg.Region),
		zap.String("bucket", cfg.Bucket),
		zap.Bool("use_ssl", cfg.UseSSL))

	// Create AWS config
	awsConfig, err := createAWSConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	// Create S3 client
	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "https://s3.amazonaws.com" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for MinIO and custom endpoints
		}
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = multipartThreshold
		u.Concurrency = 3
	})

	perSecond := cfg.UploadsPerSecond
	if perSecond <= 0 {
		perSecond = 20
	}

	storage := &S3Storage{
		client:   client,
		uploader: uploader,
		config:   cfg,
		bucket:   cfg.Bucket,
		limiter:  rate.NewLimiter(rate.Limit(perSecond), perSecond),
	}

	// Test connection
	if err := storage.Health(context.Background()); err != nil {
		return nil, fmt.Errorf("S3 health check failed: %w", err)
	}

	logger.Info("S3 storage initialized successfully")
	return storage, nil
}

// Upload writes one blob to S3. Re-uploading an existing key overwrites it,
// so a redelivered job can safely rewrite every variant.
func (s *S3Storage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("upload rate limiter: %w", err)
	}

	logger.DebugWithContext(ctx, "Uploading blob to S3",
		zap.String("key", key),
		zap.Int64("size", size),
		zap.String("content_type", contentType))

	uploadInput := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        reader,
		ContentType: aws.String(contentType),
	}

	if size > 0 {
		uploadInput.ContentLength = aws.Int64(size)
	}

	// Variants are immutable once the submission is accepted
	if strings.HasPrefix(contentType, "image/") {
		uploadInput.CacheControl = aws.String("public, max-age=31536000, immutable")
	}

	// Use the upload manager for large blobs (handles multipart automatically)
	if size > multipartThreshold {
		_, err := s.uploader.Upload(ctx, uploadInput)
		if err != nil {
			logger.ErrorWithContext(ctx, "Failed to upload large blob to S3",
				zap.String("key", key),
				zap.Int64("size", size),
				zap.Error(err))
			return fmt.Errorf("failed to upload blob: %w", err)
		}
	} else {
		_, err := s.client.PutObject(ctx, uploadInput)
		if err != nil {
			logger.ErrorWithContext(ctx, "Failed to upload blob to S3",
				zap.String("key", key),
				zap.Int64("size", size),
				zap.Error(err))
			return fmt.Errorf("failed to upload blob: %w", err)
		}
	}

	logger.DebugWithContext(ctx, "Blob uploaded to S3 successfully",
		zap.String("key", key),
		zap.Int64("size", size))

	return nil
}

// Exists checks if a blob exists in S3
func (s *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check blob existence: %w", err)
	}

	return true, nil
}

// Delete removes a blob from S3
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to delete blob from S3",
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("failed to delete blob: %w", err)
	}

	return nil
}

// GetURL returns the public URL for a blob
func (s *S3Storage) GetURL(key string) string {
	if s.config.UseSSL {
		if s.config.Endpoint == "https://s3.amazonaws.com" {
			return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key)
		}
		return fmt.Sprintf("%s/%s/%s", s.config.Endpoint, s.bucket, key)
	}

	return fmt.Sprintf("http://%s/%s/%s",
		strings.TrimPrefix(s.config.Endpoint, "http://"), s.bucket, key)
}

// Health checks storage service health
func (s *S3Storage) Health(ctx context.Context) error {
	_, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return fmt.Errorf("S3 health check failed: %w", err)
	}

	return nil
}

// Helper functions

// createAWSConfig creates AWS configuration
func createAWSConfig(cfg *config.S3Config) (aws.Config, error) {
	// Static credentials provider
	credProvider := credentials.NewStaticCredentialsProvider(
		cfg.AccessKey,
		cfg.SecretKey,
		"", // session token not needed for static credentials
	)

	// Load config with credentials
	awsConfig, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(credProvider),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return aws.Config{}, err
	}

	return awsConfig, nil
}

// isNotFoundError checks if the error is a "not found" error
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}

	return strings.Contains(err.Error(), "404") ||
		strings.Contains(err.Error(), "NoSuchKey") ||
		strings.Contains(err.Error(), "Not Found")
}
