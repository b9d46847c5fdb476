// Package archive mirrors uploaded files to an S3-compatible bucket.
package archive

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/fruitsalade/docbrowser/internal/logging"
	"github.com/fruitsalade/docbrowser/internal/metrics"
	"github.com/fruitsalade/docbrowser/pkg/models"
)

// Config describes the target bucket.
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// S3Archive implements upload.Archiver using S3/MinIO.
type S3Archive struct {
	client *s3.Client
	bucket string
}

// New creates an archive client and makes sure the bucket exists. A bucket
// that cannot be created is logged, not fatal: uploads still succeed locally.
func New(ctx context.Context, cfg Config) (*S3Archive, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := endpointURL(cfg.Endpoint, cfg.UseSSL)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	a := &S3Archive{
		client: client,
		bucket: cfg.Bucket,
	}

	if err := a.ensureBucket(ctx); err != nil {
		logging.Error("archive bucket check failed", zap.Error(err))
	}

	return a, nil
}

// endpointURL adds a scheme to a bare host:port endpoint.
func endpointURL(endpoint string, useSSL bool) string {
	if endpoint == "" || strings.Contains(endpoint, "://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

func (a *S3Archive) ensureBucket(ctx context.Context) error {
	start := time.Now()
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err == nil {
		metrics.RecordArchiveOperation("head_bucket", time.Since(start), true)
		return nil
	}

	_, createErr := a.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if createErr != nil {
		metrics.RecordArchiveOperation("create_bucket", time.Since(start), false)
		return fmt.Errorf("bucket %s does not exist and cannot create: %w", a.bucket, createErr)
	}
	metrics.RecordArchiveOperation("create_bucket", time.Since(start), true)
	logging.Info("created archive bucket", zap.String("bucket", a.bucket))
	return nil
}

// Put uploads the file at path under key.
func (a *S3Archive) Put(ctx context.Context, key, path string) error {
	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", key, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", key, err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(models.ContentTypeFor(key)),
	})
	if err != nil {
		metrics.RecordArchiveOperation("put_object", time.Since(start), false)
		return fmt.Errorf("put object %s: %w", key, err)
	}

	metrics.RecordArchiveOperation("put_object", time.Since(start), true)
	logging.Debug("archive put object", zap.String("key", key), zap.Int64("size", info.Size()))
	return nil
}
