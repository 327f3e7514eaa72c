// Package storage holds design-file artifacts. The production
// implementation writes to S3; handlers depend on the FileStorage
// interface so tests can substitute a recorder.
package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/cbgift/api/internal/config"
)

// FileStorage stores uploaded design files and returns a URL the rest of
// the system can reference.
type FileStorage interface {
	Upload(ctx context.Context, filename string, body io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
}

// S3Storage stores design files in an S3 bucket.
type S3Storage struct {
	client *s3.Client
	bucket string
}

// NewS3Storage builds an S3-backed FileStorage from application config.
func NewS3Storage(ctx context.Context, cfg *appconfig.Config) (*S3Storage, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AWSAccessKeyID,
			cfg.AWSSecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return &S3Storage{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.AWSS3Bucket,
	}, nil
}

// Upload writes the file under designs/{timestamp}_{basename} and returns
// a presigned URL valid for 24 hours.
func (s *S3Storage) Upload(ctx context.Context, filename string, body io.Reader) (string, error) {
	key := fmt.Sprintf("designs/%d_%s", time.Now().Unix(), filepath.Base(filename))

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return "", fmt.Errorf("upload to S3: %w", err)
	}

	presign := s3.NewPresignClient(s.client)
	req, err := presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = 24 * time.Hour
	})
	if err != nil {
		return "", fmt.Errorf("presign URL: %w", err)
	}

	return req.URL, nil
}

// Delete removes a stored file. Empty keys are a no-op.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete from S3: %w", err)
	}
	return nil
}
