// Package storage wraps the S3 bucket session recordings land in.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

const defaultPresignExpire = 15 * time.Minute

// S3Config holds S3 client configuration. Endpoint is set for S3-compatible stores
// (MinIO, localstack) and switches the client to path-style addressing.
type S3Config struct {
	Region               string
	Endpoint             string
	AccessKeyID          string
	SecretAccessKey      string
	RecordingsBucket     string
	PublicRecordings     bool
	PresignExpireMinutes int
}

// S3 answers recording lookups for the worker.
type S3 struct {
	client  *s3.Client
	presign *s3.PresignClient
	cfg     S3Config
}

// NewS3 builds the client. Without static keys the SDK default credential chain applies.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Info("s3 ready",
		zap.String("region", cfg.Region),
		zap.String("bucket", cfg.RecordingsBucket),
		zap.String("endpoint", cfg.Endpoint),
		zap.Bool("public", cfg.PublicRecordings),
	)
	return &S3{client: client, presign: s3.NewPresignClient(client), cfg: cfg}, nil
}

// PresignExpire is how long a signed recording URL stays valid.
func (s *S3) PresignExpire() time.Duration {
	if s.cfg.PresignExpireMinutes <= 0 {
		return defaultPresignExpire
	}
	return time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
}

// RecordingExists reports whether key is present in the recordings bucket.
func (s *S3) RecordingExists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.RecordingsBucket),
		Key:    aws.String(key),
	})
	var notFound *types.NotFound
	switch {
	case errors.As(err, &notFound):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("head %s: %w", key, err)
	}
	return true, nil
}

// RecordingURL is the object URL for a public bucket, otherwise a pre-signed GET.
func (s *S3) RecordingURL(ctx context.Context, key string) (string, error) {
	if s.cfg.PublicRecordings {
		return s.objectURL(key), nil
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.RecordingsBucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.PresignExpire()))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

func (s *S3) objectURL(key string) string {
	if s.cfg.Endpoint == "" {
		return PublicObjectURL(s.cfg.RecordingsBucket, s.cfg.Region, key)
	}
	base := strings.TrimSuffix(s.cfg.Endpoint, "/")
	u, err := url.JoinPath(base, s.cfg.RecordingsBucket, key)
	if err != nil {
		return base + "/" + s.cfg.RecordingsBucket + "/" + key
	}
	return u
}

// PublicObjectURL is the virtual-hosted AWS URL of an object.
func PublicObjectURL(bucket, region, key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
}
