package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicObjectURL(t *testing.T) {
	assert.Equal(t,
		"https://recs.s3.eu-west-1.amazonaws.com/recordings/abc/live_x.mp4",
		PublicObjectURL("recs", "eu-west-1", "recordings/abc/live_x.mp4"))
}

func TestRecordingURLForPublicBucket(t *testing.T) {
	s := &S3{cfg: S3Config{Region: "us-east-1", RecordingsBucket: "recs", PublicRecordings: true}}
	url, err := s.RecordingURL(context.Background(), "recordings/a/b.mp4")
	require.NoError(t, err)
	assert.Equal(t, "https://recs.s3.us-east-1.amazonaws.com/recordings/a/b.mp4", url)
}

func TestPresignExpireDefault(t *testing.T) {
	assert.Equal(t, 15*time.Minute, (&S3{}).PresignExpire())
	assert.Equal(t, 5*time.Minute, (&S3{cfg: S3Config{PresignExpireMinutes: 5}}).PresignExpire())
}

func TestRecordingURLForCompatibleEndpoint(t *testing.T) {
	s := &S3{cfg: S3Config{Endpoint: "http://minio:9000/", RecordingsBucket: "recs", PublicRecordings: true}}
	url, err := s.RecordingURL(context.Background(), "recordings/a/b.mp4")
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000/recs/recordings/a/b.mp4", url)
}

func TestNewS3PresignsPrivateRecordings(t *testing.T) {
	s, err := NewS3(context.Background(), S3Config{
		Region:           "eu-west-1",
		AccessKeyID:      "AKIDEXAMPLE",
		SecretAccessKey:  "secret",
		RecordingsBucket: "recs",
	}, nil)
	require.NoError(t, err)

	url, err := s.RecordingURL(context.Background(), "recordings/a/b.mp4")
	require.NoError(t, err)
	assert.Contains(t, url, "recs")
	assert.Contains(t, url, "recordings/a/b.mp4")
	assert.Contains(t, url, "X-Amz-Signature=")
	assert.Contains(t, url, "X-Amz-Expires=900")
}
