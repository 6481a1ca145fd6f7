package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/content-platform/internal/config"
)

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "https://media.s3.eu-west-1.amazonaws.com/",
		BaseURL(config.S3Config{Bucket: "media", Region: "eu-west-1"}))
	assert.Equal(t, "https://media.s3.us-east-1.amazonaws.com/",
		BaseURL(config.S3Config{Bucket: "media"}))
	assert.Equal(t, "http://localhost:9000/media/",
		BaseURL(config.S3Config{Bucket: "media", Region: "us-east-1", Endpoint: "http://localhost:9000/"}))
	assert.Equal(t, "https://minio.internal/media/",
		BaseURL(config.S3Config{Bucket: "media", Region: "us-east-1", Endpoint: "minio.internal", UseSSL: true}))
}

func TestObjectKeyAndKeyFromURL(t *testing.T) {
	key := ObjectKey("tweets", "/tmp/upload-123.WEBP")
	assert.True(t, strings.HasPrefix(key, "tweets/"))
	assert.True(t, strings.HasSuffix(key, ".webp"))
	assert.NotEqual(t, key, ObjectKey("tweets", "/tmp/upload-123.WEBP"))

	base := "http://localhost:9000/media/"
	assert.Equal(t, key, KeyFromURL(base, base+key))
	assert.Equal(t, "", KeyFromURL(base, "https://elsewhere.example/x.webp"))
}

func TestDisabledUploader(t *testing.T) {
	var u Uploader = New(config.S3Config{})
	_, err := u.Upload(context.Background(), "/tmp/x.webp", "tweets", "image/webp")
	assert.ErrorIs(t, err, ErrDisabled)
	assert.NoError(t, u.Delete(context.Background(), "anything"))
}
