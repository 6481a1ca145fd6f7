// Package storage uploads avatars, cover images and tweet images to an S3
// compatible bucket.  Handlers only see the Uploader interface; when no
// bucket is configured a Disabled uploader rejects uploads.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/content-platform/internal/config"
)

// ErrDisabled is returned by Disabled.Upload.
var ErrDisabled = errors.New("object storage is not configured")

// Uploader stores local files and returns their public URL.
type Uploader interface {
	Upload(ctx context.Context, localPath, folder, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
}

// S3Uploader talks to AWS S3 or, when an endpoint is set, to MinIO with path
// style addressing.
type S3Uploader struct {
	client *s3.S3
	bucket string
	base   string
}

// NewS3Uploader opens a session from cfg and makes sure the bucket exists.
func NewS3Uploader(cfg config.S3Config) (*S3Uploader, error) {
	awsConfig := &aws.Config{
		Region:      aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	}
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
		awsConfig.DisableSSL = aws.Bool(!cfg.UseSSL)
	}
	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	u := &S3Uploader{client: s3.New(sess), bucket: cfg.Bucket, base: BaseURL(cfg)}

	if _, err := u.client.HeadBucket(&s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		if _, cerr := u.client.CreateBucket(&s3.CreateBucketInput{Bucket: aws.String(cfg.Bucket)}); cerr != nil {
			log.Warnf("[storage] bucket %s not reachable: %v", cfg.Bucket, cerr)
		}
	}
	return u, nil
}

// BaseURL is the URL prefix of every object in the bucket.
func BaseURL(cfg config.S3Config) string {
	if cfg.Endpoint != "" && !strings.Contains(cfg.Endpoint, "amazonaws.com") {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		host := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "http://"), "https://")
		return fmt.Sprintf("%s://%s/%s/", scheme, strings.TrimRight(host, "/"), cfg.Bucket)
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/", cfg.Bucket, region)
}

// ObjectKey builds a unique key under folder keeping the file extension.
func ObjectKey(folder, localPath string) string {
	return path.Join(folder, uuid.NewString()+strings.ToLower(filepath.Ext(localPath)))
}

// KeyFromURL returns the object key of url, or "" when url does not point
// into the bucket behind base.
func KeyFromURL(base, url string) string {
	key, ok := strings.CutPrefix(url, base)
	if !ok {
		return ""
	}
	return key
}

// Upload puts the file at localPath under folder.
func (u *S3Uploader) Upload(ctx context.Context, localPath, folder, contentType string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	key := ObjectKey(folder, localPath)
	_, err = u.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return u.base + key, nil
}

// Delete removes the object behind url.  URLs outside the bucket are
// ignored.
func (u *S3Uploader) Delete(ctx context.Context, url string) error {
	key := KeyFromURL(u.base, url)
	if key == "" {
		return nil
	}
	_, err := u.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// Disabled is the uploader used when no bucket is configured.
type Disabled struct{}

func (Disabled) Upload(context.Context, string, string, string) (string, error) {
	return "", ErrDisabled
}

func (Disabled) Delete(context.Context, string) error { return nil }

// New returns an S3Uploader when cfg is complete and Disabled otherwise.
func New(cfg config.S3Config) Uploader {
	if !cfg.Enabled() {
		log.Info("[storage] S3 not configured, uploads disabled")
		return Disabled{}
	}
	u, err := NewS3Uploader(cfg)
	if err != nil {
		log.Errorf("[storage] %v, uploads disabled", err)
		return Disabled{}
	}
	return u
}
