// Package mediastores3 implements the media store on S3. Object keys are
// folder-scoped uuids; the public URL embeds bucket and region unless a CDN
// base URL is configured.
package mediastores3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Pikiko14/motowork-products/pkg/mediastore"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// Config configures the S3 media store.
type Config struct {
	Bucket string
	Region string
	// PublicBaseURL, when set, replaces the default virtual-hosted S3 URL
	// prefix (assets served through a CDN).
	PublicBaseURL string
}

// S3Store implements mediastore.MediaStore backed by an S3 bucket.
type S3Store struct {
	client *s3.Client
	cfg    Config
}

// New creates an S3-backed media store.
func New(client *s3.Client, cfg Config) *S3Store {
	return &S3Store{client: client, cfg: cfg}
}

func (s *S3Store) baseURL() string {
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimSuffix(s.cfg.PublicBaseURL, "/")
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", s.cfg.Bucket, s.cfg.Region)
}

// Upload stores the bytes under a fresh folder-scoped key and returns the
// public URL.
func (s *S3Store) Upload(ctx context.Context, data []byte, folder string) (*mediastore.UploadResult, error) {
	if len(data) == 0 {
		return nil, mediastore.NewEmptyFileError()
	}

	contentType := http.DetectContentType(data)
	key := fmt.Sprintf("%s/%s%s", strings.Trim(folder, "/"), uuid.New().String(), extensionFor(contentType))

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, mediastore.NewUploadError(err).WithDetail("folder", folder)
	}

	return &mediastore.UploadResult{
		SecureURL: fmt.Sprintf("%s/%s", s.baseURL(), key),
	}, nil
}

// DeleteByURL removes the object the URL points at. URLs outside this
// store's namespace and objects that are already gone count as success
// with found=false.
func (s *S3Store) DeleteByURL(ctx context.Context, rawURL string) (bool, error) {
	key, ok := s.ExtractKey(rawURL)
	if !ok {
		return false, nil
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, mediastore.NewDeleteError(err).WithDetail("url", rawURL)
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return false, mediastore.NewDeleteError(err).WithDetail("url", rawURL)
	}
	return true, nil
}

// ExtractKey resolves a public URL back to the object key, reporting
// whether the URL belongs to this store.
func (s *S3Store) ExtractKey(rawURL string) (string, bool) {
	base := s.baseURL() + "/"
	if !strings.HasPrefix(rawURL, base) {
		return "", false
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}

	key := strings.TrimPrefix(parsed.Path, "/")
	if key == "" {
		return "", false
	}
	return key, true
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &noSuchKey)
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ""
	}
}
