// Package uploads stores homework photos in S3 under random keys and
// serves them through a public base URL.
package uploads

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/somasaidi/somasaidi/internal/awsx"
)

// S3Storage writes objects to one bucket under a fixed key prefix.
type S3Storage struct {
	api     awsx.S3API
	bucket  string
	prefix  string
	baseURL string
}

func NewS3Storage(api awsx.S3API, bucket, prefix, baseURL string) *S3Storage {
	return &S3Storage{
		api:     api,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Put stores the image under a fresh UUID key and returns its public URL.
func (s *S3Storage) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	key := s.prefix + "/" + uuid.NewString() + extensionFor(contentType)
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return s.baseURL + "/" + key, nil
}

// Delete removes an object by its public URL. Unknown URLs are ignored.
func (s *S3Storage) Delete(ctx context.Context, url string) error {
	key := strings.TrimPrefix(url, s.baseURL+"/")
	if key == url || key == "" {
		return nil
	}
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
