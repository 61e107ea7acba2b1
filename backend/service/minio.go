package service

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/AnTengye/cvintake/backend/config"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// cvPrefix is the object prefix for uploaded CVs
const cvPrefix = "cvs/"

// BlobStore keeps uploaded CV files and hands out links to them
type BlobStore interface {
	StoreCV(ctx context.Context, fileName, contentType string, r io.Reader, size int64) (string, error)
}

type MinioService struct {
	client *minio.Client
	bucket string
	config *config.MinioConfig
}

// BlobRemover deletes a stored CV given the URL StoreCV returned
type BlobRemover interface {
	RemoveCV(ctx context.Context, cvURL string) error
}

var (
	_ BlobStore   = (*MinioService)(nil)
	_ BlobRemover = (*MinioService)(nil)
)

func NewMinioService(cfg *config.MinioConfig) (*MinioService, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioService{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *MinioService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.config.Region})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// StoreCV uploads a CV under a random object name and returns its URL.
// The original extension is kept so conversion services can sniff the type.
func (s *MinioService) StoreCV(ctx context.Context, fileName, contentType string, r io.Reader, size int64) (string, error) {
	objectName := CVObjectName(fileName)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := s.UploadFile(ctx, objectName, r, size, contentType); err != nil {
		return "", err
	}
	return s.DocumentURL(ctx, objectName)
}

// CVObjectName builds the object key for an uploaded CV
func CVObjectName(fileName string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(fileName, "\\", "/"))))
	return cvPrefix + uuid.New().String() + ext
}

// UploadFile uploads a file to MINIO under objectName
func (s *MinioService) UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}

	return nil
}

// DocumentURL returns the public URL when the bucket is public, otherwise a presigned one
func (s *MinioService) DocumentURL(ctx context.Context, objectName string) (string, error) {
	if s.config.Public {
		return s.GetPublicURL(objectName), nil
	}
	return s.GetPresignedURL(ctx, objectName)
}

// GetPresignedURL generates a presigned URL for the object with expiration
func (s *MinioService) GetPresignedURL(ctx context.Context, objectName string) (string, error) {
	expiry := time.Duration(s.config.ExpireDays) * 24 * time.Hour
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return presigned.String(), nil
}

// RemoveCV deletes the object behind a URL handed out by StoreCV.
// URLs that do not point at this bucket's CV prefix are rejected.
func (s *MinioService) RemoveCV(ctx context.Context, cvURL string) error {
	objectName, ok := s.cvObjectFromURL(cvURL)
	if !ok {
		return fmt.Errorf("not a stored cv url: %q", cvURL)
	}
	return s.DeleteFile(ctx, objectName)
}

// cvObjectFromURL recovers the object key from a public or presigned URL.
// Both have the path /<bucket>/<object>.
func (s *MinioService) cvObjectFromURL(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	objectName, ok := strings.CutPrefix(u.Path, "/"+s.bucket+"/")
	if !ok || !strings.HasPrefix(objectName, cvPrefix) || strings.Contains(objectName, "..") {
		return "", false
	}
	return objectName, true
}

// DeleteFile deletes a file from MINIO
func (s *MinioService) DeleteFile(ctx context.Context, objectName string) error {
	err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// GetPublicURL returns a public URL for the object (if bucket policy allows)
func (s *MinioService) GetPublicURL(objectName string) string {
	protocol := "http"
	if s.config.UseSSL {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", protocol, s.config.Endpoint, s.bucket, objectName)
}
