package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// minioAPI is the part of *minio.Client used by MinioStore.
type minioAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// MinioOptions configures a MinioStore.
type MinioOptions struct {
	// Endpoint is host:port, or a URL whose scheme decides TLS.
	Endpoint        string
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// MinioStore keeps objects in a MinIO (or other S3-compatible) bucket.
type MinioStore struct {
	bucket string
	client minioAPI
}

// NewMinioStore creates a MinIO client for opts.
func NewMinioStore(opts MinioOptions) (*MinioStore, error) {
	if opts.Endpoint == "" {
		return nil, errors.New("minio endpoint is required")
	}

	endpoint, secure := opts.Endpoint, opts.UseSSL
	if strings.Contains(endpoint, "://") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse minio endpoint: %w", err)
		}
		endpoint, secure = u.Host, u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return newMinioStoreWithClient(opts.Bucket, client), nil
}

func newMinioStoreWithClient(bucket string, client minioAPI) *MinioStore {
	return &MinioStore{bucket: bucket, client: client}
}

func (s *MinioStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = defaultContentType
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("minio put %s: %w", key, err)
	}
	return nil
}

// Get stats the object first since GetObject only fails on the first read.
func (s *MinioStore) Get(ctx context.Context, key string) (*Object, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isMinioNotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("minio stat %s: %w", key, err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio get %s: %w", key, err)
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}
	return &Object{Body: obj, ContentType: contentType, Size: info.Size}, nil
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio delete %s: %w", key, err)
	}
	return nil
}

func isMinioNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}
