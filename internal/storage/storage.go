// Package storage stores post images in an object store keyed by random UUIDs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"inkwell/internal/config"
	"inkwell/internal/middleware"
	"inkwell/internal/observability"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrObjectNotFound is returned by Get when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

const defaultContentType = "application/octet-stream"

// Object is a readable stored object. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	// Size is -1 when unknown
	Size int64
}

// ObjectStore uploads, streams and deletes binary payloads.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
}

// NewKey returns a fresh object key.
func NewKey() string {
	return uuid.NewString()
}

// New builds the object store selected by cfg.StorageDriver.
func New(ctx context.Context, cfg *config.Config) (ObjectStore, error) {
	var (
		store ObjectStore
		err   error
	)

	driver := cfg.StorageDriver
	switch driver {
	case "", config.StorageS3:
		driver = config.StorageS3
		store, err = NewS3Store(ctx, S3Options{
			Bucket:          cfg.BucketName,
			Region:          cfg.Region,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretKey,
			Endpoint:        cfg.StorageURL,
		})
	case config.StorageMinio:
		store, err = NewMinioStore(MinioOptions{
			Endpoint:        cfg.StorageURL,
			Bucket:          cfg.BucketName,
			Region:          cfg.Region,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretKey,
			UseSSL:          cfg.StorageUseSSL,
		})
	case config.StorageMemory:
		store = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
	if err != nil {
		return nil, err
	}

	return Instrument(driver, store), nil
}

// instrumented traces calls to the wrapped store and counts its failures.
type instrumented struct {
	driver string
	next   ObjectStore
}

// Instrument wraps store so failures show up in the storage error metric.
// A missing object is not counted as a failure.
func Instrument(driver string, store ObjectStore) ObjectStore {
	return &instrumented{driver: driver, next: store}
}

func (s *instrumented) start(ctx context.Context, op, key string) (context.Context, trace.Span) {
	return observability.Tracer.Start(ctx, "storage."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("storage.driver", s.driver),
			attribute.String("storage.key", key),
		),
	)
}

func (s *instrumented) observe(span trace.Span, op string, err error) {
	defer span.End()
	if err == nil || errors.Is(err, ErrObjectNotFound) {
		return
	}
	middleware.StorageErrors.WithLabelValues(s.driver, op).Inc()
	observability.RecordError(span, err)
}

func (s *instrumented) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	ctx, span := s.start(ctx, "put", key)
	span.SetAttributes(attribute.Int64("storage.size", size), attribute.String("storage.content_type", contentType))
	err := s.next.Put(ctx, key, body, size, contentType)
	s.observe(span, "put", err)
	return err
}

func (s *instrumented) Get(ctx context.Context, key string) (*Object, error) {
	ctx, span := s.start(ctx, "get", key)
	obj, err := s.next.Get(ctx, key)
	if errors.Is(err, ErrObjectNotFound) {
		span.SetAttributes(attribute.Bool("storage.not_found", true))
	}
	s.observe(span, "get", err)
	return obj, err
}

func (s *instrumented) Delete(ctx context.Context, key string) error {
	ctx, span := s.start(ctx, "delete", key)
	err := s.next.Delete(ctx, key)
	s.observe(span, "delete", err)
	return err
}
