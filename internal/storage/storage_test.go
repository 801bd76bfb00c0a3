package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"inkwell/internal/config"
	"inkwell/internal/middleware"
	"inkwell/internal/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type mockS3 struct {
	mock.Mock
}

func (m *mockS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, in)
	return &s3.PutObjectOutput{}, args.Error(0)
}

func (m *mockS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, in)
	if out := args.Get(0); out != nil {
		return out.(*s3.GetObjectOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, in)
	return &s3.DeleteObjectOutput{}, args.Error(0)
}

func TestS3Store_Put(t *testing.T) {
	api := new(mockS3)
	store := newS3StoreWithClient("images", api)

	api.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Bucket) == "images" &&
			aws.ToString(in.Key) == "k1" &&
			aws.ToString(in.ContentType) == "image/png" &&
			aws.ToInt64(in.ContentLength) == 3
	})).Return(nil).Once()

	require.NoError(t, store.Put(context.Background(), "k1", strings.NewReader("png"), 3, "image/png"))
	api.AssertExpectations(t)
}

func TestS3Store_Get(t *testing.T) {
	api := new(mockS3)
	store := newS3StoreWithClient("images", api)
	ctx := context.Background()

	api.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Key) == "present"
	})).Return(&s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader("data")),
		ContentType:   aws.String("image/jpeg"),
		ContentLength: aws.Int64(4),
	}, nil)
	api.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Key) == "missing"
	})).Return(nil, &types.NoSuchKey{})
	api.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Key) == "generic-missing"
	})).Return(nil, &smithy.GenericAPIError{Code: "NotFound"})
	api.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Key) == "broken"
	})).Return(nil, errors.New("connection reset"))

	obj, err := store.Get(ctx, "present")
	require.NoError(t, err)
	defer obj.Body.Close()
	body, _ := io.ReadAll(obj.Body)
	assert.Equal(t, "data", string(body))
	assert.Equal(t, "image/jpeg", obj.ContentType)
	assert.Equal(t, int64(4), obj.Size)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, err = store.Get(ctx, "generic-missing")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, err = store.Get(ctx, "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrObjectNotFound)
}

func TestS3Store_Delete(t *testing.T) {
	api := new(mockS3)
	store := newS3StoreWithClient("images", api)

	api.On("DeleteObject", mock.Anything, mock.Anything).Return(errors.New("denied")).Once()
	err := store.Delete(context.Background(), "k")
	assert.ErrorContains(t, err, "denied")
}

type mockMinio struct {
	mock.Mock
}

func (m *mockMinio) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(bucket, key, size, opts.ContentType)
	return minio.UploadInfo{Key: key, Size: size}, args.Error(0)
}

func (m *mockMinio) StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	args := m.Called(bucket, key)
	return args.Get(0).(minio.ObjectInfo), args.Error(1)
}

func (m *mockMinio) GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (*minio.Object, error) {
	args := m.Called(bucket, key)
	return nil, args.Error(0)
}

func (m *mockMinio) RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error {
	args := m.Called(bucket, key)
	return args.Error(0)
}

func TestMinioStore(t *testing.T) {
	api := new(mockMinio)
	store := newMinioStoreWithClient("images", api)
	ctx := context.Background()

	api.On("PutObject", "images", "k1", int64(5), defaultContentType).Return(nil).Once()
	require.NoError(t, store.Put(ctx, "k1", strings.NewReader("hello"), 5, ""))

	api.On("StatObject", "images", "gone").Return(minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey"}).Once()
	_, err := store.Get(ctx, "gone")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	api.On("StatObject", "images", "bad").Return(minio.ObjectInfo{}, errors.New("timeout")).Once()
	_, err = store.Get(ctx, "bad")
	assert.ErrorContains(t, err, "timeout")

	api.On("RemoveObject", "images", "k1").Return(nil).Once()
	require.NoError(t, store.Delete(ctx, "k1"))

	api.AssertExpectations(t)
}

func TestNewMinioStore_RequiresEndpoint(t *testing.T) {
	_, err := NewMinioStore(MinioOptions{Bucket: "b"})
	assert.Error(t, err)

	store, err := NewMinioStore(MinioOptions{Endpoint: "http://localhost:9000", Bucket: "b"})
	require.NoError(t, err)
	assert.NotNil(t, store)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "a", strings.NewReader("abc"), 3, "image/gif"))
	assert.True(t, store.Has("a"))

	obj, err := store.Get(ctx, "a")
	require.NoError(t, err)
	data, _ := io.ReadAll(obj.Body)
	assert.Equal(t, "abc", string(data))
	assert.Equal(t, "image/gif", obj.ContentType)
	assert.Equal(t, int64(3), obj.Size)

	require.NoError(t, store.Delete(ctx, "a"))
	require.NoError(t, store.Delete(ctx, "a"))
	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.Equal(t, 0, store.Len())
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	store, err := New(ctx, &config.Config{StorageDriver: config.StorageMemory})
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "x", strings.NewReader("1"), 1, ""))

	_, err = New(ctx, &config.Config{StorageDriver: "ftp"})
	assert.Error(t, err)

	_, err = New(ctx, &config.Config{StorageDriver: config.StorageMinio})
	assert.Error(t, err)

	s3Store, err := New(ctx, &config.Config{
		StorageDriver: config.StorageS3,
		BucketName:    "b",
		Region:        "us-east-1",
		AccessKeyID:   "key",
		SecretKey:     "secret",
		StorageURL:    "http://localhost:9000",
	})
	require.NoError(t, err)
	assert.NotNil(t, s3Store)
}

type failingStore struct {
	err error
}

func (f failingStore) Put(context.Context, string, io.Reader, int64, string) error { return f.err }
func (f failingStore) Get(context.Context, string) (*Object, error)                { return nil, f.err }
func (f failingStore) Delete(context.Context, string) error                        { return f.err }

func TestInstrument(t *testing.T) {
	ctx := context.Background()
	counter := middleware.StorageErrors.WithLabelValues("test", "get")

	before := testutil.ToFloat64(counter)
	_, _ = Instrument("test", failingStore{err: ErrObjectNotFound}).Get(ctx, "k")
	assert.Equal(t, before, testutil.ToFloat64(counter))

	_, _ = Instrument("test", failingStore{err: errors.New("down")}).Get(ctx, "k")
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := observability.Tracer
	observability.Tracer = tp.Tracer("test")
	t.Cleanup(func() {
		observability.Tracer = prev
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestInstrument_Spans(t *testing.T) {
	sr := recordSpans(t)
	ctx := context.Background()

	store := Instrument("memory", NewMemoryStore())
	require.NoError(t, store.Put(ctx, "k", strings.NewReader("abc"), 3, "image/png"))
	obj, err := store.Get(ctx, "k")
	require.NoError(t, err)
	_ = obj.Body.Close()
	require.NoError(t, store.Delete(ctx, "k"))
	_, err = store.Get(ctx, "k")
	require.ErrorIs(t, err, ErrObjectNotFound)

	_, _ = Instrument("memory", failingStore{err: errors.New("down")}).Get(ctx, "k")

	spans := sr.Ended()
	require.Len(t, spans, 5)
	names := make([]string, 0, len(spans))
	for _, span := range spans {
		names = append(names, span.Name())
		driver, ok := spanAttr(span, "storage.driver")
		require.True(t, ok)
		assert.Equal(t, "memory", driver.AsString())
	}
	assert.Equal(t, []string{"storage.put", "storage.get", "storage.delete", "storage.get", "storage.get"}, names)

	size, ok := spanAttr(spans[0], "storage.size")
	require.True(t, ok)
	assert.Equal(t, int64(3), size.AsInt64())

	// a missing object is not an error
	assert.Equal(t, codes.Unset, spans[3].Status().Code)
	notFound, ok := spanAttr(spans[3], "storage.not_found")
	require.True(t, ok)
	assert.True(t, notFound.AsBool())

	assert.Equal(t, codes.Error, spans[4].Status().Code)
	assert.Equal(t, "down", spans[4].Status().Description)
}

func TestNewKey(t *testing.T) {
	a, b := NewKey(), NewKey()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}
