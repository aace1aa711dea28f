package s3_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"kv-reconciler/core/reconcile"
	"kv-reconciler/core/registry"
	"kv-reconciler/core/storage"
	"kv-reconciler/core/storage/mocks"
	"kv-reconciler/feature/providers/s3"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	errNoSuchKey    = minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}
	errPrecondition = minio.ErrorResponse{Code: "PreconditionFailed", StatusCode: http.StatusPreconditionFailed}
)

func body(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

func header(name, want string) interface{} {
	return mock.MatchedBy(func(opts minio.PutObjectOptions) bool {
		return opts.Header().Get(name) == want
	})
}

func newBackend(t *testing.T, client storage.Client) *s3.Backend {
	t.Helper()
	b, err := s3.New(client, "kv", "/env/prod/")
	require.NoError(t, err)
	return b
}

func TestBackend_Read(t *testing.T) {
	ctx := context.Background()

	t.Run("Missing", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("StatObject", mock.Anything, "kv", "env/prod/app/x", mock.Anything).
			Return(minio.ObjectInfo{}, errNoSuchKey)

		obs, err := newBackend(t, client).Read(ctx, "/app/x")
		require.NoError(t, err)
		assert.False(t, obs.Exists)
		client.AssertNotCalled(t, "GetObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Found", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("StatObject", mock.Anything, "kv", "env/prod/app/x", mock.Anything).
			Return(minio.ObjectInfo{ETag: "e1"}, nil)
		client.On("GetObject", mock.Anything, "kv", "env/prod/app/x", mock.Anything).
			Return(body("hello"), nil)

		obs, err := newBackend(t, client).Read(ctx, "app/x")
		require.NoError(t, err)
		assert.Equal(t, reconcile.Found("hello", "e1"), obs)
	})

	t.Run("ChangedMidRead", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("StatObject", mock.Anything, "kv", "env/prod/k", mock.Anything).
			Return(minio.ObjectInfo{ETag: "e1"}, nil).Once()
		client.On("StatObject", mock.Anything, "kv", "env/prod/k", mock.Anything).
			Return(minio.ObjectInfo{ETag: "e2"}, nil).Once()
		client.On("GetObject", mock.Anything, "kv", "env/prod/k", mock.Anything).
			Return(nil, errPrecondition).Once()
		client.On("GetObject", mock.Anything, "kv", "env/prod/k", mock.Anything).
			Return(body("newer"), nil).Once()

		obs, err := newBackend(t, client).Read(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, reconcile.Found("newer", "e2"), obs)
	})

	t.Run("Unavailable", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("StatObject", mock.Anything, "kv", "env/prod/k", mock.Anything).
			Return(minio.ObjectInfo{}, errors.New("dial tcp 127.0.0.1:9000: connection refused"))

		_, err := newBackend(t, client).Read(ctx, "k")
		assert.Equal(t, reconcile.BackendUnavailable, reconcile.KindOf(err))
	})
}

func TestBackend_Write(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateOnlySendsIfNoneMatch", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("PutObject", mock.Anything, "kv", "env/prod/k", mock.Anything, int64(1), header("If-None-Match", "*")).
			Return(minio.UploadInfo{ETag: "e1"}, nil)

		ok, err := newBackend(t, client).Write(ctx, "k", "v", reconcile.CreateOnly)
		require.NoError(t, err)
		assert.True(t, ok)
		client.AssertExpectations(t)
	})

	t.Run("UpdateSendsIfMatch", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("PutObject", mock.Anything, "kv", "env/prod/k", mock.Anything, int64(2), header("If-Match", `"e1"`)).
			Return(minio.UploadInfo{ETag: "e2"}, nil)

		ok, err := newBackend(t, client).Write(ctx, "k", "v2", "e1")
		require.NoError(t, err)
		assert.True(t, ok)
		client.AssertExpectations(t)
	})

	t.Run("PreconditionFailedIsMismatch", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("PutObject", mock.Anything, "kv", "env/prod/k", mock.Anything, mock.Anything, mock.Anything).
			Return(minio.UploadInfo{}, errPrecondition)

		ok, err := newBackend(t, client).Write(ctx, "k", "v", "stale")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("TransportError", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("PutObject", mock.Anything, "kv", "env/prod/k", mock.Anything, mock.Anything, mock.Anything).
			Return(minio.UploadInfo{}, errors.New("i/o timeout"))

		_, err := newBackend(t, client).Write(ctx, "k", "v", "e1")
		assert.True(t, errors.Is(err, reconcile.ErrBackendUnavailable))
	})
}

func TestBackend_Remove(t *testing.T) {
	ctx := context.Background()

	t.Run("TokenMatches", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("StatObject", mock.Anything, "kv", "env/prod/k", mock.Anything).
			Return(minio.ObjectInfo{ETag: "e1"}, nil)
		client.On("RemoveObject", mock.Anything, "kv", "env/prod/k", mock.Anything).Return(nil)

		ok, err := newBackend(t, client).Remove(ctx, "k", "e1")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("TokenChanged", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("StatObject", mock.Anything, "kv", "env/prod/k", mock.Anything).
			Return(minio.ObjectInfo{ETag: "e2"}, nil)

		ok, err := newBackend(t, client).Remove(ctx, "k", "e1")
		require.NoError(t, err)
		assert.False(t, ok)
		client.AssertNotCalled(t, "RemoveObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("AlreadyGone", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("StatObject", mock.Anything, "kv", "env/prod/k", mock.Anything).
			Return(minio.ObjectInfo{}, errNoSuchKey)

		ok, err := newBackend(t, client).Remove(ctx, "k", "e1")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestBackend_ReconcileSkipsIdenticalValue(t *testing.T) {
	client := new(mocks.Client)
	client.On("StatObject", mock.Anything, "kv", "env/prod/k", mock.Anything).
		Return(minio.ObjectInfo{ETag: "e1"}, nil)
	client.On("GetObject", mock.Anything, "kv", "env/prod/k", mock.Anything).
		Return(body("same"), nil)

	out, err := reconcile.Reconcile(context.Background(), newBackend(t, client),
		reconcile.DesiredState{Key: "k", Presence: reconcile.Present, Value: "same"})
	require.NoError(t, err)
	assert.False(t, out.Changed)
	client.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProvider(t *testing.T) {
	t.Run("MissingBucket", func(t *testing.T) {
		p := s3.Provider(storage.Config{Endpoint: "localhost:9000"})
		_, err := p.Factory(registry.Target{Host: "127.0.0.1", Port: 9000})
		assert.Error(t, err)
	})

	t.Run("Configured", func(t *testing.T) {
		p := s3.Provider(storage.Config{Endpoint: "localhost:9000", Bucket: "kv", AccessKey: "a", SecretKey: "b"})
		assert.Equal(t, s3.DefaultPort, p.DefaultPort)
		backend, err := p.Factory(registry.Target{Host: "127.0.0.1", Port: 9000})
		require.NoError(t, err)
		assert.NotNil(t, backend)
	})
}
