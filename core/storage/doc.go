// Package storage provides an abstraction layer for S3-compatible object storage.
//
// It wraps the MinIO Go client to expose the handful of object operations the S3
// key-value backend needs: stat, get, conditional put and remove. This abstraction
// supports both AWS S3 and self-hosted MinIO instances.
//
// # Client Interface
//
// The Client interface abstracts the underlying storage provider, making it easier
// to mock storage interactions for unit testing (as seen in core/storage/mocks).
//
// # Errors
//
// IsNotFound and IsPreconditionFailed classify S3 error responses so callers can tell a
// missing object or a lost compare-and-swap apart from a transport failure.
//
// # Usage
//
//	client, err := storage.NewClient(config)
//	info, err := client.StatObject(ctx, "kv", "app/config", minio.StatObjectOptions{})
package storage
