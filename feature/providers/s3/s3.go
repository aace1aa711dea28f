// Package s3 implements a key-value backend on S3-compatible object storage.
//
// Each key is one object. Concurrency tokens are object ETags: updates send
// If-Match, creates send If-None-Match: *. S3 has no conditional delete, so Remove
// compares the current ETag immediately before deleting.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"kv-reconciler/core/reconcile"
	"kv-reconciler/core/registry"
	"kv-reconciler/core/storage"

	"github.com/minio/minio-go/v7"
)

const (
	// Name is the provider identifier.
	Name = "s3"
	// DefaultPort is the MinIO API port.
	DefaultPort = 9000

	// readAttempts bounds stat/get rounds when the object changes mid-read.
	readAttempts = 3
)

// Backend stores keys as objects in a bucket.
type Backend struct {
	client storage.Client
	bucket string
	prefix string
}

// New creates a backend over an existing storage client.
func New(client storage.Client, bucket, prefix string) (*Backend, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("storage bucket is not configured")
	}
	return &Backend{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

// Provider returns the registry entry for S3. A target host, with its port,
// replaces the configured endpoint; without one STORAGE_ENDPOINT applies.
func Provider(cfg storage.Config) registry.Provider {
	return registry.Provider{
		Name:         Name,
		DefaultPort:  DefaultPort,
		Description:  "S3-compatible object storage (ETag conditional writes)",
		OwnsEndpoint: true,
		Factory: func(target registry.Target) (reconcile.Backend, error) {
			c := cfg
			if target.Host != "" {
				c.Endpoint = target.Address()
			}
			client, err := storage.NewClient(c)
			if err != nil {
				return nil, err
			}
			return New(client, c.Bucket, c.Prefix)
		},
	}
}

func (b *Backend) objectName(key string) string {
	key = strings.TrimPrefix(key, "/")
	if b.prefix == "" {
		return key
	}
	return b.prefix + "/" + key
}

// Read returns the object body and ETag. The body is fetched pinned to the
// stat ETag; a change in between restarts the read.
func (b *Backend) Read(ctx context.Context, key string) (reconcile.ObservedState, error) {
	name := b.objectName(key)

	for i := 0; i < readAttempts; i++ {
		info, err := b.client.StatObject(ctx, b.bucket, name, minio.StatObjectOptions{})
		if err != nil {
			if storage.IsNotFound(err) {
				return reconcile.Missing(), nil
			}
			return reconcile.ObservedState{}, reconcile.Unavailable("s3 stat", err)
		}

		// Pin the body to the ETag we just saw so value and token agree.
		opts := minio.GetObjectOptions{}
		if err := opts.SetMatchETag(info.ETag); err != nil {
			return reconcile.ObservedState{}, fmt.Errorf("invalid etag %q: %w", info.ETag, err)
		}

		value, err := b.readBody(ctx, name, opts)
		if err != nil {
			if storage.IsPreconditionFailed(err) || storage.IsNotFound(err) {
				continue
			}
			return reconcile.ObservedState{}, reconcile.Unavailable("s3 get", err)
		}
		return reconcile.Found(value, reconcile.Token(info.ETag)), nil
	}

	return reconcile.ObservedState{}, reconcile.Unavailable("s3 get",
		fmt.Errorf("object %s changed during each of %d reads", name, readAttempts))
}

func (b *Backend) readBody(ctx context.Context, name string, opts minio.GetObjectOptions) (string, error) {
	rc, err := b.client.GetObject(ctx, b.bucket, name, opts)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Write uploads value with If-Match on expected, or If-None-Match: * to create.
func (b *Backend) Write(ctx context.Context, key, value string, expected reconcile.Token) (bool, error) {
	opts := minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"}
	if expected == reconcile.CreateOnly {
		opts.SetMatchETagExcept("*")
	} else {
		opts.SetMatchETag(string(expected))
	}

	body := []byte(value)
	_, err := b.client.PutObject(ctx, b.bucket, b.objectName(key), bytes.NewReader(body), int64(len(body)), opts)
	if err != nil {
		if storage.IsPreconditionFailed(err) {
			return false, nil
		}
		return false, reconcile.Unavailable("s3 put", err)
	}
	return true, nil
}

// Remove deletes the object after confirming its ETag still equals expected.
func (b *Backend) Remove(ctx context.Context, key string, expected reconcile.Token) (bool, error) {
	if expected == reconcile.CreateOnly {
		return false, nil
	}
	name := b.objectName(key)

	info, err := b.client.StatObject(ctx, b.bucket, name, minio.StatObjectOptions{})
	if err != nil {
		if storage.IsNotFound(err) {
			return false, nil
		}
		return false, reconcile.Unavailable("s3 stat", err)
	}
	if reconcile.Token(info.ETag) != expected {
		return false, nil
	}

	if err := b.client.RemoveObject(ctx, b.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return false, reconcile.Unavailable("s3 remove", err)
	}
	return true, nil
}
