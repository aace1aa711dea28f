// Package cloudfront implements a backend on a CloudFront KeyValueStore.
//
// CloudFront versions the whole store with a single ETag, so the concurrency token of
// every key is the store ETag observed when the key was read. A write to any other key
// invalidates it, which costs a retry but never a lost update.
package cloudfront

import (
	"context"
	"errors"
	"fmt"

	"kv-reconciler/core/reconcile"
	"kv-reconciler/core/registry"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfrontkeyvaluestore"
	cfkvstypes "github.com/aws/aws-sdk-go-v2/service/cloudfrontkeyvaluestore/types"
	"github.com/aws/smithy-go"
)

// Name is the provider identifier.
const Name = "cloudfront"

// KVSClient abstracts the CloudFront KeyValueStore API.
type KVSClient interface {
	DescribeKeyValueStore(ctx context.Context, params *cloudfrontkeyvaluestore.DescribeKeyValueStoreInput, optFns ...func(*cloudfrontkeyvaluestore.Options)) (*cloudfrontkeyvaluestore.DescribeKeyValueStoreOutput, error)
	GetKey(ctx context.Context, params *cloudfrontkeyvaluestore.GetKeyInput, optFns ...func(*cloudfrontkeyvaluestore.Options)) (*cloudfrontkeyvaluestore.GetKeyOutput, error)
	PutKey(ctx context.Context, params *cloudfrontkeyvaluestore.PutKeyInput, optFns ...func(*cloudfrontkeyvaluestore.Options)) (*cloudfrontkeyvaluestore.PutKeyOutput, error)
	DeleteKey(ctx context.Context, params *cloudfrontkeyvaluestore.DeleteKeyInput, optFns ...func(*cloudfrontkeyvaluestore.Options)) (*cloudfrontkeyvaluestore.DeleteKeyOutput, error)
}

// Backend reads and writes single keys of one store.
type Backend struct {
	client KVSClient
	arn    string
}

// New creates a backend over an existing client.
func New(client KVSClient, kvsARN string) (*Backend, error) {
	if kvsARN == "" {
		return nil, errors.New("cloudfront kvs_arn is not configured")
	}
	return &Backend{client: client, arn: kvsARN}, nil
}

// Provider returns the registry entry for CloudFront KVS. Credentials and region
// come from the AWS default chain; host and port are ignored.
func Provider(cfg Config) registry.Provider {
	return registry.Provider{
		Name:         Name,
		Description:  "CloudFront KeyValueStore (store ETag IfMatch)",
		OwnsEndpoint: true,
		Factory: func(registry.Target) (reconcile.Backend, error) {
			if cfg.KVSARN == "" {
				return nil, errors.New("cloudfront kvs_arn is not configured")
			}

			var awsOpts []func(*awsconfig.LoadOptions) error
			if cfg.Region != "" {
				awsOpts = append(awsOpts, awsconfig.WithRegion(cfg.Region))
			}
			if cfg.Profile != "" {
				awsOpts = append(awsOpts, awsconfig.WithSharedConfigProfile(cfg.Profile))
			}
			awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsOpts...)
			if err != nil {
				return nil, fmt.Errorf("loading AWS config: %w", err)
			}
			return New(cloudfrontkeyvaluestore.NewFromConfig(awsCfg), cfg.KVSARN)
		},
	}
}

func (b *Backend) etag(ctx context.Context) (string, error) {
	desc, err := b.client.DescribeKeyValueStore(ctx, &cloudfrontkeyvaluestore.DescribeKeyValueStoreInput{
		KvsARN: aws.String(b.arn),
	})
	if err != nil {
		return "", reconcile.Unavailable("describing KVS", err)
	}
	return aws.ToString(desc.ETag), nil
}

func (b *Backend) get(ctx context.Context, key string) (string, bool, error) {
	out, err := b.client.GetKey(ctx, &cloudfrontkeyvaluestore.GetKeyInput{
		KvsARN: aws.String(b.arn),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, reconcile.Unavailable("getting KVS key", err)
	}
	return aws.ToString(out.Value), true, nil
}

// Read returns the value together with the store ETag described before it was fetched.
func (b *Backend) Read(ctx context.Context, key string) (reconcile.ObservedState, error) {
	etag, err := b.etag(ctx)
	if err != nil {
		return reconcile.ObservedState{}, err
	}
	value, ok, err := b.get(ctx, key)
	if err != nil {
		return reconcile.ObservedState{}, err
	}
	if !ok {
		return reconcile.Missing(), nil
	}
	return reconcile.Found(value, reconcile.Token(etag)), nil
}

// Write puts value with IfMatch on the store ETag. A create first confirms the
// key is absent under that same ETag.
func (b *Backend) Write(ctx context.Context, key, value string, expected reconcile.Token) (bool, error) {
	ifMatch := string(expected)
	if expected == reconcile.CreateOnly {
		// Pin absence to an ETag so a concurrent create fails the IfMatch.
		etag, err := b.etag(ctx)
		if err != nil {
			return false, err
		}
		_, exists, err := b.get(ctx, key)
		if err != nil {
			return false, err
		}
		if exists {
			return false, nil
		}
		ifMatch = etag
	}

	_, err := b.client.PutKey(ctx, &cloudfrontkeyvaluestore.PutKeyInput{
		KvsARN:  aws.String(b.arn),
		Key:     aws.String(key),
		Value:   aws.String(value),
		IfMatch: aws.String(ifMatch),
	})
	if err != nil {
		if isConflict(err) {
			return false, nil
		}
		return false, reconcile.Unavailable("putting KVS key", err)
	}
	return true, nil
}

// Remove deletes key with IfMatch on the store ETag. A conflict or missing key
// reports false.
func (b *Backend) Remove(ctx context.Context, key string, expected reconcile.Token) (bool, error) {
	if expected == reconcile.CreateOnly {
		return false, nil
	}
	_, err := b.client.DeleteKey(ctx, &cloudfrontkeyvaluestore.DeleteKeyInput{
		KvsARN:  aws.String(b.arn),
		Key:     aws.String(key),
		IfMatch: aws.String(string(expected)),
	})
	if err != nil {
		if isConflict(err) || isNotFound(err) {
			return false, nil
		}
		return false, reconcile.Unavailable("deleting KVS key", err)
	}
	return true, nil
}

func isNotFound(err error) bool {
	var nf *cfkvstypes.ResourceNotFoundException
	return errors.As(err, &nf)
}

func isConflict(err error) bool {
	var conflict *cfkvstypes.ConflictException
	if errors.As(err, &conflict) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed"
}
