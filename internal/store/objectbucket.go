package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/whennemuth/deltasync/internal/codec"
	"github.com/whennemuth/deltasync/internal/model"
	deltaerrors "github.com/whennemuth/deltasync/pkg/errors"
)

// S3API is the subset of the S3 client ObjectBucketBackend needs, so
// tests can substitute a fake without a network round trip.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// ObjectBucketBackend persists one NDJSON object per client at
// {KeyPrefix}/{clientID}/previous-input.ndjson in BucketName.
type ObjectBucketBackend struct {
	BucketName string
	KeyPrefix  string
	client     S3API
	log        zerolog.Logger
}

// ObjectBucketConfig is the {bucketName, keyPrefix?, region?} shape of
// spec.md §6.
type ObjectBucketConfig struct {
	BucketName string
	KeyPrefix  string
	Region     string
}

// NewObjectBucketBackend resolves credentials/region via the AWS SDK v2
// default chain (overridden by cfg.Region, see ResolveRegion) and
// constructs an ObjectBucketBackend. Returns ConfigError if BucketName is
// empty.
func NewObjectBucketBackend(ctx context.Context, cfg ObjectBucketConfig, log zerolog.Logger) (*ObjectBucketBackend, error) {
	if cfg.BucketName == "" {
		return nil, deltaerrors.Config("object bucket backend requires a non-empty bucketName", nil)
	}

	region := ResolveRegion(cfg.Region)
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, deltaerrors.Config("load AWS config", err)
	}

	return &ObjectBucketBackend{
		BucketName: cfg.BucketName,
		KeyPrefix:  cfg.KeyPrefix,
		client:     s3.NewFromConfig(awsCfg),
		log:        log,
	}, nil
}

// NewObjectBucketBackendWithClient builds a backend around an explicit
// S3API, bypassing credential resolution. Used by tests and by callers
// that already hold a configured client.
func NewObjectBucketBackendWithClient(client S3API, cfg ObjectBucketConfig, log zerolog.Logger) (*ObjectBucketBackend, error) {
	if cfg.BucketName == "" {
		return nil, deltaerrors.Config("object bucket backend requires a non-empty bucketName", nil)
	}
	return &ObjectBucketBackend{BucketName: cfg.BucketName, KeyPrefix: cfg.KeyPrefix, client: client, log: log}, nil
}

// ResolveRegion implements the pure resolution function of spec.md §9:
// explicit value wins, then the bucket-scoped env var, then the generic
// AWS region env vars, then "" (letting the SDK apply its own default).
func ResolveRegion(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v := os.Getenv("DELTASYNC_BUCKET_REGION"); v != "" {
		return v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		return v
	}
	if v := os.Getenv("AWS_DEFAULT_REGION"); v != "" {
		return v
	}
	return ""
}

func (b *ObjectBucketBackend) clientKey(clientID string) string {
	if b.KeyPrefix == "" {
		return clientID + "/previous-input.ndjson"
	}
	return b.KeyPrefix + "/" + clientID + "/previous-input.ndjson"
}

// Initialize is a no-op: object buckets treat parent-"directory"
// creation as a no-op, per spec.md §4.5.
func (b *ObjectBucketBackend) Initialize(_ context.Context, _ string, _ []string) error {
	return nil
}

// FetchPrevious downloads and decodes the client's object. A missing key
// is treated as "no previous baseline" rather than an error.
func (b *ObjectBucketBackend) FetchPrevious(ctx context.Context, clientID string, _ []model.Record) ([]model.Record, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.BucketName),
		Key:    aws.String(b.clientKey(clientID)),
	})
	if isNoSuchKey(err) {
		return nil, nil
	}
	if err != nil {
		return nil, deltaerrors.IO("get object", err)
	}
	defer out.Body.Close()

	return codec.ReadAll(out.Body)
}

// UpdatePrevious rewrites the client's object with data, or deletes it
// when data is empty. Writes go through a temp key, then an atomic
// copy-then-delete swap emulating filesystem rename semantics.
func (b *ObjectBucketBackend) UpdatePrevious(ctx context.Context, clientID string, data []model.Record, _ []string, _ int) (int, error) {
	key := b.clientKey(clientID)

	if len(data) == 0 {
		_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(b.BucketName),
			Key:    aws.String(key),
		})
		if err != nil && !isNoSuchKey(err) {
			return 0, deltaerrors.IO("delete object", err)
		}
		return 0, nil
	}

	var buf bytes.Buffer
	if err := codec.WriteAll(&buf, nil, data); err != nil {
		return 0, err
	}

	tmpKey := key + ".tmp"
	if _, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.BucketName),
		Key:    aws.String(tmpKey),
		Body:   bytes.NewReader(buf.Bytes()),
	}); err != nil {
		return 0, deltaerrors.IO("put temp object", err)
	}

	if err := b.moveResource(ctx, tmpKey, key); err != nil {
		return 0, deltaerrors.IO("swap object", err)
	}

	b.log.Debug().Str("client_id", clientID).Int("count", len(data)).Msg("baseline updated")
	return len(data), nil
}

// moveResource emulates filesystem rename via CopyObject + DeleteObject,
// the object-bucket equivalent spec.md §4.5 describes.
func (b *ObjectBucketBackend) moveResource(ctx context.Context, srcKey, dstKey string) error {
	source := fmt.Sprintf("%s/%s", b.BucketName, srcKey)
	if _, err := b.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(b.BucketName),
		CopySource: aws.String(source),
		Key:        aws.String(dstKey),
	}); err != nil {
		return err
	}
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.BucketName),
		Key:    aws.String(srcKey),
	})
	return err
}

func isNoSuchKey(err error) bool {
	if err == nil {
		return false
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	return errors.As(err, &nf)
}

var _ Backend = (*ObjectBucketBackend)(nil)
