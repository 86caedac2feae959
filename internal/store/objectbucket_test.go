package store

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whennemuth/deltasync/internal/model"
)

// fakeS3 is a minimal in-memory S3API good enough to exercise
// ObjectBucketBackend's get/put/copy/delete swap without a network call.
type fakeS3 struct {
	objects map[string][]byte
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: make(map[string][]byte)} }

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) CopyObject(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	// CopySource is "bucket/key"; the test bucket only ever holds one key
	// per object under test, so a straight lookup on the suffix is enough.
	for k, v := range f.objects {
		if len(*in.CopySource) >= len(k) && (*in.CopySource)[len(*in.CopySource)-len(k):] == k {
			f.objects[*in.Key] = v
			return &s3.CopyObjectOutput{}, nil
		}
	}
	return nil, &types.NoSuchKey{}
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if _, ok := f.objects[*in.Key]; !ok {
		return nil, &types.NoSuchKey{}
	}
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestObjectBucketBackend_FetchPreviousMissingKeyIsEmpty(t *testing.T) {
	backend, err := NewObjectBucketBackendWithClient(newFakeS3(), ObjectBucketConfig{BucketName: "b"}, zerolog.Nop())
	require.NoError(t, err)

	records, err := backend.FetchPrevious(context.Background(), "client1", nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestObjectBucketBackend_UpdateThenFetchRoundTrip(t *testing.T) {
	client := newFakeS3()
	backend, err := NewObjectBucketBackendWithClient(client, ObjectBucketConfig{BucketName: "b"}, zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	data := []model.Record{{Fields: []model.Field{{Name: "id", Value: "1"}}, Hash: "h1"}}
	n, err := backend.UpdatePrevious(ctx, "client1", data, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	fetched, err := backend.FetchPrevious(ctx, "client1", nil)
	require.NoError(t, err)
	require.Len(t, fetched, 1)
	assert.Equal(t, "h1", fetched[0].Hash)
}

func TestObjectBucketBackend_UpdateWithEmptyDataDeletes(t *testing.T) {
	client := newFakeS3()
	backend, err := NewObjectBucketBackendWithClient(client, ObjectBucketConfig{BucketName: "b"}, zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = backend.UpdatePrevious(ctx, "client1", []model.Record{{Hash: "h1"}}, nil, 0)
	require.NoError(t, err)
	_, err = backend.UpdatePrevious(ctx, "client1", nil, nil, 0)
	require.NoError(t, err)

	fetched, err := backend.FetchPrevious(ctx, "client1", nil)
	require.NoError(t, err)
	assert.Empty(t, fetched)
}

func TestResolveRegion_PrefersExplicit(t *testing.T) {
	t.Setenv("AWS_REGION", "us-east-1")
	assert.Equal(t, "eu-west-1", ResolveRegion("eu-west-1"))
}

func TestResolveRegion_FallsBackToEnv(t *testing.T) {
	t.Setenv("DELTASYNC_BUCKET_REGION", "")
	t.Setenv("AWS_REGION", "us-west-2")
	assert.Equal(t, "us-west-2", ResolveRegion(""))
}

func TestNewObjectBucketBackend_RejectsEmptyBucket(t *testing.T) {
	_, err := NewObjectBucketBackendWithClient(newFakeS3(), ObjectBucketConfig{}, zerolog.Nop())
	require.Error(t, err)
}

