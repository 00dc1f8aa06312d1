package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	bucket, key string
	body        []byte
	err         error
}

func (f *fakeUploader) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket = aws.ToString(input.Bucket)
	f.key = aws.ToString(input.Key)
	body, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &manager.UploadOutput{Key: input.Key}, nil
}

type fakeLister struct {
	pages  []*s3.ListObjectsV2Output
	inputs []s3.ListObjectsV2Input
}

func (f *fakeLister) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.inputs = append(f.inputs, *in)
	if len(f.pages) == 0 {
		return nil, errors.New("no more pages")
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func TestUploadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.db")
	require.NoError(t, os.WriteFile(path, []byte("snapshot-bytes"), 0o600))

	up := &fakeUploader{}
	svc := NewS3ServiceWith(&fakeLister{}, up)

	var lastDone, lastTotal int64
	loc, err := svc.UploadFile(context.Background(), path, UploadOptions{
		Bucket: "backups",
		Key:    "/account-backups/accounts.db",
		ProgressCallback: func(done, total int64) {
			lastDone, lastTotal = done, total
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "s3://backups/account-backups/accounts.db", loc)
	assert.Equal(t, "backups", up.bucket)
	assert.Equal(t, "account-backups/accounts.db", up.key)
	assert.Equal(t, "snapshot-bytes", string(up.body))
	assert.Equal(t, int64(len("snapshot-bytes")), lastDone)
	assert.Equal(t, lastDone, lastTotal)
}

func TestUploadFile_Errors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "accounts.db")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	tests := []struct {
		name string
		path string
		opts UploadOptions
		up   *fakeUploader
	}{
		{"no bucket", path, UploadOptions{Key: "k"}, &fakeUploader{}},
		{"no key", path, UploadOptions{Bucket: "b"}, &fakeUploader{}},
		{"missing file", filepath.Join(dir, "nope"), UploadOptions{Bucket: "b", Key: "k"}, &fakeUploader{}},
		{"directory", dir, UploadOptions{Bucket: "b", Key: "k"}, &fakeUploader{}},
		{"upload failure", path, UploadOptions{Bucket: "b", Key: "k"}, &fakeUploader{err: errors.New("denied")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewS3ServiceWith(&fakeLister{}, tt.up)
			_, err := svc.UploadFile(context.Background(), tt.path, tt.opts)
			assert.Error(t, err)
		})
	}
}

func TestListObjects_Paginates(t *testing.T) {
	lister := &fakeLister{pages: []*s3.ListObjectsV2Output{
		{
			Contents:              []types.Object{{Key: aws.String("p/a.db"), Size: aws.Int64(10)}},
			IsTruncated:           aws.Bool(true),
			NextContinuationToken: aws.String("next"),
		},
		{
			Contents: []types.Object{{Key: aws.String("p/b.db"), Size: aws.Int64(20)}},
		},
	}}
	svc := NewS3ServiceWith(lister, &fakeUploader{})

	objects, err := svc.ListObjects(context.Background(), "backups", "p/")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "p/a.db", objects[0].Key)
	assert.Equal(t, int64(20), objects[1].Size)

	require.Len(t, lister.inputs, 2)
	assert.Equal(t, "p/", aws.ToString(lister.inputs[0].Prefix))
	assert.Equal(t, "next", aws.ToString(lister.inputs[1].ContinuationToken))
}

func TestListObjects_RequiresBucket(t *testing.T) {
	svc := NewS3ServiceWith(&fakeLister{}, &fakeUploader{})
	_, err := svc.ListObjects(context.Background(), "", "")
	assert.Error(t, err)
}
