// AngelaMos | 2026
// s3_test.go

package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/tfg-registry/internal/config"
	"github.com/carterperez-dev/tfg-registry/internal/core"
)

type fakeObjects struct {
	objects map[string][]byte
	fail    error
}

func (f *fakeObjects) PutObject(
	_ context.Context,
	in *s3.PutObjectInput,
	_ ...func(*s3.Options),
) (*s3.PutObjectOutput, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) GetObject(
	_ context.Context,
	in *s3.GetObjectInput,
	_ ...func(*s3.Options),
) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeObjects) DeleteObject(
	_ context.Context,
	in *s3.DeleteObjectInput,
	_ ...func(*s3.Options),
) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func newS3(t *testing.T, fake *fakeObjects) *S3Store {
	t.Helper()

	store, err := NewS3Store(context.Background(), S3Options{
		Config: config.S3Config{
			Bucket:        "theses",
			Region:        "eu-west-1",
			PublicBaseURL: "https://files.example.com/",
			KeyPrefix:     "tfgs/",
		},
		Client: fake,
	})
	require.NoError(t, err)
	return store
}

func TestS3RoundTrip(t *testing.T) {
	fake := &fakeObjects{objects: map[string][]byte{}}
	store := newS3(t, fake)
	ctx := context.Background()

	url, err := store.Upload(ctx, []byte("%PDF"), "Thesis.PDF")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://files.example.com/tfgs/"))
	assert.True(t, strings.HasSuffix(url, ".pdf"))

	data, err := store.Fetch(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data))

	require.NoError(t, store.Delete(ctx, url))
	assert.Empty(t, fake.objects)

	_, err = store.Fetch(ctx, url)
	assert.True(t, core.HasCode(err, core.CodeFileFetch))
}

func TestS3RejectsForeignURLs(t *testing.T) {
	store := newS3(t, &fakeObjects{objects: map[string][]byte{}})

	_, err := store.Fetch(context.Background(), "https://elsewhere.example.com/tfgs/a.pdf")
	assert.True(t, core.HasCode(err, core.CodeFileURLInvalid))

	err = store.Delete(context.Background(), "")
	assert.True(t, core.HasCode(err, core.CodeFileURLInvalid))
}

func TestS3UploadFailure(t *testing.T) {
	store := newS3(t, &fakeObjects{objects: map[string][]byte{}, fail: errors.New("denied")})

	_, err := store.Upload(context.Background(), []byte("x"), "x.pdf")
	assert.True(t, core.HasCode(err, core.CodeUploadFailed))
}

func TestPublicBase(t *testing.T) {
	assert.Equal(t, "https://b.s3.us-east-1.amazonaws.com",
		publicBase(config.S3Config{Bucket: "b", Region: "us-east-1"}))
	assert.Equal(t, "http://minio:9000/b",
		publicBase(config.S3Config{Bucket: "b", Endpoint: "http://minio:9000/"}))
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New(context.Background(), config.StorageConfig{Backend: "ftp"}, 0, nil, nil)
	assert.Error(t, err)
}
