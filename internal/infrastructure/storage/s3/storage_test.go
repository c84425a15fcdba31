package s3

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliganster/tp-companion/internal/core/domain"
)

type fakeObjectAPI struct {
	objects map[string][]byte
	types   map[string]string
	stamp   time.Time
}

func newFakeObjectAPI() *fakeObjectAPI {
	return &fakeObjectAPI{objects: map[string][]byte{}, types: map[string]string{}, stamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func notFound() error {
	return &smithy.GenericAPIError{Code: "NotFound", Message: "missing"}
}

func (f *fakeObjectAPI) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = body
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjectAPI) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey", Message: "missing"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeObjectAPI) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	key := aws.ToString(in.Key)
	body, ok := f.objects[key]
	if !ok {
		return nil, notFound()
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(f.types[key]),
		LastModified:  aws.Time(f.stamp),
	}, nil
}

func TestStorageRoundTrip(t *testing.T) {
	api := newFakeObjectAPI()
	store := newWithClient(api, "callsheets")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "user-1/receipts/ticket.jpg", strings.NewReader("jpeg")))
	assert.Equal(t, "image/jpeg", api.types["user-1/receipts/ticket.jpg"])

	info, err := store.Stat(ctx, "user-1/receipts/ticket.jpg")
	require.NoError(t, err)
	assert.Equal(t, int64(4), info.Size)
	assert.Equal(t, domain.MimeJPEG, info.MimeType)
	assert.Equal(t, api.stamp, info.UpdatedAt)

	rc, err := store.Open(ctx, "user-1/receipts/ticket.jpg")
	require.NoError(t, err)
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "jpeg", string(body))
}

func TestStatFallsBackToExtensionForGenericContentType(t *testing.T) {
	api := newFakeObjectAPI()
	api.objects["user-1/callsheets/a.pdf"] = []byte("%PDF")
	api.types["user-1/callsheets/a.pdf"] = "binary/octet-stream"

	info, err := newWithClient(api, "b").Stat(context.Background(), "user-1/callsheets/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, domain.MimePDF, info.MimeType)
}

func TestMissingObjectMapsToNotFound(t *testing.T) {
	store := newWithClient(newFakeObjectAPI(), "b")

	_, err := store.Stat(context.Background(), "user-1/none.jpg")
	assert.True(t, domain.IsKind(err, domain.ErrNotFound))
	_, err = store.Open(context.Background(), "user-1/none.jpg")
	assert.True(t, domain.IsKind(err, domain.ErrNotFound))
}
