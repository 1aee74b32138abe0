package blob

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockS3 struct{ mock.Mock }

func (m *MockS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*s3.PutObjectOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

func TestFromValue_PlainBase64(t *testing.T) {
	u, err := FromValue(map[string]interface{}{
		"name":        "photo.png",
		"contentType": "image/png",
		"data":        base64.StdEncoding.EncodeToString(pngBytes),
	})

	require.NoError(t, err)
	assert.Equal(t, "photo.png", u.Name)
	assert.Equal(t, pngBytes, u.Data)
	assert.NoError(t, u.Validate(1024))
}

func TestFromValue_DataURLOverridesContentType(t *testing.T) {
	u, err := FromValue(map[string]interface{}{
		"contentType": "application/octet-stream",
		"data":        "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpeg")),
	})

	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", u.ContentType)
	assert.Equal(t, []byte("jpeg"), u.Data)
}

func TestFromValue_Invalid(t *testing.T) {
	for name, v := range map[string]interface{}{
		"not an object": "abc",
		"empty data":    map[string]interface{}{"data": ""},
		"bad base64":    map[string]interface{}{"data": "%%%"},
		"bad data url":  map[string]interface{}{"data": "data:image/png,abc"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := FromValue(v)
			assert.ErrorIs(t, err, ErrInvalidUpload)
		})
	}
}

func TestUpload_Validate(t *testing.T) {
	assert.ErrorIs(t, Upload{ContentType: "application/pdf", Data: pngBytes}.Validate(0), ErrUnsupportedType)
	assert.ErrorIs(t, Upload{ContentType: "image/png", Data: make([]byte, 11)}.Validate(10), ErrTooLarge)
	assert.NoError(t, Upload{ContentType: "image/webp", Data: make([]byte, 10)}.Validate(10))
}

func TestTieredStore_InlinesSmallUploads(t *testing.T) {
	api := new(MockS3)
	store := TieredStore{External: NewS3Store(api, "bucket", "scholarship"), InlineMaxBytes: 16}

	ref, err := store.Put(context.Background(), "applications/10001/photo", Upload{ContentType: "image/png", Data: pngBytes})

	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(pngBytes), ref)
	api.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything)
}

func TestTieredStore_SendsLargeUploadsToS3(t *testing.T) {
	api := new(MockS3)
	api.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Bucket) == "bucket" &&
			aws.ToString(in.Key) == "scholarship/applications/10001/signature.jpg" &&
			aws.ToString(in.ContentType) == "image/jpeg"
	})).Return(&s3.PutObjectOutput{}, nil)

	store := TieredStore{External: NewS3Store(api, "bucket", "scholarship"), InlineMaxBytes: 4}
	ref, err := store.Put(context.Background(), "applications/10001/signature", Upload{ContentType: "image/jpeg", Data: make([]byte, 64)})

	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/scholarship/applications/10001/signature.jpg", ref)
	api.AssertExpectations(t)
}

func TestS3Store_Error(t *testing.T) {
	api := new(MockS3)
	api.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))

	_, err := NewS3Store(api, "bucket", "").Put(context.Background(), "k", Upload{ContentType: "image/png", Data: pngBytes})
	assert.ErrorContains(t, err, "access denied")
}

func TestTieredStore_NoExternalInlinesEverything(t *testing.T) {
	ref, err := TieredStore{InlineMaxBytes: 1}.Put(context.Background(), "k", Upload{ContentType: "image/png", Data: pngBytes})
	require.NoError(t, err)
	assert.Contains(t, ref, "data:image/png;base64,")
}
