// Package blob turns uploaded photos and signatures into stored references:
// small files become inline data URLs, larger ones go to S3.
package blob

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	awsclient "scholarship-workers/internal/common/aws"
)

var (
	ErrInvalidUpload   = errors.New("INVALID_UPLOAD")
	ErrUnsupportedType = errors.New("UNSUPPORTED_CONTENT_TYPE")
	ErrTooLarge        = errors.New("UPLOAD_TOO_LARGE")
)

// AllowedContentTypes lists image types accepted for photos and signatures.
var AllowedContentTypes = []string{"image/jpeg", "image/png", "image/webp"}

// Upload is a decoded file from the wizard.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// FromValue decodes a form value shaped {name, contentType, data}. data may be
// plain base64 or a data URL, in which case its media type wins.
func FromValue(v interface{}) (*Upload, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: expected object, got %T", ErrInvalidUpload, v)
	}
	raw, _ := m["data"].(string)
	if raw == "" {
		return nil, fmt.Errorf("%w: data is empty", ErrInvalidUpload)
	}

	u := &Upload{}
	u.Name, _ = m["name"].(string)
	u.ContentType, _ = m["contentType"].(string)

	if strings.HasPrefix(raw, "data:") {
		header, payload, found := strings.Cut(raw, ",")
		if !found || !strings.HasSuffix(header, ";base64") {
			return nil, fmt.Errorf("%w: malformed data URL", ErrInvalidUpload)
		}
		u.ContentType = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		raw = payload
	}

	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
	}
	u.Data = data
	return u, nil
}

// Validate checks the content type and size limit. maxBytes <= 0 disables the limit.
func (u Upload) Validate(maxBytes int) error {
	allowed := false
	for _, ct := range AllowedContentTypes {
		if u.ContentType == ct {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, u.ContentType)
	}
	if maxBytes > 0 && len(u.Data) > maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(u.Data), maxBytes)
	}
	return nil
}

// DataURL renders the upload inline.
func (u Upload) DataURL() string {
	return "data:" + u.ContentType + ";base64," + base64.StdEncoding.EncodeToString(u.Data)
}

// Store persists an upload under key and returns the reference to save on the record.
type Store interface {
	Put(ctx context.Context, key string, u Upload) (string, error)
}

type InlineStore struct{}

func (InlineStore) Put(_ context.Context, _ string, u Upload) (string, error) {
	return u.DataURL(), nil
}

type S3Store struct {
	api    awsclient.S3API
	bucket string
	prefix string
}

func NewS3Store(api awsclient.S3API, bucket, prefix string) *S3Store {
	return &S3Store{api: api, bucket: bucket, prefix: prefix}
}

func (s *S3Store) Put(ctx context.Context, key string, u Upload) (string, error) {
	objectKey := path.Join(s.prefix, key+extension(u.ContentType))
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(u.Data),
		ContentType: aws.String(u.ContentType),
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", s.bucket, objectKey, err)
	}
	return "s3://" + s.bucket + "/" + objectKey, nil
}

// TieredStore keeps uploads up to InlineMaxBytes inline and sends larger ones
// to External. Without an external store everything is inlined.
type TieredStore struct {
	Inline         Store
	External       Store
	InlineMaxBytes int
}

func (t TieredStore) Put(ctx context.Context, key string, u Upload) (string, error) {
	if t.External == nil || len(u.Data) <= t.InlineMaxBytes {
		inline := t.Inline
		if inline == nil {
			inline = InlineStore{}
		}
		return inline.Put(ctx, key, u)
	}
	return t.External.Put(ctx, key, u)
}

func extension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
