package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/liliganster/tp-companion/internal/core/domain"
	"github.com/liliganster/tp-companion/internal/core/ports"
)

// objectAPI is the subset of the S3 client the storage uses.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type Options struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// Storage keeps artifacts in an S3-compatible bucket (AWS or MinIO).
type Storage struct {
	client objectAPI
	bucket string
}

func New(ctx context.Context, opts Options) (*Storage, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	})
	return newWithClient(client, opts.Bucket), nil
}

func newWithClient(client objectAPI, bucket string) *Storage {
	return &Storage{client: client, bucket: bucket}
}

// Save buffers the body; artifacts are capped well below the single-part
// upload limit.
func (s *Storage) Save(ctx context.Context, key string, data io.Reader) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}
	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}
	if ct := domain.MimeTypeByExtension(key); ct != "" {
		in.ContentType = aws.String(ct)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

func (s *Storage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapS3Error("s3 get object", key, err)
	}
	return out.Body, nil
}

func (s *Storage) Stat(ctx context.Context, key string) (ports.ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return ports.ObjectInfo{}, mapS3Error("s3 head object", key, err)
	}

	info := ports.ObjectInfo{
		Key:      key,
		Size:     aws.ToInt64(out.ContentLength),
		MimeType: domain.NormalizeMimeType(aws.ToString(out.ContentType)),
	}
	if info.MimeType == "" || info.MimeType == "application/octet-stream" || info.MimeType == "binary/octet-stream" {
		info.MimeType = domain.MimeTypeByExtension(key)
	}
	if out.LastModified != nil {
		info.UpdatedAt = out.LastModified.UTC()
	}
	return info, nil
}

func mapS3Error(op, key string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return domain.WrapError(domain.ErrNotFound, op, fmt.Errorf("object %s", key))
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return domain.WrapError(domain.ErrConfiguration, op, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
