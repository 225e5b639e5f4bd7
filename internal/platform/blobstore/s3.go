package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Object metadata keys. S3 lowercases user metadata keys.
const (
	metaFileName  = "original-filename"
	metaSessionID = "session-id"
	metaHash      = "sha256"
	metaCreatedAt = "created-at"
)

// S3Store keeps blobs as objects under prefix in bucket.
type S3Store struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Store creates a store over an existing client.
func NewS3Store(client S3API, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

// NewS3StoreFromEnv loads the default AWS configuration chain and returns a
// store for bucket.
func NewS3StoreFromEnv(ctx context.Context, region, bucket, prefix string) (*S3Store, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return NewS3Store(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func (s *S3Store) key(id string) string { return s.prefix + id }

// Upload validates and writes the blob as one object.
func (s *S3Store) Upload(ctx context.Context, meta BlobMetadata, content io.Reader) (*BlobMetadata, error) {
	meta, data, err := prepare(meta, content)
	if err != nil {
		return nil, err
	}

	userMeta := make(map[string]string, len(meta.Tags)+4)
	for k, v := range meta.Tags {
		userMeta["tag-"+strings.ToLower(k)] = v
	}
	userMeta[metaFileName] = meta.FileName
	userMeta[metaSessionID] = meta.SessionID
	userMeta[metaHash] = meta.Hash
	userMeta[metaCreatedAt] = meta.CreatedAt.Format(time.RFC3339)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(meta.ID)),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(meta.ContentType),
		ContentLength: aws.Int64(meta.Size),
		Metadata:      userMeta,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 upload failed: %w", err)
	}
	out := meta
	return &out, nil
}

// Download streams the object body.
func (s *S3Store) Download(ctx context.Context, id string) (io.ReadCloser, *BlobMetadata, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return nil, nil, s3Error(err)
	}
	meta := metadataFrom(id, out.ContentType, out.ContentLength, out.Metadata)
	return out.Body, meta, nil
}

// Delete removes the object.
func (s *S3Store) Delete(ctx context.Context, id string) error {
	if _, err := s.GetMetadata(ctx, id); err != nil {
		return err
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return fmt.Errorf("s3 delete failed: %w", err)
	}
	return nil
}

// GetMetadata reads the object head.
func (s *S3Store) GetMetadata(ctx context.Context, id string) (*BlobMetadata, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return nil, s3Error(err)
	}
	return metadataFrom(id, out.ContentType, out.ContentLength, out.Metadata), nil
}

func metadataFrom(id string, contentType *string, length *int64, m map[string]string) *BlobMetadata {
	meta := &BlobMetadata{
		ID:          id,
		FileName:    m[metaFileName],
		ContentType: aws.ToString(contentType),
		Size:        aws.ToInt64(length),
		SessionID:   m[metaSessionID],
		Hash:        m[metaHash],
		Tags:        make(map[string]string),
	}
	if t, err := time.Parse(time.RFC3339, m[metaCreatedAt]); err == nil {
		meta.CreatedAt = t
	}
	for k, v := range m {
		if tag, ok := strings.CutPrefix(k, "tag-"); ok {
			meta.Tags[tag] = v
		}
	}
	return meta
}

func s3Error(err error) error {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return ErrBlobNotFound
	}
	return fmt.Errorf("s3 request failed: %w", err)
}
