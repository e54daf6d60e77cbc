package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds the connection settings for an S3-compatible endpoint.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioStore is a Store backed by MinIO or any S3-compatible service.
type MinioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *MinioStore) Put(ctx context.Context, key, contentType string, content io.Reader, size int64, meta map[string]string) (*Object, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if size > MaxObjectSize {
		return nil, ErrBlobTooLarge
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, content, size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: meta,
	})
	if err != nil {
		return nil, fmt.Errorf("put object %s: %w", key, err)
	}
	return &Object{
		Key:         key,
		ContentType: contentType,
		Size:        info.Size,
		Hash:        info.ETag,
		CreatedAt:   info.LastModified,
		Metadata:    copyMeta(meta),
	}, nil
}

func (s *MinioStore) Get(ctx context.Context, key string) (io.ReadCloser, *Object, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, s.mapErr(key, err)
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, nil, s.mapErr(key, err)
	}
	return obj, objectFromInfo(info), nil
}

func (s *MinioStore) Stat(ctx context.Context, key string) (*Object, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, s.mapErr(key, err)
	}
	return objectFromInfo(info), nil
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	if _, err := s.Stat(ctx, key); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return s.mapErr(key, err)
	}
	return nil
}

func (s *MinioStore) List(ctx context.Context, prefix string) ([]*Object, error) {
	var out []*Object
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list objects %s: %w", prefix, info.Err)
		}
		out = append(out, objectFromInfo(info))
	}
	return out, nil
}

func (s *MinioStore) Location(key string) string {
	return Location(s.bucket, key)
}

// Ping checks that the bucket is reachable.
func (s *MinioStore) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}

func (s *MinioStore) mapErr(key string, err error) error {
	if isNotFound(err) {
		return ErrBlobNotFound
	}
	return fmt.Errorf("object %s: %w", key, err)
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return true
	}
	return errors.Is(err, ErrBlobNotFound)
}

func objectFromInfo(info minio.ObjectInfo) *Object {
	return &Object{
		Key:         info.Key,
		ContentType: info.ContentType,
		Size:        info.Size,
		Hash:        info.ETag,
		CreatedAt:   info.LastModified,
		Metadata:    copyMeta(info.UserMetadata),
	}
}
