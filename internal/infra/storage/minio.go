package storage

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

type MinioBackend struct {
	client   *minio.Client
	bucket   string
	endpoint string
	secure   bool
}

func NewMinioBackend(endpoint, accessKey, secretKey, bucket string, secure bool) (*MinioBackend, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, errors.Wrap(err, "minio client")
	}
	return &MinioBackend{client: client, bucket: bucket, endpoint: endpoint, secure: secure}, nil
}

func (b *MinioBackend) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, err := b.client.PutObject(ctx, b.bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	return err
}

func (b *MinioBackend) Remove(ctx context.Context, key string) error {
	err := b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return nil
	}
	return err
}

func (b *MinioBackend) BaseURL() string {
	scheme := "http"
	if b.secure {
		scheme = "https"
	}
	return scheme + "://" + b.endpoint + "/" + b.bucket
}
