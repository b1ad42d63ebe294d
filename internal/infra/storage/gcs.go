package storage

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

type GCSBackend struct {
	client *storage.Client
	bucket string
}

// NewGCSBackend uses application default credentials unless credentialsFile is set.
func NewGCSBackend(ctx context.Context, bucket, credentialsFile string) (*GCSBackend, error) {
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "gcs client")
	}
	return &GCSBackend{client: client, bucket: bucket}, nil
}

func (b *GCSBackend) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	return writeObject(ctx, func(ctx context.Context) io.WriteCloser {
		w := b.client.Bucket(b.bucket).Object(key).NewWriter(ctx)
		w.ContentType = contentType
		return w
	}, body)
}

// writeObject streams body into a writer bound to ctx. A failed copy cancels
// ctx before Close so the partial object is discarded instead of committed.
func writeObject(ctx context.Context, open func(context.Context) io.WriteCloser, body io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := open(ctx)
	if _, err := io.Copy(w, body); err != nil {
		cancel()
		_ = w.Close()
		return errors.Wrap(err, "write gcs object")
	}
	return w.Close()
}

func (b *GCSBackend) Remove(ctx context.Context, key string) error {
	err := b.client.Bucket(b.bucket).Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (b *GCSBackend) BaseURL() string {
	return "https://storage.googleapis.com/" + b.bucket
}
