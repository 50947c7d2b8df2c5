package images

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSBucket stores objects in a Cloud Storage bucket.
type GCSBucket struct {
	bucket *storage.BucketHandle
	name   string
}

// NewGCSBucket wraps a bucket handle. name is the bucket name used to build
// public download URLs.
func NewGCSBucket(bucket *storage.BucketHandle, name string) *GCSBucket {
	return &GCSBucket{bucket: bucket, name: name}
}

var _ Bucket = (*GCSBucket)(nil)

func (b *GCSBucket) objectURL(objectPath string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", b.name, objectPath)
}

func (b *GCSBucket) Write(ctx context.Context, objectPath, contentType string, data []byte) (string, error) {
	w := b.bucket.Object(objectPath).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("write object %s: %w", objectPath, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close object %s: %w", objectPath, err)
	}
	return b.objectURL(objectPath), nil
}

func (b *GCSBucket) Delete(ctx context.Context, objectPath string) error {
	if err := b.bucket.Object(objectPath).Delete(ctx); err != nil {
		return fmt.Errorf("delete object %s: %w", objectPath, err)
	}
	return nil
}

func (b *GCSBucket) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	it := b.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	var out []ObjectInfo
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("list objects %s: %w", prefix, err)
		}
		name := attrs.Name
		out = append(out, ObjectInfo{
			Path: name,
			Name: baseName(name),
			URL:  b.objectURL(name),
		})
	}
}

func baseName(objectPath string) string {
	for i := len(objectPath) - 1; i >= 0; i-- {
		if objectPath[i] == '/' {
			return objectPath[i+1:]
		}
	}
	return objectPath
}
