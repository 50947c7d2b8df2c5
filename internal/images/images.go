// Package images stores ticket photos in object storage under
// tickets/<ticketId>/<filename>.
package images

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/servicedesk-pro/servicedesk/pkg/models"
)

// MaxSize is the upload limit in bytes.
const MaxSize = 5 * 1024 * 1024

var (
	ErrNotImage = errors.New("file must be an image")
	ErrTooLarge = errors.New("file is too large (max 5MB)")
	ErrNoFile   = errors.New("no file provided")
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Path string
	Name string
	URL  string
}

// Bucket is the object-storage surface the service needs. The production
// implementation wraps a Cloud Storage bucket; tests use an in-memory fake.
type Bucket interface {
	Write(ctx context.Context, objectPath, contentType string, data []byte) (url string, err error)
	Delete(ctx context.Context, objectPath string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// Service validates and stores ticket images.
type Service struct {
	bucket Bucket
}

// New creates an image service over bucket.
func New(bucket Bucket) *Service {
	return &Service{bucket: bucket}
}

// Upload validates the file and writes it under the ticket's folder. The
// stored filename gets a millisecond suffix so re-uploads of the same file
// never collide.
func (s *Service) Upload(ctx context.Context, ticketID, filename, contentType string, data []byte) (models.Image, error) {
	if len(data) == 0 {
		return models.Image{}, ErrNoFile
	}
	if !strings.HasPrefix(contentType, "image/") {
		return models.Image{}, ErrNotImage
	}
	if len(data) > MaxSize {
		return models.Image{}, ErrTooLarge
	}

	stored := uniqueFilename(filename)
	objectPath := fmt.Sprintf("tickets/%s/%s", ticketID, stored)

	url, err := s.bucket.Write(ctx, objectPath, contentType, data)
	if err != nil {
		return models.Image{}, fmt.Errorf("upload image: %w", err)
	}
	return models.Image{
		URL:        url,
		Path:       objectPath,
		Filename:   stored,
		UploadedAt: time.Now().UTC(),
	}, nil
}

// List returns the images stored for a ticket.
func (s *Service) List(ctx context.Context, ticketID string) ([]models.Image, error) {
	objects, err := s.bucket.List(ctx, fmt.Sprintf("tickets/%s/", ticketID))
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	out := make([]models.Image, 0, len(objects))
	for _, o := range objects {
		out = append(out, models.Image{URL: o.URL, Path: o.Path, Filename: o.Name})
	}
	return out, nil
}

// Delete removes one stored object.
func (s *Service) Delete(ctx context.Context, objectPath string) error {
	if err := s.bucket.Delete(ctx, objectPath); err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}

// uniqueFilename inserts a millisecond timestamp before the extension,
// keeping only the base name of whatever path the client sent.
func uniqueFilename(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	ext := path.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if name == "" {
		name = "image"
	}
	return fmt.Sprintf("%s-%d%s", name, time.Now().UnixMilli(), ext)
}
