package images

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryBucket is an in-memory Bucket for tests and the memory dev backend.
type MemoryBucket struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryBucket returns an empty bucket.
func NewMemoryBucket() *MemoryBucket {
	return &MemoryBucket{objects: make(map[string][]byte)}
}

var _ Bucket = (*MemoryBucket)(nil)

func (b *MemoryBucket) Write(ctx context.Context, objectPath, contentType string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[objectPath] = append([]byte(nil), data...)
	return "memory://" + objectPath, nil
}

func (b *MemoryBucket) Delete(ctx context.Context, objectPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[objectPath]; !ok {
		return fmt.Errorf("object %s not found", objectPath)
	}
	delete(b.objects, objectPath)
	return nil
}

func (b *MemoryBucket) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []ObjectInfo
	for p := range b.objects {
		if strings.HasPrefix(p, prefix) {
			out = append(out, ObjectInfo{Path: p, Name: baseName(p), URL: "memory://" + p})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
