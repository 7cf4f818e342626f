package objectstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Client used by tests and dry runs
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]map[string][]byte

	// FailOn makes the named operation ("upload", "download", "copy",
	// "delete", "list") fail for keys containing the given substring.
	FailOn map[string]string
}

// NewMemoryStore creates a store with the given empty buckets
func NewMemoryStore(buckets ...string) *MemoryStore {
	m := &MemoryStore{buckets: make(map[string]map[string][]byte)}
	for _, b := range buckets {
		m.buckets[b] = make(map[string][]byte)
	}
	return m
}

// Put stores data directly
func (m *MemoryStore) Put(bucket, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.buckets[bucket] == nil {
		m.buckets[bucket] = make(map[string][]byte)
	}
	m.buckets[bucket][key] = append([]byte(nil), data...)
}

// Get returns the content of an object
func (m *MemoryStore) Get(bucket, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.buckets[bucket][key]
	return data, ok
}

// Count returns the number of objects under prefix in bucket
func (m *MemoryStore) Count(bucket, prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.buckets[bucket] {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n
}

func (m *MemoryStore) fail(op, key string) error {
	if sub, ok := m.FailOn[op]; ok && strings.Contains(key, sub) {
		return fmt.Errorf("injected %s failure for %s", op, key)
	}
	return nil
}

func (m *MemoryStore) BucketExists(_ context.Context, bucket string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.buckets[bucket]
	return ok, nil
}

func (m *MemoryStore) Upload(ctx context.Context, bucket, key, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.fail("upload", key); err != nil {
		return err
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	m.Put(bucket, key, data)
	return nil
}

func (m *MemoryStore) Download(ctx context.Context, bucket, key, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.fail("download", key); err != nil {
		return err
	}
	data, ok := m.Get(bucket, key)
	if !ok {
		return fmt.Errorf("%s/%s: %w", bucket, key, ErrNotFound)
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(localPath, data, 0644)
}

func (m *MemoryStore) Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.fail("copy", srcKey); err != nil {
		return err
	}
	data, ok := m.Get(srcBucket, srcKey)
	if !ok {
		return fmt.Errorf("%s/%s: %w", srcBucket, srcKey, ErrNotFound)
	}
	m.Put(dstBucket, dstKey, data)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.fail("delete", key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buckets[bucket], key)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.fail("list", prefix); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.buckets[bucket] {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
