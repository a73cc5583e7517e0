package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
)

// MemStore is an in-memory ObjectStore with strong read-after-write
// consistency. It backs unit tests and the local (no network) run mode.
type MemStore struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{buckets: make(map[string]map[string][]byte)}
}

func (m *MemStore) CreateBucket(_ context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[bucket]; ok {
		return ErrBucketExists
	}
	m.buckets[bucket] = make(map[string][]byte)
	return nil
}

func (m *MemStore) Put(_ context.Context, bucket, key string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[bucket]
	if !ok {
		return ErrBucketNotFound
	}
	b[key] = data
	return nil
}

// List returns keys in lexical order, matching S3's listing contract.
func (m *MemStore) List(_ context.Context, bucket string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.buckets[bucket]
	if !ok {
		return nil, ErrBucketNotFound
	}
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemStore) Get(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.buckets[bucket]
	if !ok {
		return nil, ErrBucketNotFound
	}
	data, ok := b[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemStore) Delete(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[bucket]
	if !ok {
		return ErrBucketNotFound
	}
	if _, ok := b[key]; !ok {
		return ErrObjectNotFound
	}
	delete(b, key)
	return nil
}

func (m *MemStore) DeleteBucket(_ context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[bucket]
	if !ok {
		return ErrBucketNotFound
	}
	if len(b) > 0 {
		return ErrBucketNotEmpty
	}
	delete(m.buckets, bucket)
	return nil
}

// HasBucket reports whether the bucket currently exists.
func (m *MemStore) HasBucket(bucket string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.buckets[bucket]
	return ok
}
