package objectstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
)

type memoryObject struct {
	data        []byte
	contentType string
	version     int64
}

// Memory is an in-process BlobStore for development and tests.
type Memory struct {
	mu      sync.RWMutex
	name    string
	objects map[string]memoryObject
	next    int64
}

// NewMemory returns an empty store. name only appears in reference URLs.
func NewMemory(name string) *Memory {
	if name == "" {
		name = "memory"
	}
	return &Memory{name: name, objects: make(map[string]memoryObject)}
}

func (m *Memory) Get(_ context.Context, key string) (Blob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return Blob{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	data := make([]byte, len(obj.data))
	copy(data, obj.data)
	return Blob{Data: data, Version: strconv.FormatInt(obj.version, 10)}, nil
}

func (m *Memory) Put(_ context.Context, key string, data []byte, contentType, version string) (Reference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.objects[key]
	switch {
	case version == "" && exists:
		return Reference{}, fmt.Errorf("%w: %s already exists", ErrStaleVersion, key)
	case version != "" && (!exists || strconv.FormatInt(current.version, 10) != version):
		return Reference{}, fmt.Errorf("%w: %s", ErrStaleVersion, key)
	}

	m.next++
	stored := make([]byte, len(data))
	copy(stored, data)
	m.objects[key] = memoryObject{data: stored, contentType: contentType, version: m.next}

	return Reference{
		Key: key,
		ID:  strconv.FormatInt(m.next, 10),
		URL: fmt.Sprintf("memory://%s/%s", m.name, key),
	}, nil
}

// Keys lists stored keys in lexical order.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ContentType returns the stored content type of key.
func (m *Memory) ContentType(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj.contentType, ok
}
