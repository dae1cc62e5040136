// memory based backend, used for testing and as a reference implementation
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/davkit/davkit/server/storage"
	"github.com/tidwall/btree"
)

type object struct {
	isDir   bool
	content []byte
	modTime time.Time
}

// Store implements storage.Backend using an in-memory ordered key index.
// Listing order is lexicographic key order, which keeps directory
// enumeration deterministic across calls.
type Store struct {
	mu      sync.RWMutex
	objects btree.Map[string, *object]
}

// New creates a new in-memory backend with an existing root directory.
func New() *Store {
	s := &Store{}
	s.objects.Set("", &object{isDir: true, modTime: time.Now().UTC()})
	return s
}

// normalize turns any incoming path into the flat key form: no leading or
// trailing slash, root = "".
func normalize(path string) string {
	return strings.Trim(path, "/")
}

func parentKey(key string) string {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[:i]
	}
	return ""
}

func baseName(key string) string {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[i+1:]
	}
	return key
}

func (s *Store) Stat(_ context.Context, path string) (*storage.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := normalize(path)
	obj, ok := s.objects.Get(key)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.ObjectInfo{
		Name:    baseName(key),
		IsDir:   obj.isDir,
		Size:    int64(len(obj.content)),
		ModTime: obj.modTime,
	}, nil
}

func (s *Store) Read(_ context.Context, path string, offset int64, length int64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects.Get(normalize(path))
	if !ok {
		return nil, storage.ErrNotFound
	}
	if obj.isDir {
		return nil, storage.ErrIsDirectory
	}
	if offset < 0 || offset > int64(len(obj.content)) {
		return nil, storage.ErrInvalidInput
	}
	end := int64(len(obj.content))
	if length >= 0 && offset+length < end {
		end = offset + length
	}
	out := make([]byte, end-offset)
	copy(out, obj.content[offset:end])
	return out, nil
}

func (s *Store) Write(_ context.Context, path string, offset int64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalize(path)
	if key == "" {
		return storage.ErrIsDirectory
	}
	if parent, ok := s.objects.Get(parentKey(key)); !ok {
		return storage.ErrNotFound
	} else if !parent.isDir {
		return storage.ErrNotDirectory
	}

	obj, ok := s.objects.Get(key)
	if !ok {
		obj = &object{}
		s.objects.Set(key, obj)
	} else if obj.isDir {
		return storage.ErrIsDirectory
	}
	if offset < 0 || offset > int64(len(obj.content)) {
		return storage.ErrInvalidInput
	}
	if grown := offset + int64(len(data)); grown > int64(len(obj.content)) {
		content := make([]byte, grown)
		copy(content, obj.content)
		obj.content = content
	}
	copy(obj.content[offset:], data)
	obj.modTime = time.Now().UTC()
	return nil
}

func (s *Store) Mkdir(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalize(path)
	if key == "" {
		return storage.ErrAlreadyExists
	}
	if _, ok := s.objects.Get(key); ok {
		return storage.ErrAlreadyExists
	}
	if parent, ok := s.objects.Get(parentKey(key)); !ok {
		return storage.ErrNotFound
	} else if !parent.isDir {
		return storage.ErrNotDirectory
	}
	s.objects.Set(key, &object{isDir: true, modTime: time.Now().UTC()})
	return nil
}

func (s *Store) Destroy(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalize(path)
	if key == "" {
		return storage.ErrInvalidInput
	}
	obj, ok := s.objects.Get(key)
	if !ok {
		return storage.ErrNotFound
	}
	if obj.isDir {
		empty := true
		prefix := key + "/"
		s.objects.Ascend(prefix, func(k string, _ *object) bool {
			empty = !strings.HasPrefix(k, prefix)
			return false
		})
		if !empty {
			return storage.ErrNotEmpty
		}
	}
	s.objects.Delete(key)
	return nil
}

func (s *Store) List(_ context.Context, path string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := normalize(path)
	obj, ok := s.objects.Get(key)
	if !ok {
		return nil, storage.ErrNotFound
	}
	if !obj.isDir {
		return nil, storage.ErrNotDirectory
	}

	prefix := ""
	if key != "" {
		prefix = key + "/"
	}
	var names []string
	s.objects.Ascend(prefix, func(k string, _ *object) bool {
		if k == key {
			return true
		}
		if !strings.HasPrefix(k, prefix) {
			return false
		}
		rest := k[len(prefix):]
		if !strings.Contains(rest, "/") {
			names = append(names, rest)
		}
		return true
	})
	return names, nil
}
