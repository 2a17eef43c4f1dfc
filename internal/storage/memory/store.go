// Package memory keeps crawl content and outcomes in memory for dry runs and
// tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/JakeFAU/sitecrawler/internal/hash/sha256"
)

// Object is one saved piece of content.
type Object struct {
	Data        []byte
	ContentType string
	// Digest is the hex SHA-256 of Data.
	Digest string
}

// Store implements crawler.ContentStore in memory, keyed by URL.
type Store struct {
	mu      sync.RWMutex
	objects map[string]Object
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{objects: make(map[string]Object)}
}

// Save keeps a private copy of data, replacing any previous value.
func (s *Store) Save(_ context.Context, name string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = Object{
		Data:        append([]byte(nil), data...),
		ContentType: contentType,
		Digest:      sha256.Digest(data),
	}
	return nil
}

// Get returns the object saved under name.
func (s *Store) Get(name string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[name]
	return obj, ok
}

// Names returns the saved names in sorted order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.objects))
	for name := range s.objects {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of saved objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
