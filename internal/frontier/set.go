package frontier

import (
	"sync"
	"sync/atomic"
)

// Set is a concurrency-safe set of URL strings with an O(1) size.
type Set struct {
	members sync.Map
	size    atomic.Int64
}

// Add stores url and reports whether it was absent. Concurrent callers racing
// on the same url observe exactly one true.
func (s *Set) Add(url string) bool {
	if _, loaded := s.members.LoadOrStore(url, struct{}{}); loaded {
		return false
	}
	s.size.Add(1)
	return true
}

// Contains reports whether url has been added.
func (s *Set) Contains(url string) bool {
	_, ok := s.members.Load(url)
	return ok
}

// Len returns the number of members.
func (s *Set) Len() int {
	return int(s.size.Load())
}

// Reset removes every member. It must not race with Add.
func (s *Set) Reset() {
	s.members.Clear()
	s.size.Store(0)
}
