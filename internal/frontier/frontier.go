// Package frontier implements the deduplicating URL work queue that feeds the
// crawl workers.
package frontier

import "sync"

// Frontier is a set-backed FIFO. Each distinct URL string is admitted at most
// once between resets; admitted URLs stay members after they are taken.
type Frontier struct {
	seen Set

	mu    sync.Mutex
	queue []string
	head  int
}

// New returns an empty Frontier.
func New() *Frontier {
	return &Frontier{}
}

// Admit queues url if it has never been admitted before and reports whether
// it did. Membership is recorded before the URL becomes visible to TryTake.
func (f *Frontier) Admit(url string) bool {
	if !f.seen.Add(url) {
		return false
	}
	f.mu.Lock()
	f.queue = append(f.queue, url)
	f.mu.Unlock()
	return true
}

// TryTake pops the oldest pending URL without blocking.
func (f *Frontier) TryTake() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.head >= len(f.queue) {
		return "", false
	}
	url := f.queue[f.head]
	f.queue[f.head] = ""
	f.head++
	if f.head == len(f.queue) {
		f.queue = f.queue[:0]
		f.head = 0
	}
	return url, true
}

// Count returns how many URLs were ever admitted since the last reset.
func (f *Frontier) Count() int {
	return f.seen.Len()
}

// Pending returns how many admitted URLs are still waiting to be taken.
func (f *Frontier) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue) - f.head
}

// Seen reports whether url was admitted since the last reset.
func (f *Frontier) Seen(url string) bool {
	return f.seen.Contains(url)
}

// Reset clears membership and pending state. Callers must ensure no worker is
// using the frontier.
func (f *Frontier) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen.Reset()
	f.queue = nil
	f.head = 0
}
