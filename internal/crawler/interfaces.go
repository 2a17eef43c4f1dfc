package crawler

import (
	"context"
	"iter"
	"time"
)

// ContentReader fetches a URL. A nil result or nil Content marks the URL as
// not retrievable.
type ContentReader interface {
	Read(ctx context.Context, url string) (*ContentResult, error)
}

// ContentStore persists fetched bytes. Save is called concurrently with
// distinct names.
type ContentStore interface {
	Save(ctx context.Context, name string, data []byte, contentType string) error
}

// LinkExtractor yields raw href values found in markup. The sequence must be
// finite and restartable; no URL interpretation happens here.
type LinkExtractor interface {
	Extract(markup string) iter.Seq[string]
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
