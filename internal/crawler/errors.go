package crawler

import (
	"errors"
	"fmt"
)

// ErrConfig is wrapped by every construction-time collaborator error.
var ErrConfig = errors.New("crawler: invalid configuration")

var (
	ErrMissingReader    = fmt.Errorf("%w: content reader is required", ErrConfig)
	ErrMissingStore     = fmt.Errorf("%w: content store is required", ErrConfig)
	ErrMissingExtractor = fmt.Errorf("%w: link extractor is required", ErrConfig)
	ErrInvalidWorkers   = fmt.Errorf("%w: workers must be positive", ErrConfig)
)

var (
	// ErrInvalidURL is recorded when a fetch produced no content.
	ErrInvalidURL = errors.New("crawler: invalid url")
	// ErrInvalidRoot is returned by Run for a blank root URL.
	ErrInvalidRoot = errors.New("crawler: root url is required")
	// ErrCanceled wraps the context error of a canceled run.
	ErrCanceled = errors.New("crawler: run canceled")
	// ErrAlreadyRunning is returned when Run is called on a busy crawler.
	ErrAlreadyRunning = errors.New("crawler: run already in progress")
	// ErrIncomplete is returned when every worker exited while URLs were
	// still outstanding.
	ErrIncomplete = errors.New("crawler: workers exited before the frontier drained")
)

// PanicError carries a panic recovered while processing one URL.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic while processing url: %v", e.Value)
}
