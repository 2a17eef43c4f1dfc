package crawler

import (
	"mime"
	"strings"
	"time"
)

// ContentResult is what a ContentReader hands back for one URL.
type ContentResult struct {
	URL         string
	Content     []byte
	ContentType string
}

// IsText reports whether the media type's primary token is "text".
func (r *ContentResult) IsText() bool {
	if r == nil {
		return false
	}
	mediaType := r.ContentType
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = parsed
	}
	primary, _, _ := strings.Cut(strings.TrimSpace(mediaType), "/")
	return strings.EqualFold(primary, "text")
}

// State is the lifecycle phase of a Crawler.
type State int32

// Crawler states.
const (
	StateIdle State = iota
	StateRunning
	// StateDraining means the frontier is momentarily empty while URLs are
	// still being processed.
	StateDraining
	StateCompleted
	StateCanceled
)

var stateNames = [...]string{"idle", "running", "draining", "completed", "canceled"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText renders the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// EventKind identifies a notification.
type EventKind int

// Notification kinds. Per URL, URLProcessing always precedes the terminal
// URLSucceeded or URLFailed.
const (
	EventRunStarted EventKind = iota + 1
	EventURLAdmitted
	EventURLProcessing
	EventURLSucceeded
	EventURLFailed
	EventRunFinished
)

var eventKindNames = map[EventKind]string{
	EventRunStarted:    "run_started",
	EventURLAdmitted:   "url_admitted",
	EventURLProcessing: "url_processing",
	EventURLSucceeded:  "url_succeeded",
	EventURLFailed:     "url_failed",
	EventRunFinished:   "run_finished",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is delivered synchronously to every subscribed Listener.
type Event struct {
	Kind  EventKind
	RunID string
	URL   string
	// Err is set for URLFailed, and for RunFinished when the run did not
	// complete.
	Err error
	At  time.Time
	// Duration is the processing time for terminal URL events and the run
	// time for RunFinished.
	Duration time.Duration
}

// Listener observes crawl notifications. It runs on the emitting goroutine.
type Listener func(Event)

// Snapshot is a point-in-time view of the read surface.
type Snapshot struct {
	RunID          string  `json:"run_id"`
	RootURL        string  `json:"root_url"`
	State          State   `json:"state"`
	Total          int     `json:"total"`
	Succeeded      int     `json:"succeeded"`
	Failed         int     `json:"failed"`
	Progress       int     `json:"progress"`
	FullyProcessed bool    `json:"fully_processed"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}
