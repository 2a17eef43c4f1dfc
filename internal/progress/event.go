package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported progress stages.
const (
	StageRunStart    Stage = "RUN_START"
	StageURLAdmitted Stage = "URL_ADMITTED"
	StageURLStart    Stage = "URL_START"
	StageURLDone     Stage = "URL_DONE"
	StageURLError    Stage = "URL_ERROR"
	StageRunDone     Stage = "RUN_DONE"
	StageRunCanceled Stage = "RUN_CANCELED"
	StageRunError    Stage = "RUN_ERROR"
)

// Terminal reports whether the stage ends a run.
func (s Stage) Terminal() bool {
	return s == StageRunDone || s == StageRunCanceled || s == StageRunError
}

// Counts are the run counters at the time an event was built.
type Counts struct {
	Total     int
	Succeeded int
	Failed    int
}

// Event captures one piece of crawl progress.
type Event struct {
	// RunID is the 16-byte form of the run UUID.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// URL is the page for URL stages and the root for run stages.
	URL string
	// Dur is the processing time for URL_DONE/URL_ERROR and the run time for
	// terminal run stages.
	Dur time.Duration
	// Note carries the error text for failures.
	Note string
	// Counts is only populated on terminal run stages.
	Counts Counts
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunCanceled, StageRunError:
	case StageURLAdmitted, StageURLStart, StageURLDone:
		if e.URL == "" {
			return fmt.Errorf("%s requires url", e.Stage)
		}
	case StageURLError:
		if e.URL == "" {
			return errors.New("url error requires url")
		}
		if e.Note == "" {
			return errors.New("url error requires note")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID for repositories.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
