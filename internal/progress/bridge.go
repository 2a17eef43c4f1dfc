package progress

import (
	"errors"

	"github.com/google/uuid"

	"github.com/JakeFAU/sitecrawler/internal/crawler"
)

// Counter exposes the run counters attached to terminal run events.
// *crawler.Crawler satisfies it.
type Counter interface {
	Total() int
	Succeeded() int
	Failed() int
}

// Listener adapts crawler notifications into progress events on em. Events
// whose run ID is not a UUID are dropped.
func Listener(em Emitter, counter Counter) crawler.Listener {
	return func(ev crawler.Event) {
		if out, ok := Convert(ev, counter); ok {
			em.Emit(out)
		}
	}
}

// Convert maps one crawler event. counter may be nil.
func Convert(ev crawler.Event, counter Counter) (Event, bool) {
	id, err := uuid.Parse(ev.RunID)
	if err != nil {
		return Event{}, false
	}
	out := Event{
		RunID: UUIDToBytes(id),
		TS:    ev.At.UTC(),
		URL:   ev.URL,
		Dur:   ev.Duration,
	}
	if ev.Err != nil {
		out.Note = ev.Err.Error()
	}

	switch ev.Kind {
	case crawler.EventRunStarted:
		out.Stage = StageRunStart
	case crawler.EventURLAdmitted:
		out.Stage = StageURLAdmitted
	case crawler.EventURLProcessing:
		out.Stage = StageURLStart
	case crawler.EventURLSucceeded:
		out.Stage = StageURLDone
	case crawler.EventURLFailed:
		out.Stage = StageURLError
		if out.Note == "" {
			out.Note = "unknown error"
		}
	case crawler.EventRunFinished:
		switch {
		case ev.Err == nil:
			out.Stage = StageRunDone
		case errors.Is(ev.Err, crawler.ErrCanceled):
			out.Stage = StageRunCanceled
		default:
			out.Stage = StageRunError
		}
		if counter != nil {
			out.Counts = Counts{
				Total:     counter.Total(),
				Succeeded: counter.Succeeded(),
				Failed:    counter.Failed(),
			}
		}
	default:
		return Event{}, false
	}
	return out, true
}
