package sinks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/logging"
	"github.com/JakeFAU/sitecrawler/internal/progress"
)

// Publisher is the subset of the publisher packages the outcome feed needs.
type Publisher interface {
	Publish(ctx context.Context, payload any, attrs map[string]string) (string, error)
}

// OutcomeMessage is the JSON body published for every terminal URL.
type OutcomeMessage struct {
	RunID   string    `json:"run_id"`
	URL     string    `json:"url"`
	Outcome string    `json:"outcome"`
	Error   string    `json:"error,omitempty"`
	TS      time.Time `json:"ts"`
}

// PubSubSink publishes one message per URL outcome. Other stages are ignored.
type PubSubSink struct {
	publisher Publisher
	logger    *zap.Logger
}

// NewPubSubSink wraps publisher.
func NewPubSubSink(publisher Publisher, logger *zap.Logger) *PubSubSink {
	return &PubSubSink{publisher: publisher, logger: logging.OrNop(logger)}
}

// Consume publishes every URL_DONE and URL_ERROR event in batch. A failed
// publish does not stop the rest of the batch; all failures are joined.
func (s *PubSubSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.publisher == nil {
		return nil
	}
	var errs []error
	for _, evt := range batch {
		var outcome string
		switch evt.Stage {
		case progress.StageURLDone:
			outcome = "succeeded"
		case progress.StageURLError:
			outcome = "failed"
		default:
			continue
		}
		msg := OutcomeMessage{
			RunID:   evt.RunUUID().String(),
			URL:     evt.URL,
			Outcome: outcome,
			Error:   evt.Note,
			TS:      evt.TS.UTC(),
		}
		attrs := map[string]string{"run_id": msg.RunID, "outcome": outcome}
		id, err := s.publisher.Publish(ctx, msg, attrs)
		if err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", evt.URL, err))
			continue
		}
		s.logger.Debug("outcome published", zap.String("message_id", id), zap.String("url", evt.URL))
	}
	return errors.Join(errs...)
}

// Close implements the Sink interface. The publisher is owned by the caller.
func (s *PubSubSink) Close(context.Context) error {
	return nil
}
