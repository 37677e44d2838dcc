// Package notify fans bet lifecycle events out to the configured sinks.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/atmx/bet-consensus/internal/metrics"
	"github.com/atmx/bet-consensus/internal/model"
)

// EventType names a lifecycle transition.
type EventType string

const (
	EventBetProposed  EventType = "bet_proposed"
	EventVoteCast     EventType = "vote_cast"
	EventBetFinalized EventType = "bet_finalized"
)

// Event is the JSON payload delivered to every sink.
type Event struct {
	ID          string        `json:"id"`
	Type        EventType     `json:"type"`
	BetID       model.BetID   `json:"bet_id"`
	Prompt      string        `json:"prompt,omitempty"`
	Amount      string        `json:"amount,omitempty"`
	Participant string        `json:"participant,omitempty"`
	Choice      model.Choice  `json:"choice,omitempty"`
	Tally       *model.Tally  `json:"tally,omitempty"`
	Outcome     model.Outcome `json:"outcome,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

// NewEvent stamps a fresh event id and the current time.
func NewEvent(typ EventType, betID model.BetID) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		BetID:     betID,
		Timestamp: time.Now().UTC(),
	}
}

// Publisher delivers an event to one sink.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type sink struct {
	name string
	pub  Publisher
}

// Multi publishes to every registered sink. A failing sink does not stop
// delivery to the others. The zero value publishes nowhere.
type Multi struct {
	sinks []sink
}

// NewMulti creates an empty fan-out.
func NewMulti() *Multi {
	return &Multi{}
}

// Add registers pub under name. Not safe to call concurrently with Publish.
func (m *Multi) Add(name string, pub Publisher) {
	m.sinks = append(m.sinks, sink{name: name, pub: pub})
}

// Len is the number of registered sinks.
func (m *Multi) Len() int { return len(m.sinks) }

// Publish delivers e to each sink in registration order. Failures are logged
// and counted, and the joined error is returned for callers that care.
func (m *Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.pub.Publish(ctx, e); err != nil {
			metrics.PublishFailures.WithLabelValues(s.name).Inc()
			slog.Warn("event publish failed",
				"sink", s.name,
				"event_type", e.Type,
				"bet_id", e.BetID,
				"err", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
