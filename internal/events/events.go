// Package events publishes audit events for completed marketplace commands.
// Publishing is best effort: a failed publish is logged and never fails the
// command that produced the event.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/developerashishcanada/carpoolreact/pkg/logger"
)

// Event types
const (
	ProfileRegistered = "profile.registered"
	ProfileVerified   = "profile.verification_changed"
	RidePosted        = "ride.posted"
	RideCompleted     = "ride.completed"
	RequestCreated    = "request.created"
	RequestOpened     = "request.opened"
	RequestAccepted   = "request.accepted"
	RequestRejected   = "request.rejected"
	RequestCancelled  = "request.cancelled"
	WalletDeposit     = "wallet.deposit"
	WalletWithdrawal  = "wallet.withdrawal"
	ChatMessage       = "chat.message"
)

// Event is one audit record. Type doubles as the routing key.
type Event struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Subject    string                 `json:"subject"`
	ActorID    string                 `json:"actor_id"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// New builds an event with a fresh id and timestamp
func New(eventType, subject, actorID string, payload map[string]interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Subject:    subject,
		ActorID:    actorID,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// LogPublisher writes events to the log. It is used when no broker is
// configured.
type LogPublisher struct {
	logger *logger.Logger
}

// NewLogPublisher creates a log publisher
func NewLogPublisher(log *logger.Logger) *LogPublisher {
	return &LogPublisher{logger: log.Named("events")}
}

// Publish logs the event
func (p *LogPublisher) Publish(ctx context.Context, e Event) error {
	p.logger.Info("Event",
		logger.String("event_id", e.ID),
		logger.String("type", e.Type),
		logger.String("subject", e.Subject),
		logger.String("actor_id", e.ActorID),
		logger.Any("payload", e.Payload),
	)
	return nil
}

// Close is a no-op
func (p *LogPublisher) Close() error { return nil }

// Recorder keeps events in memory. Tests use it to assert on what a command
// emitted.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish records the event
func (r *Recorder) Publish(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Close is a no-op
func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything recorded
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}
