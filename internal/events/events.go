// Package events publishes domain events to downstream consumers after the
// originating transaction has committed.
package events

import (
	"context"
	"sync"
	"time"
)

// Routing keys of the events this service emits.
const (
	CommentCreated  = "comment.created"
	ReactionCreated = "reaction.created"
	PostDeleted     = "post.deleted"
)

// Event is the message body written to the exchange.
type Event struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// New stamps an event of type typ with the current time.
func New(typ string, payload any) Event {
	return Event{Type: typ, OccurredAt: time.Now().UTC(), Payload: payload}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// CommentPayload describes a newly created comment.
type CommentPayload struct {
	CommentID uint  `json:"comment_id"`
	PostID    uint  `json:"post_id"`
	ParentID  *uint `json:"parent_id,omitempty"`
	UserID    uint  `json:"user_id"`
	Depth     int   `json:"depth"`
}

// ReactionPayload describes a newly applied reaction.
type ReactionPayload struct {
	TargetType string `json:"target_type"`
	TargetID   uint   `json:"target_id"`
	UserID     uint   `json:"user_id"`
	Kind       string `json:"kind"`
}

// PostDeletedPayload summarizes what a cascade removed.
type PostDeletedPayload struct {
	PostID           uint  `json:"post_id"`
	UserID           uint  `json:"user_id"`
	CommentsDeleted  int64 `json:"comments_deleted"`
	ReactionsDeleted int64 `json:"reactions_deleted"`
	MediaDeleted     int   `json:"media_deleted"`
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close() error                         { return nil }

// MemoryPublisher keeps published events in memory.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (m *MemoryPublisher) Publish(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MemoryPublisher) Close() error { return nil }

// Events returns a copy of everything published so far.
func (m *MemoryPublisher) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Types returns the type of every published event in order.
func (m *MemoryPublisher) Types() []string {
	evs := m.Events()
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.Type
	}
	return out
}
