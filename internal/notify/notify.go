// Package notify is the best-effort broadcast channel for lifecycle events.
//
// Publishers are fire-and-forget from the caller's point of view: the
// lifecycle service logs and counts a failed Publish but never fails the
// operation that produced the event. There is no acknowledgement, persistence
// or replay; a client that is not connected misses the event and is expected
// to rebuild its state through the sync endpoint.
package notify

import (
	"context"
	"encoding/json"
	"time"
)

// Event is one named state change. Key identifies the entity (user or request
// id) and is used as the partition key by ordered transports.
type Event struct {
	Name       string    `json:"event"`
	Key        string    `json:"key,omitempty"`
	Data       any       `json:"data"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Envelope is the wire form of an Event after it crossed a transport; Data is
// kept raw so relays can forward it without knowing the payload type.
type Envelope struct {
	Name       string          `json:"event"`
	Key        string          `json:"key,omitempty"`
	Data       json.RawMessage `json:"data"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// Encode marshals e to its wire form.
func Encode(e Event) ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses a wire message into an Envelope.
func Decode(payload []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(payload, &env)
	return env, err
}

// Publisher delivers an event to subscribers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Broadcaster delivers already-encoded envelopes to locally connected
// clients. The websocket hub implements it; bus relays feed it.
type Broadcaster interface {
	Broadcast(env Envelope)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, event Event) error

func (f PublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Discard drops every event. Used when no channel is configured.
var Discard Publisher = PublisherFunc(func(context.Context, Event) error { return nil })
