package group

import (
	"context"
	"encoding/json"
)

// Event is the envelope published to a group. Message is relayed to clients
// byte-for-byte.
type Event struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
	Origin  string          `json:"origin,omitempty"`
}

// DeliverFunc hands an event received by a transport to the local members of
// group.
type DeliverFunc func(group string, event Event)

type Transport interface {
	Name() string
	// Start begins receiving events for all groups. It returns once the
	// transport is ready to deliver.
	Start(ctx context.Context, deliver DeliverFunc) error
	Publish(ctx context.Context, group string, event Event) error
	Close() error
}
