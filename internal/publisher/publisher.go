// Package publisher emits run lifecycle events to a message bus.
package publisher

import "context"

// Noop drops every event. It is the default when event publishing is off.
type Noop struct{}

// NewNoop returns a Noop publisher.
func NewNoop() *Noop {
	return &Noop{}
}

// Publish discards the event and reports an empty ID.
func (*Noop) Publish(_ context.Context, _ string, _ any) (string, error) {
	return "", nil
}
