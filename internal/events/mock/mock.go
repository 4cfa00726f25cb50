// Package mock provides a recording test double for the events.Publisher
// interface.
package mock

import (
	"context"
	"sync"

	"github.com/sondelabs/sonde/internal/events"
)

// Publisher records every published event in order. Set Err to inject a
// publish failure. Safe for concurrent use.
type Publisher struct {
	mu sync.Mutex

	// Err, if non-nil, is returned from every Publish call.
	Err error

	// Events holds every event passed to Publish, in call order.
	Events []events.Event
}

// Compile-time check that *Publisher satisfies [events.Publisher].
var _ events.Publisher = (*Publisher)(nil)

// Publish implements events.Publisher.
func (p *Publisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Events = append(p.Events, ev)
	return nil
}

// Types returns the EventType of every recorded event, in order.
func (p *Publisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.Events))
	for i, ev := range p.Events {
		out[i] = ev.EventType()
	}
	return out
}

// Reset clears all recorded events.
func (p *Publisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = nil
}
