// Package memory contains an in-memory notifier for dry runs and tests.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/drhp-archiver/internal/archiver"
)

// Publisher stores announced events for inspection.
type Publisher struct {
	mu     sync.RWMutex
	events []archiver.ArchivedEvent
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Notify records the event.
func (p *Publisher) Notify(_ context.Context, event archiver.ArchivedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns the recorded events.
func (p *Publisher) Events() []archiver.ArchivedEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]archiver.ArchivedEvent, len(p.events))
	copy(out, p.events)
	return out
}
