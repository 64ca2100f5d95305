package test

import (
	"context"
	"sync"

	"github.com/polkiloo/vipm-fulfillment/internal/events"
)

// PublisherStub records published envelopes.
type PublisherStub struct {
	Envelopes []events.Envelope
	Err       error

	mu sync.Mutex
}

func (p *PublisherStub) Publish(_ context.Context, env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Envelopes = append(p.Envelopes, env)
	return nil
}

func (p *PublisherStub) Close() error { return nil }

// Types returns the event types published so far.
func (p *PublisherStub) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.Envelopes))
	for _, env := range p.Envelopes {
		out = append(out, env.EventType)
	}
	return out
}
