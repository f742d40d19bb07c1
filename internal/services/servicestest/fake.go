// Package servicestest provides a scripted Provider for tests.
package servicestest

import (
	"context"
	"io"
	"sync"

	"support-chat/internal/models"
	"support-chat/internal/services"
)

// FakeProvider replays Deltas in order. OpenErr fails the call before any
// delta; RecvErr is returned after the first FailAfter deltas when set.
type FakeProvider struct {
	Deltas    []string
	OpenErr   error
	RecvErr   error
	FailAfter int

	mu       sync.Mutex
	received [][]models.ChatMessage
	closed   int
}

func (p *FakeProvider) Name() string { return "fake" }

func (p *FakeProvider) Stream(ctx context.Context, messages []models.ChatMessage) (services.Stream, error) {
	p.mu.Lock()
	p.received = append(p.received, append([]models.ChatMessage(nil), messages...))
	p.mu.Unlock()

	if p.OpenErr != nil {
		return nil, p.OpenErr
	}
	return &fakeStream{p: p, ctx: ctx}, nil
}

// Received returns the message lists passed to Stream, one per call.
func (p *FakeProvider) Received() [][]models.ChatMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.received
}

// Closed reports how many streams were closed.
func (p *FakeProvider) Closed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakeStream struct {
	p   *FakeProvider
	ctx context.Context
	i   int
}

func (s *fakeStream) Recv() (string, error) {
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	if s.p.RecvErr != nil && s.i >= s.p.FailAfter {
		return "", s.p.RecvErr
	}
	if s.i >= len(s.p.Deltas) {
		return "", io.EOF
	}
	d := s.p.Deltas[s.i]
	s.i++
	return d, nil
}

func (s *fakeStream) Close() error {
	s.p.mu.Lock()
	s.p.closed++
	s.p.mu.Unlock()
	return nil
}
