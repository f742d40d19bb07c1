package services

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog/log"

	"support-chat/internal/metrics"
	"support-chat/internal/models"
)

// RelayService forwards a conversation to the upstream provider behind a
// fixed system prompt and hands each generated fragment to the caller.
type RelayService struct {
	provider     Provider
	systemPrompt string
}

func NewRelayService(provider Provider, systemPrompt string) *RelayService {
	return &RelayService{
		provider:     provider,
		systemPrompt: systemPrompt,
	}
}

// BuildMessages returns the outbound message list: the system message
// followed by history, unchanged and in order.
func (s *RelayService) BuildMessages(history []models.ChatMessage) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(history)+1)
	out = append(out, models.ChatMessage{Role: models.RoleSystem, Content: s.systemPrompt})
	return append(out, history...)
}

// Relay streams every non-empty delta to emit, in arrival order, one call per
// delta. It returns the number of deltas emitted. Provider failures are
// returned as *UpstreamError; an emit failure is returned unchanged and stops
// the stream.
func (s *RelayService) Relay(ctx context.Context, history []models.ChatMessage, emit func(chunk string) error) (int, error) {
	metrics.InFlight.Inc()
	defer metrics.InFlight.Dec()

	stream, err := s.provider.Stream(ctx, s.BuildMessages(history))
	if err != nil {
		return 0, asUpstreamError(s.provider.Name(), err)
	}
	defer stream.Close()

	chunks := 0
	for {
		text, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			log.Debug().Str("provider", s.provider.Name()).Int("chunks", chunks).Msg("upstream stream completed")
			return chunks, nil
		}
		if err != nil {
			return chunks, asUpstreamError(s.provider.Name(), err)
		}
		if text == "" {
			continue
		}

		if err := emit(text); err != nil {
			return chunks, err
		}
		chunks++
		metrics.ChunksTotal.Inc()
		metrics.BytesTotal.Add(float64(len(text)))
	}
}
