package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"support-chat/internal/metrics"
	"support-chat/internal/models"
)

type relayService interface {
	Relay(ctx context.Context, history []models.ChatMessage, emit func(chunk string) error) (int, error)
}

type ChatHandler struct {
	relay relayService
}

func NewChatHandler(relay relayService) *ChatHandler {
	return &ChatHandler{relay: relay}
}

// Relay streams the assistant reply for a JSON array of prior messages as raw
// UTF-8 bytes, flushing after every fragment. Failures before the first byte
// get a JSON error response; failures after it abort the connection so the
// client sees a truncated body rather than a clean end.
func (h *ChatHandler) Relay(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	logger := zerolog.Ctx(r.Context())

	body, err := io.ReadAll(r.Body)
	if err != nil {
		metrics.ObserveRelay("http", metrics.ResultBadRequest, started)
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	history, err := models.ParseHistory(body)
	if err != nil {
		metrics.ObserveRelay("http", metrics.ResultBadRequest, started)
		logger.Debug().Err(err).Msg("rejected chat request")
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Request body must be a JSON array of messages", r))
		return
	}

	rc := http.NewResponseController(w)
	wroteHeader := false
	writeHeader := func() {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		wroteHeader = true
	}

	chunks, err := h.relay.Relay(r.Context(), history, func(chunk string) error {
		if !wroteHeader {
			writeHeader()
		}
		if _, err := io.WriteString(w, chunk); err != nil {
			return err
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
		return nil
	})

	switch {
	case err == nil:
		if !wroteHeader {
			writeHeader()
		}
		metrics.ObserveRelay("http", metrics.ResultOK, started)
		logger.Info().Int("messages", len(history)).Int("chunks", chunks).Dur("elapsed", time.Since(started)).Msg("chat relay completed")

	case !wroteHeader:
		metrics.ObserveRelay("http", metrics.ResultUpstreamError, started)
		logger.Error().Err(err).Msg("chat relay failed before streaming")
		writeJSON(w, http.StatusBadGateway, errorResp("UPSTREAM_ERROR", "Failed to get AI response", r))

	default:
		metrics.ObserveRelay("http", metrics.ResultInterrupted, started)
		logger.Warn().Err(err).Int("chunks", chunks).Msg("chat relay interrupted mid-stream")
		// Abort so the chunked body is never terminated cleanly.
		panic(http.ErrAbortHandler)
	}
}
