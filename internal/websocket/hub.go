package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"support-chat/internal/metrics"
	"support-chat/internal/models"
)

const (
	readTimeout  = 30 * time.Second
	writeTimeout = 10 * time.Second
	maxFrameSize = 1 << 20
)

type relayService interface {
	Relay(ctx context.Context, history []models.ChatMessage, emit func(chunk string) error) (int, error)
}

// Hub serves the WebSocket variant of the chat relay and tracks live
// connections so they can be cancelled on shutdown.
type Hub struct {
	mu       sync.Mutex
	active   map[uuid.UUID]context.CancelFunc
	relay    relayService
	upgrader websocket.Upgrader
}

func NewHub(relay relayService, allowedOrigin string) *Hub {
	return &Hub{
		active: make(map[uuid.UUID]context.CancelFunc),
		relay:  relay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "*" || origin == "" || origin == allowedOrigin
			},
		},
	}
}

// HandleWebSocket reads one text frame holding the message array, relays the
// reply as one text frame per fragment and closes with 1000 on completion,
// 1011 on upstream failure or 1003 on a malformed first frame.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	logger := zerolog.Ctx(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameSize)

	ctx, cancel := context.WithCancel(r.Context())
	id := h.register(cancel)
	defer h.unregister(id)

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		logger.Debug().Err(err).Msg("websocket closed before request")
		return
	}

	var history []models.ChatMessage
	if msgType == websocket.TextMessage {
		history, err = models.ParseHistory(data)
	} else {
		err = errors.New("expected a text frame")
	}
	if err != nil {
		metrics.ObserveRelay("ws", metrics.ResultBadRequest, started)
		closeWith(conn, websocket.CloseUnsupportedData, "invalid message array")
		return
	}

	// Watch for the peer going away so the upstream call is cancelled.
	conn.SetReadDeadline(time.Time{})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	chunks, err := h.relay.Relay(ctx, history, func(chunk string) error {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteMessage(websocket.TextMessage, []byte(chunk))
	})
	if err != nil {
		result := metrics.ResultUpstreamError
		if chunks > 0 {
			result = metrics.ResultInterrupted
		}
		metrics.ObserveRelay("ws", result, started)
		logger.Error().Err(err).Int("chunks", chunks).Msg("websocket relay failed")
		closeWith(conn, websocket.CloseInternalServerErr, "upstream error")
		return
	}

	metrics.ObserveRelay("ws", metrics.ResultOK, started)
	logger.Info().Int("messages", len(history)).Int("chunks", chunks).Msg("websocket relay completed")
	closeWith(conn, websocket.CloseNormalClosure, "")
}

// Close cancels every in-flight relay. Hijacked connections are not tracked
// by http.Server.Shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, cancel := range h.active {
		cancel()
		delete(h.active, id)
	}
}

// Active returns the number of open relay connections.
func (h *Hub) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.active)
}

func (h *Hub) register(cancel context.CancelFunc) uuid.UUID {
	id := uuid.New()
	h.mu.Lock()
	h.active[id] = cancel
	h.mu.Unlock()
	return id
}

func (h *Hub) unregister(id uuid.UUID) {
	h.mu.Lock()
	if cancel, ok := h.active[id]; ok {
		cancel()
		delete(h.active, id)
	}
	h.mu.Unlock()
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
}
