package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-chat/internal/models"
	"support-chat/internal/services"
	"support-chat/internal/services/servicestest"
)

const testPrompt = "You are the support assistant."

func newTestHandler(p *servicestest.FakeProvider) *ChatHandler {
	return NewChatHandler(services.NewRelayService(p, testPrompt))
}

func TestChatHandler_StreamsDeltasInOrder(t *testing.T) {
	provider := &servicestest.FakeProvider{Deltas: []string{"You", " can", "", " reset..."}}
	h := newTestHandler(provider)

	body := `[{"role":"user","content":"How do I reset my password?"}]`
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	rr := httptest.NewRecorder()

	h.Relay(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "You can reset...", rr.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.True(t, rr.Flushed)

	require.Len(t, provider.Received(), 1)
	assert.Equal(t, []models.ChatMessage{
		{Role: models.RoleSystem, Content: testPrompt},
		{Role: models.RoleUser, Content: "How do I reset my password?"},
	}, provider.Received()[0])
}

func TestChatHandler_NoDeltasClosesCleanly(t *testing.T) {
	h := newTestHandler(&servicestest.FakeProvider{Deltas: []string{""}})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`[]`))
	rr := httptest.NewRecorder()

	h.Relay(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Body.String())
}

func TestChatHandler_MalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "hello"},
		{"object instead of array", `{"role":"user","content":"hi"}`},
		{"empty", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			provider := &servicestest.FakeProvider{Deltas: []string{"never"}}
			h := newTestHandler(provider)

			req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(tc.body))
			req.Header.Set("X-Request-ID", "req-123")
			rr := httptest.NewRecorder()

			h.Relay(rr, req)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Empty(t, provider.Received(), "upstream must not be called")

			var resp models.ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
			assert.Equal(t, "req-123", resp.Error.RequestID)
		})
	}
}

func TestChatHandler_UpstreamRejectsImmediately(t *testing.T) {
	h := newTestHandler(&servicestest.FakeProvider{OpenErr: errors.New("401 invalid credentials")})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`[{"role":"user","content":"hi"}]`))
	rr := httptest.NewRecorder()

	h.Relay(rr, req)

	assert.Equal(t, http.StatusBadGateway, rr.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "UPSTREAM_ERROR", resp.Error.Code)
}

func TestChatHandler_UpstreamFailsBeforeFirstDelta(t *testing.T) {
	h := newTestHandler(&servicestest.FakeProvider{
		Deltas:    []string{"never"},
		RecvErr:   errors.New("stream reset"),
		FailAfter: 0,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`[]`))
	rr := httptest.NewRecorder()

	h.Relay(rr, req)

	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestChatHandler_MidStreamFailureAbortsResponse(t *testing.T) {
	h := newTestHandler(&servicestest.FakeProvider{
		Deltas:    []string{"Hel", "lo", " world"},
		RecvErr:   errors.New("upstream went away"),
		FailAfter: 2,
	})
	srv := httptest.NewServer(http.HandlerFunc(h.Relay))
	defer srv.Close()

	resp, err := http.Post(srv.URL, "application/json", strings.NewReader(`[]`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, "Hello", string(data))
}
